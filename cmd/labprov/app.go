package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"labprov/internal/codec"
	"labprov/internal/config"
	"labprov/internal/deploy"
	"labprov/internal/discovery"
	"labprov/internal/domain"
	"labprov/internal/generator"
	"labprov/internal/inspector"
	"labprov/internal/logger"
	"labprov/internal/pipeline"
	"labprov/internal/render"
	"labprov/internal/repository"
	"labprov/internal/repository/postgres"
	"labprov/internal/repository/sqlite"
	"labprov/internal/transport"
)

// app holds the wired components for one invocation
type app struct {
	cfg    *config.Config
	opts   options
	log    zerolog.Logger
	store  repository.Store
	format string
}

func newApp(ctx context.Context, opts options) (*app, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.configPath != "" {
		cfg, path, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = opts.dbPath
	}
	if len(opts.templates) > 0 {
		cfg.Templates.Protocols = opts.templates
	}
	if opts.strict {
		cfg.Pipeline.Strict = true
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
		cfg.Logging.Debug = false
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Info().Str("path", path).Msg("Loaded config")
	}
	log.Info().Msg(cfg.Summary())

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, opts: opts, log: log, store: store, format: opts.format}, nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (repository.Store, error) {
	switch db.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, db)
	default:
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, fmt.Errorf("open inventory %s: %w", db.Path, err)
		}
		return store, nil
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close inventory")
	}
}

func (a *app) credentials() domain.Credentials {
	return domain.Credentials{
		Username: a.cfg.Credentials.Username,
		Password: a.cfg.Credentials.Password,
	}
}

// orchestrator wires inspector, transport, generator and deployer
func (a *app) orchestrator() (*pipeline.Orchestrator, error) {
	cfg := a.cfg

	insp, err := inspector.New(cfg.Inspector, cfg.InspectorTimeout(), logger.WithComponent(a.log, "inspector"))
	if err != nil {
		return nil, err
	}

	tr, err := transport.New(cfg.Transport, transport.Timeouts{
		Connect: cfg.ConnectTimeout(),
		Command: cfg.CommandTimeout(),
	}, logger.WithComponent(a.log, "transport"))
	if err != nil {
		return nil, err
	}

	disc := discovery.New(insp, tr, a.store, discovery.Config{
		HostnameCommand:   cfg.Discovery.HostnameCommand,
		LoopbackCommand:   cfg.Discovery.LoopbackCommand,
		InterfacesCommand: cfg.Discovery.InterfacesCommand,
		Concurrency:       cfg.Pipeline.Concurrency,
		Credentials:       a.credentials(),
	}, logger.WithComponent(a.log, "discovery"))

	renderer, err := render.New(cfg.Templates.Dir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	gen := generator.New(a.store, renderer, cfg.Pipeline.MissingLoopback, logger.WithComponent(a.log, "generator"))
	dep := deploy.New(tr, a.credentials(), cfg.Pipeline.Concurrency, logger.WithComponent(a.log, "deploy"))

	var opts []pipeline.Option
	if cfg.Metrics.Textfile != "" {
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(), cfg.Metrics.Textfile))
	}

	return pipeline.New(disc, gen, dep, logger.WithComponent(a.log, "pipeline"), opts...), nil
}

func (a *app) discover(ctx context.Context, w io.Writer) error {
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	summary, err := orch.Discover(ctx)
	if err != nil {
		return err
	}
	printSummary(w, summary)
	return a.strictResult(summary)
}

func (a *app) deploy(ctx context.Context, w io.Writer, withDiscovery bool) error {
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	var summary *pipeline.Summary
	if withDiscovery {
		summary, err = orch.DiscoverAndRun(ctx, a.cfg.Templates.Protocols)
	} else {
		summary, err = orch.Run(ctx, a.cfg.Templates.Protocols)
	}
	if err != nil {
		return err
	}
	printSummary(w, summary)
	return a.strictResult(summary)
}

// strictResult turns per-device failures into exit status 2 when strict
func (a *app) strictResult(summary *pipeline.Summary) error {
	if !a.cfg.Pipeline.Strict || summary.Failures() == 0 {
		return nil
	}
	return &exitError{code: 2, err: fmt.Errorf("%d device failure(s): %w", summary.Failures(), summary.Err())}
}

func (a *app) exportInventory(ctx context.Context, path string, stdout io.Writer) error {
	c, err := codec.ForFormat(a.format)
	if err != nil {
		return err
	}

	devices, err := a.store.ListDevices(ctx)
	if err != nil {
		return err
	}

	if path == "-" {
		return c.Export(devices, stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.Export(devices, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	a.log.Info().Int("devices", len(devices)).Str("path", path).Str("format", c.Format()).Msg("Inventory exported")
	return nil
}

func (a *app) importInventory(ctx context.Context, path string, stdout io.Writer) error {
	c, err := codec.ForFormat(a.format)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	devices, err := c.Parse(f)
	if err != nil {
		return err
	}

	report, err := codec.ApplyInterfaces(ctx, a.store, devices)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "updated %d, ignored %d, unknown %d\n", report.Updated, report.Ignored, len(report.Unknown))
	for _, addr := range report.Unknown {
		fmt.Fprintf(stdout, "  not in inventory: %s\n", addr)
	}
	return nil
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "run %s (%s)\n", s.RunID, s.Duration.Round(time.Millisecond))
	if d := s.Discovery; d != nil {
		fmt.Fprintf(w, "  discover: %d found, %d recorded, %d incomplete, %d failed\n",
			d.Discovered, d.Reconciled, d.Incomplete, d.Failed)
	}
	for _, st := range s.Stages {
		if st.Err != nil {
			fmt.Fprintf(w, "  %s: aborted: %v\n", st.Template, st.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d generated, %d skipped, %d generate failed, %d applied, %d apply failed\n",
			st.Template, st.Generated, st.Skipped, st.GenerateFailed, st.Applied, st.ApplyFailed)
	}
	if err := s.Err(); err != nil {
		fmt.Fprintf(w, "%v\n", err)
	}
}
