// Package deploy pushes rendered configuration to devices.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"labprov/internal/domain"
	"labprov/internal/transport"
)

// Report summarizes one ApplyAll call
type Report struct {
	Applied  int
	Failed   int
	Failures []domain.DeviceError
}

// Deployer applies configurations through a transport.Runner
type Deployer struct {
	runner      transport.Runner
	credentials domain.Credentials
	concurrency int
	log         zerolog.Logger
}

// New creates a Deployer. Devices without their own credentials use creds.
func New(runner transport.Runner, creds domain.Credentials, concurrency int, log zerolog.Logger) *Deployer {
	if concurrency < 1 {
		concurrency = 5
	}
	return &Deployer{
		runner:      runner,
		credentials: creds,
		concurrency: concurrency,
		log:         log,
	}
}

// Commands wraps configuration text in the enable/configure/save sequence.
// Blank lines are dropped and trailing whitespace trimmed.
func Commands(text string) []string {
	cmds := []string{"enable", "configure"}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmds = append(cmds, line)
	}
	return append(cmds, "end", "write memory")
}

// Apply submits one configuration as a single batch. The startup config is
// always written, even if nothing changed.
func (d *Deployer) Apply(ctx context.Context, cfg domain.Configuration) error {
	dev := cfg.Device.WithDefaultCredentials(d.credentials)

	res, err := d.runner.Run(ctx, dev, Commands(cfg.Text))
	if err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("apply %s to %s: %w", cfg.Template, dev, err)
		}
		return fmt.Errorf("apply %s to %s: transport: %w", cfg.Template, dev, err)
	}

	d.log.Debug().
		Str("device", dev.Hostname).
		Str("address", dev.ManagementAddress).
		Str("template", cfg.Template).
		Int("status", res.Status).
		Msg("Configuration applied")
	return nil
}

// ApplyAll applies every configuration concurrently; devices are independent
func (d *Deployer) ApplyAll(ctx context.Context, cfgs []domain.Configuration) *Report {
	report := &Report{}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, cfg := range cfgs {
		g.Go(func() error {
			err := d.Apply(ctx, cfg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Warn().
					Err(err).
					Str("device", cfg.Device.Hostname).
					Str("address", cfg.Device.ManagementAddress).
					Str("stage", string(domain.StageDeploy)).
					Msg("Deployment failed")
				report.Failed++
				report.Failures = append(report.Failures, domain.NewDeviceError(domain.StageDeploy, cfg.Device, err))
				return nil
			}
			report.Applied++
			return nil
		})
	}
	g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Address < report.Failures[j].Address
	})
	return report
}
