// Package discovery learns device identity from running lab nodes and
// reconciles it into the inventory store.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"labprov/internal/domain"
	"labprov/internal/inspector"
	"labprov/internal/repository"
	"labprov/internal/transport"
)

// Config holds the show commands and fan-out for a discovery pass
type Config struct {
	HostnameCommand   string
	LoopbackCommand   string
	InterfacesCommand string // empty disables interface collection
	Concurrency       int
	Credentials       domain.Credentials
}

// Discoverer queries each running node and upserts what it learns
type Discoverer struct {
	inspector inspector.Inspector
	dialer    transport.Dialer
	store     repository.Store
	cfg       Config
	log       zerolog.Logger
}

// New creates a Discoverer
func New(insp inspector.Inspector, dialer transport.Dialer, store repository.Store, cfg Config, log zerolog.Logger) *Discoverer {
	if cfg.HostnameCommand == "" {
		cfg.HostnameCommand = "show hostname"
	}
	if cfg.LoopbackCommand == "" {
		cfg.LoopbackCommand = "show ip interface loopback0"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 5
	}
	return &Discoverer{
		inspector: insp,
		dialer:    dialer,
		store:     store,
		cfg:       cfg,
		log:       log,
	}
}

// Run performs one discovery pass. Only an inspector failure is returned;
// per-device failures are recorded in the report.
func (d *Discoverer) Run(ctx context.Context) (*Report, error) {
	nodes, err := d.inspector.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect topology: %w", err)
	}

	report := &Report{Discovered: len(nodes)}
	d.log.Info().Int("nodes", len(nodes)).Str("inspector", d.inspector.Name()).Msg("Starting discovery")

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	for _, node := range nodes {
		g.Go(func() error {
			d.discover(ctx, node, report)
			return nil
		})
	}
	g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Address < report.Failures[j].Address
	})

	d.log.Info().
		Int("discovered", report.Discovered).
		Int("reconciled", report.Reconciled).
		Int("incomplete", report.Incomplete).
		Int("failed", report.Failed).
		Msg("Discovery complete")

	return report, nil
}

// discover handles a single node; errors are recorded, never returned
func (d *Discoverer) discover(ctx context.Context, node inspector.Node, report *Report) {
	dev := domain.Device{
		ManagementAddress: node.ManagementAddress,
		Credentials:       d.cfg.Credentials,
	}
	log := d.log.With().Str("address", node.ManagementAddress).Str("node", node.Name).Logger()

	failed := func(stage domain.Stage, err error) {
		derr := domain.NewDeviceError(stage, dev, err)
		log.Warn().Err(err).Str("stage", string(stage)).Str("device", dev.Hostname).Msg("Discovery failed for device")
		report.fail(derr)
	}

	session, err := d.dialer.Open(ctx, node.ManagementAddress, d.cfg.Credentials)
	if err != nil {
		failed(domain.StageConnect, err)
		return
	}
	defer session.Close()

	out, err := session.Execute(ctx, d.cfg.HostnameCommand)
	if err != nil {
		failed(domain.StageQuery, fmt.Errorf("%s: %w", d.cfg.HostnameCommand, err))
		return
	}
	dev.Hostname = ParseHostname(out)

	out, err = session.Execute(ctx, d.cfg.LoopbackCommand)
	if err != nil {
		failed(domain.StageQuery, fmt.Errorf("%s: %w", d.cfg.LoopbackCommand, err))
		return
	}
	loopback, ok := ParseLoopback(out)

	if dev.Hostname == "" || !ok {
		log.Warn().Str("device", dev.Hostname).Bool("loopback_found", ok).Msg("Incomplete device identity, not recording")
		report.incomplete()
		return
	}
	dev.LoopbackAddress = loopback

	if err := d.store.Upsert(ctx, dev.ManagementAddress, dev.Hostname, dev.LoopbackAddress); err != nil {
		failed(domain.StagePersist, err)
		return
	}
	report.reconciled()
	log.Debug().Str("device", dev.Hostname).Str("loopback", loopback).Msg("Device reconciled")

	d.collectInterfaces(ctx, session, dev, log)
}

// collectInterfaces records routed Ethernet interfaces; failures are only logged
func (d *Discoverer) collectInterfaces(ctx context.Context, session transport.Session, dev domain.Device, log zerolog.Logger) {
	if d.cfg.InterfacesCommand == "" {
		return
	}

	out, err := session.Execute(ctx, d.cfg.InterfacesCommand)
	if err != nil {
		log.Warn().Err(err).Msg("Interface collection failed")
		return
	}

	interfaces := ParseInterfaces(out)
	if len(interfaces) == 0 {
		return
	}
	if err := d.store.SetInterfaces(ctx, dev.ManagementAddress, interfaces); err != nil {
		log.Warn().Err(err).Msg("Failed to record interfaces")
	}
}
