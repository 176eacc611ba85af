// Package pipeline sequences discovery, generation and deployment.
//
// Templates run one after another; within a template every device is
// independent. Per-device failures are collected into the Summary and never
// stop the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"labprov/internal/deploy"
	"labprov/internal/discovery"
	"labprov/internal/domain"
	"labprov/internal/generator"
)

// Discoverer runs one discovery pass
type Discoverer interface {
	Run(ctx context.Context) (*discovery.Report, error)
}

// Generator renders one template for every stored device
type Generator interface {
	Generate(ctx context.Context, template string) (*generator.Batch, error)
}

// Deployer applies a batch of configurations
type Deployer interface {
	ApplyAll(ctx context.Context, cfgs []domain.Configuration) *deploy.Report
}

// Orchestrator drives a labprov run
type Orchestrator struct {
	discoverer Discoverer
	generator  Generator
	deployer   Deployer
	metrics    *Metrics
	textfile   string
	log        zerolog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMetrics records counters into m and writes them to textfile after each run
func WithMetrics(m *Metrics, textfile string) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		o.textfile = textfile
	}
}

// New creates an Orchestrator
func New(disc Discoverer, gen Generator, dep Deployer, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		discoverer: disc,
		generator:  gen,
		deployer:   dep,
		log:        log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) newSummary() *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Discover runs discovery only
func (o *Orchestrator) Discover(ctx context.Context) (*Summary, error) {
	summary := o.newSummary()
	defer o.finish(summary)

	if err := o.discover(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// Run generates and deploys each template in order
func (o *Orchestrator) Run(ctx context.Context, templates []string) (*Summary, error) {
	summary := o.newSummary()
	defer o.finish(summary)

	return summary, o.runTemplates(ctx, summary, templates)
}

// DiscoverAndRun refreshes the inventory, then generates and deploys.
// Only an inspector failure stops the run before deployment.
func (o *Orchestrator) DiscoverAndRun(ctx context.Context, templates []string) (*Summary, error) {
	summary := o.newSummary()
	defer o.finish(summary)

	if err := o.discover(ctx, summary); err != nil {
		return summary, err
	}
	return summary, o.runTemplates(ctx, summary, templates)
}

func (o *Orchestrator) discover(ctx context.Context, summary *Summary) error {
	log := o.log.With().Str("run_id", summary.RunID).Logger()

	report, err := o.discoverer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Discovery aborted")
		return fmt.Errorf("discovery: %w", err)
	}
	summary.Discovery = report

	o.metrics.count("discover", "reconciled", report.Reconciled)
	o.metrics.count("discover", "incomplete", report.Incomplete)
	o.metrics.count("discover", "failed", report.Failed)
	return nil
}

func (o *Orchestrator) runTemplates(ctx context.Context, summary *Summary, templates []string) error {
	for _, name := range templates {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Stages = append(summary.Stages, o.runTemplate(ctx, summary.RunID, name))
	}
	return nil
}

// runTemplate fully processes one template before the next begins
func (o *Orchestrator) runTemplate(ctx context.Context, runID, name string) StageSummary {
	log := o.log.With().Str("run_id", runID).Str("template", name).Logger()
	stage := StageSummary{Template: name}

	batch, err := o.generator.Generate(ctx, name)
	if err != nil {
		log.Error().Err(err).Msg("Template aborted")
		stage.Err = err
		o.metrics.count("generate", "aborted", 1)
		return stage
	}

	stage.Generated = len(batch.Configurations)
	stage.Skipped = len(batch.Skipped)
	stage.GenerateFailed = len(batch.Failures)
	stage.Failures = append(stage.Failures, batch.Failures...)

	o.metrics.count("generate", "generated", stage.Generated)
	o.metrics.count("generate", "skipped", stage.Skipped)
	o.metrics.count("generate", "failed", stage.GenerateFailed)

	if len(batch.Configurations) > 0 {
		report := o.deployer.ApplyAll(ctx, batch.Configurations)
		stage.Applied = report.Applied
		stage.ApplyFailed = report.Failed
		stage.Failures = append(stage.Failures, report.Failures...)

		o.metrics.count("deploy", "applied", report.Applied)
		o.metrics.count("deploy", "failed", report.Failed)
	}

	log.Info().
		Int("generated", stage.Generated).
		Int("skipped", stage.Skipped).
		Int("generate_failed", stage.GenerateFailed).
		Int("applied", stage.Applied).
		Int("apply_failed", stage.ApplyFailed).
		Msg("Template complete")

	return stage
}

func (o *Orchestrator) finish(summary *Summary) {
	summary.Duration = time.Since(summary.StartedAt)
	o.metrics.finish(summary.StartedAt)

	if o.metrics != nil && o.textfile != "" {
		if err := o.metrics.WriteTextfile(o.textfile); err != nil {
			o.log.Warn().Err(err).Str("path", o.textfile).Msg("Failed to write metrics textfile")
		}
	}

	o.log.Info().
		Str("run_id", summary.RunID).
		Dur("duration", summary.Duration).
		Int("stages", len(summary.Stages)).
		Int("failures", summary.Failures()).
		Msg("Run finished")
}
