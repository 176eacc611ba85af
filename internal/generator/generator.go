// Package generator renders per-device configuration from the inventory.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"labprov/internal/config"
	"labprov/internal/domain"
	"labprov/internal/repository"
)

// Renderer executes named templates
type Renderer interface {
	Has(name string) bool
	Names() []string
	Render(name string, data any) (string, error)
}

// Batch is the output of one generation pass for one template
type Batch struct {
	Template       string
	Configurations []domain.Configuration
	Skipped        []domain.DeviceError
	Failures       []domain.DeviceError
}

// Generator reads the store and renders one configuration per device
type Generator struct {
	store           repository.Store
	renderer        Renderer
	missingLoopback string
	log             zerolog.Logger
}

// New creates a Generator; missingLoopback is config.PolicySkip or config.PolicyFail
func New(store repository.Store, renderer Renderer, missingLoopback string, log zerolog.Logger) *Generator {
	if missingLoopback == "" {
		missingLoopback = config.PolicySkip
	}
	return &Generator{
		store:           store,
		renderer:        renderer,
		missingLoopback: missingLoopback,
		log:             log,
	}
}

// Generate re-reads every device and renders the named template for each.
// A store error, an unknown template or a missing loopback under the fail
// policy abort the pass; all other problems are per-device.
func (g *Generator) Generate(ctx context.Context, name string) (*Batch, error) {
	if !g.renderer.Has(name) {
		return nil, fmt.Errorf("generate %s: unknown template (available: %s)", name, strings.Join(g.renderer.Names(), ", "))
	}

	devices, err := g.store.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}

	batch := &Batch{Template: name}
	for _, dev := range devices {
		log := g.log.With().Str("device", dev.Hostname).Str("address", dev.ManagementAddress).Str("template", name).Logger()

		if !dev.HasLoopback() {
			derr := domain.NewDeviceError(domain.StageGenerate, dev, domain.ErrMissingLoopback)
			if g.missingLoopback == config.PolicyFail {
				return batch, fmt.Errorf("generate %s: %w", name, derr)
			}
			log.Warn().Msg("Skipping device without loopback address")
			batch.Skipped = append(batch.Skipped, derr)
			continue
		}

		isisNet, err := domain.ISISNet(dev.LoopbackAddress)
		if err != nil {
			log.Warn().Err(err).Str("stage", string(domain.StageGenerate)).Msg("Cannot derive IS-IS NET")
			batch.Failures = append(batch.Failures, domain.NewDeviceError(domain.StageGenerate, dev, err))
			continue
		}

		text, err := g.renderer.Render(name, map[string]any{
			"device":   dev,
			"isis_net": isisNet,
		})
		if err != nil {
			log.Warn().Err(err).Str("stage", string(domain.StageGenerate)).Msg("Render failed")
			batch.Failures = append(batch.Failures, domain.NewDeviceError(domain.StageGenerate, dev, err))
			continue
		}

		batch.Configurations = append(batch.Configurations, domain.Configuration{
			Device:   dev,
			Template: name,
			Text:     text,
		})
	}

	g.log.Info().
		Str("template", name).
		Int("generated", len(batch.Configurations)).
		Int("skipped", len(batch.Skipped)).
		Int("failed", len(batch.Failures)).
		Msg("Generation complete")

	return batch, nil
}
