package label

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"labelforge/profile"
	"labelforge/text"
)

// Pipeline runs the full generation sequence for one label: render text,
// assemble the solids, mesh and export. The profile is scaled once at
// construction and shared across labels; it is read-only afterwards, so a
// Pipeline may be used concurrently as long as each goroutine brings its
// own text engine state (see Generate).
type Pipeline struct {
	cfg      Config
	scaled   *profile.Profile
	builder  *Builder
	exporter *Exporter
	log      *zap.Logger
}

// NewPipeline scales prof to the configured dimensions and prepares the
// shared stages.
func NewPipeline(cfg Config, prof *profile.Profile, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := profile.ParseScalePolicy(cfg.ScalePolicy)
	if err != nil {
		return nil, err
	}
	scaled, err := prof.ScaleTo(cfg.TargetDepth, cfg.TargetHeight, policy)
	if err != nil {
		return nil, fmt.Errorf("scaling profile: %w", err)
	}
	return &Pipeline{
		cfg:      cfg,
		scaled:   scaled,
		builder:  NewBuilder(cfg, log),
		exporter: NewExporter(cfg, log),
		log:      log,
	}, nil
}

// Generate produces one label file (or file pair for STL). Errors carry
// the failing stage name. engine is passed per call because the text
// engines keep mutable shaping state and are not safe to share between
// goroutines.
func (p *Pipeline) Generate(engine text.Engine, labelText, outPath, format string) error {
	p.log.Info("generating label", zap.String("text", labelText), zap.String("output", outPath))

	field, err := engine.Line(labelText)
	if err != nil {
		return fmt.Errorf("render text: %w", err)
	}
	asm, err := p.builder.Assemble(p.scaled, field)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	p.log.Debug("assembled",
		zap.Float32("width", asm.Width),
		zap.Float32("textWidth", asm.TextWidth),
	)
	if err := p.exporter.Export(asm, outPath, format); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// IsInputError reports whether err stems from unusable label text rather
// than an environment or I/O failure.
func IsInputError(err error) bool {
	return errors.Is(err, text.ErrNoRenderableText) || errors.Is(err, ErrNoFrontFace)
}
