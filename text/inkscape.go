package text

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"labelforge/profile"
	"labelforge/sdf"
)

// InkscapeOptions configures the Inkscape engine.
type InkscapeOptions struct {
	// FontFamily is the fontconfig family name rendered by Inkscape.
	// Defaults to "sans-serif".
	FontFamily string
	// SizeMM is the em size in millimeters.
	SizeMM float32
	// BinaryPath overrides the inkscape executable location. When empty
	// the executable is resolved from PATH.
	BinaryPath string
	// Timeout bounds a single conversion. Defaults to 30 seconds.
	Timeout time.Duration
}

// Inkscape renders text by writing a temporary SVG document, invoking the
// inkscape executable to convert text to paths, and importing the
// resulting outlines. It produces the same letterforms Inkscape itself
// would, which is useful for matching labels drawn in Inkscape, at the
// cost of an external process per call.
type Inkscape struct {
	opts InkscapeOptions
	bin  string
}

// NewInkscape resolves the inkscape executable and returns the engine.
func NewInkscape(opts InkscapeOptions) (*Inkscape, error) {
	if opts.SizeMM <= 0 {
		return nil, fmt.Errorf("non-positive font size %g", opts.SizeMM)
	}
	if opts.FontFamily == "" {
		opts.FontFamily = "sans-serif"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	bin := opts.BinaryPath
	if bin == "" {
		var err error
		bin, err = exec.LookPath("inkscape")
		if err != nil {
			return nil, fmt.Errorf("inkscape executable not found: %w", err)
		}
	}
	return &Inkscape{opts: opts, bin: bin}, nil
}

// Line implements [Engine].
func (e *Inkscape) Line(text string) (sdf.SDF2, error) {
	if len(text) == 0 {
		return nil, ErrNoRenderableText
	}
	dir, err := os.MkdirTemp("", "labelforge-inkscape-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "text.svg")
	out := filepath.Join(dir, "paths.svg")
	if err := os.WriteFile(in, []byte(e.document(text)), 0o644); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, e.bin,
		"--export-text-to-path",
		"--export-plain-svg",
		"-o", out,
		in,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("inkscape conversion failed: %w: %s", err, output)
	}

	p, err := profile.Load(out)
	if err != nil {
		if errors.Is(err, profile.ErrNoShapes) {
			return nil, ErrNoRenderableText
		}
		return nil, fmt.Errorf("importing inkscape output: %w", err)
	}
	s, err := p.SDF()
	if err != nil {
		return nil, err
	}
	return centerAtOrigin(s)
}

// document builds the temporary SVG fed to Inkscape. Units are
// millimeters so exported path coordinates come back in model units.
func (e *Inkscape) document(text string) string {
	const canvas = 1000
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]dmm" height="%[1]dmm" viewBox="0 0 %[1]d %[1]d">`+
			`<text x="%d" y="%d" font-family=%q font-size="%g">%s</text></svg>`,
		canvas, canvas/2, canvas/2, e.opts.FontFamily, e.opts.SizeMM, xmlEscape(text),
	)
}

func xmlEscape(s string) string {
	var out []byte
	for _, r := range s {
		switch r {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, string(r)...)
		}
	}
	return string(out)
}
