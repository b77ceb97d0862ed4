// Package text converts label strings into 2D signed distance fields.
// Three engines are available: a HarfBuzz-shaped engine with full kerning
// and ligature support, a basic TrueType engine with kern-table spacing,
// and an engine that shells out to Inkscape for text-to-path conversion.
package text

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/geometry/ms2"
	"labelforge/sdf"
)

// ErrNoRenderableText is returned when a label string produces no glyph
// outlines, for example whitespace-only input.
var ErrNoRenderableText = errors.New("text produces no renderable glyphs")

// Engine renders a single line of text as a 2D signed distance field.
type Engine interface {
	// Line returns the filled outline of text, centered on the origin.
	// The field's bounding box gives the rendered text dimensions.
	Line(text string) (sdf.SDF2, error)
}

// Options configures engine construction.
type Options struct {
	// TTF is the raw font file contents, used by the shaped and basic
	// engines.
	TTF []byte
	// SizeMM is the em size in millimeters.
	SizeMM float32
	// FontFamily names the font for the Inkscape engine, which resolves
	// fonts through the system fontconfig instead of a TTF blob.
	FontFamily string
}

// NewEngine constructs the named engine. Valid kinds are "shaped",
// "basic" and "inkscape".
func NewEngine(kind string, opts Options) (Engine, error) {
	switch strings.ToLower(kind) {
	case "shaped":
		return NewShaped(opts.TTF, opts.SizeMM)
	case "basic":
		return NewBasic(opts.TTF, opts.SizeMM)
	case "inkscape":
		return NewInkscape(InkscapeOptions{FontFamily: opts.FontFamily, SizeMM: opts.SizeMM})
	}
	return nil, fmt.Errorf("unknown text engine %q, want \"shaped\", \"basic\" or \"inkscape\"", kind)
}

// glyphSubdiv is the number of line segments each outline bezier span is
// flattened into. Label text is printed at millimeter scale so a fixed
// count resolves well below nozzle resolution.
const glyphSubdiv = 8

// outlinePen accumulates glyph outline drawing commands into closed
// polygonal contours.
type outlinePen struct {
	contours [][]ms2.Vec
	cur      []ms2.Vec
}

func (p *outlinePen) moveTo(v ms2.Vec) {
	p.closeContour()
	p.cur = append(p.cur, v)
}

func (p *outlinePen) lineTo(v ms2.Vec) {
	p.cur = append(p.cur, v)
}

func (p *outlinePen) quadTo(ctl, end ms2.Vec) {
	start := p.cur[len(p.cur)-1]
	for i := 1; i <= glyphSubdiv; i++ {
		t := float32(i) / glyphSubdiv
		u := 1 - t
		a := ms2.Scale(u*u, start)
		b := ms2.Scale(2*u*t, ctl)
		c := ms2.Scale(t*t, end)
		p.cur = append(p.cur, ms2.Add(a, ms2.Add(b, c)))
	}
}

func (p *outlinePen) cubeTo(ctl1, ctl2, end ms2.Vec) {
	start := p.cur[len(p.cur)-1]
	for i := 1; i <= glyphSubdiv; i++ {
		t := float32(i) / glyphSubdiv
		u := 1 - t
		a := ms2.Scale(u*u*u, start)
		b := ms2.Scale(3*u*u*t, ctl1)
		c := ms2.Scale(3*u*t*t, ctl2)
		d := ms2.Scale(t*t*t, end)
		p.cur = append(p.cur, ms2.Add(ms2.Add(a, b), ms2.Add(c, d)))
	}
}

// closeContour finishes the contour in progress, dropping a duplicated
// closing vertex and discarding degenerate contours.
func (p *outlinePen) closeContour() {
	c := p.cur
	p.cur = nil
	if len(c) > 1 && c[0] == c[len(c)-1] {
		c = c[:len(c)-1]
	}
	if len(c) >= 3 {
		p.contours = append(p.contours, c)
	}
}

func (p *outlinePen) done() [][]ms2.Vec {
	p.closeContour()
	return p.contours
}

// centerAtOrigin translates s so its bounding box center lands on the
// origin.
func centerAtOrigin(s sdf.SDF2) (sdf.SDF2, error) {
	c := s.Bounds().Center()
	return sdf.Translate2D(s, -c.X, -c.Y)
}
