package text

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/golang/freetype/truetype"
	"github.com/soypat/geometry/ms2"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"labelforge/sdf"
)

// Basic renders text directly from TrueType glyph programs. Spacing uses
// advance widths and the font's kern table; there is no ligature
// substitution or complex script support. It exists as a dependency-light
// fallback when shaped output is not wanted.
//
// Basic is not safe for concurrent use.
type Basic struct {
	ttf  truetype.Font
	gb   truetype.GlyphBuf
	size float32
}

// NewBasic parses ttf and returns a basic engine with the argument em size
// in millimeters.
func NewBasic(ttf []byte, sizeMM float32) (*Basic, error) {
	if len(ttf) == 0 {
		return nil, errors.New("empty font data")
	}
	if sizeMM <= 0 {
		return nil, fmt.Errorf("non-positive font size %g", sizeMM)
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parsing TTF: %w", err)
	}
	return &Basic{ttf: *f, size: sizeMM}, nil
}

// scale is the fixed point scale glyphs are loaded at: one font unit per
// fixed point unit, converted to millimeters by scaleout afterwards.
func (e *Basic) scale() fixed.Int26_6 {
	return fixed.Int26_6(e.ttf.FUnitsPerEm())
}

func (e *Basic) scaleout() float32 {
	return e.size / float32(e.ttf.FUnitsPerEm())
}

// Line implements [Engine].
func (e *Basic) Line(text string) (sdf.SDF2, error) {
	scale := e.scale()
	scaleout := e.scaleout()
	var glyphs []sdf.SDF2
	var xOfs int64
	var idxPrev truetype.Index
	for ic, c := range text {
		if !unicode.IsGraphic(c) {
			return nil, fmt.Errorf("char %q is not graphic", c)
		}
		idx := e.ttf.Index(c)
		if idx == 0 && !unicode.IsSpace(c) {
			// Unmapped rune: skip rather than render the placeholder glyph.
			continue
		}
		hm := e.ttf.HMetric(scale, idx)
		if unicode.IsSpace(c) {
			if c == '\t' {
				hm.AdvanceWidth *= 4
			}
			xOfs += int64(hm.AdvanceWidth)
			continue
		}
		xOfs += int64(e.ttf.Kern(scale, idxPrev, idx))
		idxPrev = idx
		if ic == 0 {
			xOfs += int64(hm.LeftSideBearing)
		}
		contours, err := e.glyphContours(idx, float32(xOfs)*scaleout, scaleout)
		if err != nil {
			return nil, fmt.Errorf("char %q: %w", c, err)
		}
		xOfs += int64(hm.AdvanceWidth)
		if len(contours) == 0 {
			continue
		}
		gs, err := sdf.NewPolygonSet(contours)
		if err != nil {
			return nil, fmt.Errorf("char %q outline: %w", c, err)
		}
		glyphs = append(glyphs, gs)
	}
	if len(glyphs) == 0 {
		return nil, ErrNoRenderableText
	}
	line, err := sdf.Union2D(glyphs...)
	if err != nil {
		return nil, err
	}
	return centerAtOrigin(line)
}

// glyphContours loads the glyph program for idx and flattens each contour
// into a polygon, offset penX millimeters along X.
func (e *Basic) glyphContours(idx truetype.Index, penX, scaleout float32) ([][]ms2.Vec, error) {
	g := &e.gb
	if err := g.Load(&e.ttf, e.scale(), idx, font.HintingNone); err != nil {
		return nil, err
	}
	var contours [][]ms2.Vec
	start := 0
	for _, end := range g.Ends {
		c := flattenQuadContour(g.Points[start:end], penX, scaleout)
		start = end
		if len(c) >= 3 {
			contours = append(contours, c)
		}
	}
	return contours, nil
}

// flattenQuadContour converts one TrueType contour of on-curve and
// off-curve points into a polygon. Consecutive off-curve points imply an
// on-curve point at their midpoint.
func flattenQuadContour(points []truetype.Point, penX, scaleout float32) []ms2.Vec {
	n := len(points)
	if n < 2 {
		return nil
	}
	p2v := func(p truetype.Point) ms2.Vec {
		return ms2.Vec{X: float32(p.X)*scaleout + penX, Y: float32(p.Y) * scaleout}
	}
	var poly []ms2.Vec
	appendQuadSpan := func(v0, ctl, v2 ms2.Vec) {
		for i := 1; i <= glyphSubdiv; i++ {
			t := float32(i) / glyphSubdiv
			u := 1 - t
			a := ms2.Scale(u*u, v0)
			b := ms2.Scale(2*u*t, ctl)
			c := ms2.Scale(t*t, v2)
			poly = append(poly, ms2.Add(a, ms2.Add(b, c)))
		}
	}
	i := 0
	for i < n {
		p0, p1, p2 := points[i], points[(i+1)%n], points[(i+2)%n]
		onBits := p0.Flags&1 | (p1.Flags&1)<<1 | (p2.Flags&1)<<2
		v0, v1, v2 := p2v(p0), p2v(p1), p2v(p2)
		implicit0 := ms2.Scale(0.5, ms2.Add(v0, v1))
		implicit1 := ms2.Scale(0.5, ms2.Add(v1, v2))
		switch onBits {
		case 0b010, 0b110, 0b011, 0b111:
			// On-curve point followed by anything: straight segment.
			poly = append(poly, v0)
			i++
			continue
		case 0b000:
			// Two implicit on-curve midpoints around an off point.
			poly = append(poly, implicit0)
			appendQuadSpan(implicit0, v1, implicit1)
			i++
		case 0b001:
			poly = append(poly, v0)
			appendQuadSpan(v0, v1, implicit1)
			i++
		case 0b100:
			poly = append(poly, implicit0)
			appendQuadSpan(implicit0, v1, v2)
			i += 2
		case 0b101:
			poly = append(poly, v0)
			appendQuadSpan(v0, v1, v2)
			i += 2
		}
	}
	// The sampled spans already land on the next segment start; drop
	// duplicated consecutive vertices.
	return dedupVertices(poly)
}

func dedupVertices(poly []ms2.Vec) []ms2.Vec {
	if len(poly) < 2 {
		return poly
	}
	out := poly[:1]
	for _, v := range poly[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
