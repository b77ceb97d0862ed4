package text

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/soypat/geometry/ms2"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"labelforge/sdf"
)

// Shaped renders text through HarfBuzz shaping, applying kerning pairs,
// ligature substitution and mark positioning before extracting glyph
// outlines. It is the highest quality engine and the default.
//
// Shaped is not safe for concurrent use; shaping and outline buffers are
// reused between calls.
type Shaped struct {
	shaper  shaping.HarfbuzzShaper
	face    *font.Face
	outline *sfnt.Font
	buf     sfnt.Buffer
	size    float32
}

// NewShaped parses ttf and returns a shaped engine with the argument em
// size in millimeters. The font data is parsed twice: once by go-text for
// shaping and once by sfnt for outline extraction.
func NewShaped(ttf []byte, sizeMM float32) (*Shaped, error) {
	if len(ttf) == 0 {
		return nil, errors.New("empty font data")
	}
	if sizeMM <= 0 {
		return nil, fmt.Errorf("non-positive font size %g", sizeMM)
	}
	face, err := font.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("parsing font for shaping: %w", err)
	}
	outline, err := sfnt.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parsing font for outlines: %w", err)
	}
	return &Shaped{face: face, outline: outline, size: sizeMM}, nil
}

// Line implements [Engine].
func (e *Shaped) Line(text string) (sdf.SDF2, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, ErrNoRenderableText
	}
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      e.face,
		Size:      fixed.Int26_6(e.size * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}
	out := e.shaper.Shape(input)

	var glyphs []sdf.SDF2
	var penX float32
	for _, g := range out.Glyphs {
		x := penX + fixedToFloat(g.XOffset)
		y := fixedToFloat(g.YOffset)
		penX += fixedToFloat(g.Advance)
		if g.GlyphID == 0 {
			// .notdef: the font has no glyph for this rune.
			continue
		}
		contours, err := e.glyphContours(sfnt.GlyphIndex(g.GlyphID), ms2.Vec{X: x, Y: y})
		if err != nil {
			return nil, err
		}
		if len(contours) == 0 {
			// Whitespace only advances the pen.
			continue
		}
		gs, err := sdf.NewPolygonSet(contours)
		if err != nil {
			return nil, fmt.Errorf("glyph %d outline: %w", g.GlyphID, err)
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

// glyphContours loads a glyph outline at the engine size and returns its
// contours offset by the pen position. sfnt outlines are Y-down; they are
// flipped to the Y-up model space here.
func (e *Shaped) glyphContours(gid sfnt.GlyphIndex, pen ms2.Vec) ([][]ms2.Vec, error) {
	segments, err := e.outline.LoadGlyph(&e.buf, gid, fixed.Int26_6(e.size*64), nil)
	if err != nil {
		if errors.Is(err, sfnt.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading glyph %d: %w", gid, err)
	}
	at := func(p fixed.Point26_6) ms2.Vec {
		return ms2.Vec{
			X: pen.X + float32(p.X)/64,
			Y: pen.Y - float32(p.Y)/64,
		}
	}
	var pn outlinePen
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			pn.moveTo(at(seg.Args[0]))
		case sfnt.SegmentOpLineTo:
			pn.lineTo(at(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			pn.quadTo(at(seg.Args[0]), at(seg.Args[1]))
		case sfnt.SegmentOpCubeTo:
			pn.cubeTo(at(seg.Args[0]), at(seg.Args[1]), at(seg.Args[2]))
		}
	}
	return pn.done(), nil
}

// detectScript returns the script of the first non-space rune, defaulting
// to Latin. Mixed-script labels should be split into runs by the caller.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
