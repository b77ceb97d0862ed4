package text

import (
	"os/exec"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
	"labelforge/sdf"
)

const testSize = 16

func engines(t *testing.T) map[string]Engine {
	t.Helper()
	shaped, err := NewShaped(goregular.TTF, testSize)
	require.NoError(t, err)
	basic, err := NewBasic(goregular.TTF, testSize)
	require.NoError(t, err)
	return map[string]Engine{"shaped": shaped, "basic": basic}
}

// evalAt evaluates the field at a single position.
func evalAt(t *testing.T, s sdf.SDF2, p ms2.Vec) float32 {
	t.Helper()
	dist := make([]float32, 1)
	require.NoError(t, s.Evaluate([]ms2.Vec{p}, dist, &sdf.VecPool{}))
	return dist[0]
}

func TestEngineLineBasics(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s, err := e.Line("A")
			require.NoError(t, err)
			bb := s.Bounds()
			sz := bb.Size()
			assert.Greater(t, sz.X, float32(0))
			assert.Greater(t, sz.Y, float32(0))
			assert.Less(t, sz.X, float32(testSize), "single letter narrower than em size")

			// Centered on origin.
			c := bb.Center()
			assert.InDelta(t, 0, c.X, 1e-3)
			assert.InDelta(t, 0, c.Y, 1e-3)

			// Far outside the glyph the distance is clearly positive.
			d := evalAt(t, s, ms2.Vec{X: bb.Max.X + 10, Y: 0})
			assert.Greater(t, d, float32(5))
		})
	}
}

func TestEngineGlyphInterior(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			// Sample a coarse grid over the capital I and require both
			// filled and empty regions.
			s, err := e.Line("I")
			require.NoError(t, err)
			bb := s.Bounds()
			var pos []ms2.Vec
			const n = 12
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					pos = append(pos, ms2.Vec{
						X: bb.Min.X + bb.Size().X*(float32(i)+0.5)/n,
						Y: bb.Min.Y + bb.Size().Y*(float32(j)+0.5)/n,
					})
				}
			}
			dist := make([]float32, len(pos))
			require.NoError(t, s.Evaluate(pos, dist, &sdf.VecPool{}))
			var inside, outside int
			for _, d := range dist {
				if d < 0 {
					inside++
				} else {
					outside++
				}
			}
			assert.Greater(t, inside, 0, "glyph must have filled interior")
		})
	}
}

func TestEngineCounterIsHole(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s, err := e.Line("O")
			require.NoError(t, err)
			// The counter of a centered O contains the origin.
			d := evalAt(t, s, ms2.Vec{})
			assert.Greater(t, d, float32(0), "center of O is a hole, distance must be positive")
		})
	}
}

func TestEngineWhitespaceOnly(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := e.Line("   ")
			assert.ErrorIs(t, err, ErrNoRenderableText)
			_, err = e.Line("")
			assert.ErrorIs(t, err, ErrNoRenderableText)
		})
	}
}

func TestEngineUnmappedRunes(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			// Go Regular has no airplane glyph; the placeholder box must
			// not be rendered in its place.
			_, err := e.Line("✈✈")
			assert.ErrorIs(t, err, ErrNoRenderableText)

			// Mapped glyphs still render when mixed with unmapped ones.
			line, err := e.Line("I✈")
			require.NoError(t, err)
			sz := line.Bounds().Size()
			assert.Less(t, sz.X, sz.Y, "lone glyph should be taller than wide")
		})
	}
}

func TestEngineWidthGrows(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			a, err := e.Line("A")
			require.NoError(t, err)
			ab, err := e.Line("AXB")
			require.NoError(t, err)
			assert.Greater(t, ab.Bounds().Size().X, a.Bounds().Size().X)
		})
	}
}

func TestEngineSpaceAdvances(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			tight, err := e.Line("AB")
			require.NoError(t, err)
			spaced, err := e.Line("A B")
			require.NoError(t, err)
			assert.Greater(t, spaced.Bounds().Size().X, tight.Bounds().Size().X)
		})
	}
}

func TestNewEngineConstructors(t *testing.T) {
	opts := Options{TTF: goregular.TTF, SizeMM: testSize}
	for _, kind := range []string{"shaped", "basic", "SHAPED"} {
		e, err := NewEngine(kind, opts)
		require.NoError(t, err, kind)
		require.NotNil(t, e)
	}
	_, err := NewEngine("freetype", opts)
	assert.Error(t, err)

	_, err = NewShaped(nil, testSize)
	assert.Error(t, err)
	_, err = NewBasic([]byte("not a font"), testSize)
	assert.Error(t, err)
	_, err = NewShaped(goregular.TTF, 0)
	assert.Error(t, err)
}

func TestInkscapeEngine(t *testing.T) {
	if _, err := exec.LookPath("inkscape"); err != nil {
		t.Skip("inkscape executable not installed")
	}
	e, err := NewInkscape(InkscapeOptions{SizeMM: testSize})
	require.NoError(t, err)
	s, err := e.Line("TAPE")
	require.NoError(t, err)
	sz := s.Bounds().Size()
	assert.Greater(t, sz.X, sz.Y, "word should be wider than tall")
}
