package label

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
	"labelforge/profile"
	"labelforge/sdf"
	"labelforge/text"
)

// testProfile is a chamfered rectangle at the stock dimensions whose left
// edge is exactly the front face length: the chamfers shorten it from the
// full profile height to 27.5mm.
func testProfile() *profile.Profile {
	return &profile.Profile{Contours: [][]ms2.Vec{{
		{X: 0, Y: 0.68},
		{X: 0.68, Y: 0},
		{X: 37.7, Y: 0},
		{X: 37.7, Y: 28.86},
		{X: 0.68, Y: 28.86},
		{X: 0, Y: 28.18},
	}}}
}

// testConfig coarsens meshing so export tests stay quick.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MeshResolution = 0.5
	return cfg
}

func testEngine(t *testing.T) text.Engine {
	t.Helper()
	e, err := text.NewShaped(goregular.TTF, testConfig().FontSize)
	require.NoError(t, err)
	return e
}

func evalAt3(t *testing.T, s sdf.SDF3, p ms3.Vec) float32 {
	t.Helper()
	dist := make([]float32, 1)
	require.NoError(t, s.Evaluate([]ms3.Vec{p}, dist, &sdf.VecPool{}))
	return dist[0]
}

func TestConfigDefaultsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecessDepth = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FontSize = 30
	assert.Error(t, cfg.Validate(), "font taller than profile")

	cfg = DefaultConfig()
	cfg.Padding = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "label.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recess_depth: 1.2\ntext_engine: basic\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, cfg.RecessDepth, 1e-6)
	assert.Equal(t, "basic", cfg.TextEngine)
	// Unset fields keep defaults.
	assert.InDelta(t, 28.86, cfg.TargetHeight, 1e-6)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("recess_depth: -1\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestAssemble(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, nil)
	engine := testEngine(t)
	field, err := engine.Line("I")
	require.NoError(t, err)

	asm, err := b.Assemble(testProfile(), field)
	require.NoError(t, err)
	assert.InDelta(t, float64(field.Bounds().Size().X+cfg.Padding), float64(asm.Width), 1e-4)

	bb := asm.Body.Bounds()
	assert.InDelta(t, 0, bb.Min.X, 1e-3)
	assert.InDelta(t, 0, bb.Min.Y, 1e-3)
	assert.InDelta(t, 0, bb.Min.Z, 1e-3)
	assert.InDelta(t, 37.7, bb.Size().X, 1e-2)
	assert.InDelta(t, 28.86, bb.Size().Y, 1e-2)
	assert.InDelta(t, float64(asm.Width), float64(bb.Size().Z), 1e-2)
}

func TestAssembleRecessAndInsert(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, nil)
	engine := testEngine(t)
	field, err := engine.Line("I")
	require.NoError(t, err)
	asm, err := b.Assemble(testProfile(), field)
	require.NoError(t, err)

	// The front face is the profile's left edge, at x=0 after rebasing,
	// centered at half height and half width. The capital I covers the
	// text origin, so the face center lies inside the recess.
	center := ms3.Vec{Y: 28.86 / 2, Z: asm.Width / 2}

	inRecess := ms3.Add(center, ms3.Vec{X: cfg.RecessDepth / 2})
	assert.Greater(t, evalAt3(t, asm.Body, inRecess), float32(0),
		"body must be carved out inside the recess")
	assert.Less(t, evalAt3(t, asm.Insert, inRecess), float32(0),
		"insert must fill the recess")

	behindRecess := ms3.Add(center, ms3.Vec{X: cfg.RecessDepth + 1})
	assert.Less(t, evalAt3(t, asm.Body, behindRecess), float32(0),
		"body must be solid behind the recess")
	assert.Greater(t, evalAt3(t, asm.Insert, behindRecess), float32(0),
		"insert must not extend past recess depth")

	// Solid far from any text.
	assert.Less(t, evalAt3(t, asm.Body, ms3.Vec{X: 20, Y: 14, Z: 2}), float32(0))
}

func TestAssembleInsertFillsRecessFlush(t *testing.T) {
	// The union of carved body and insert should match the plain
	// extrusion at the face center: insert flush, no gap and no bulge.
	cfg := testConfig()
	b := NewBuilder(cfg, nil)
	engine := testEngine(t)
	field, err := engine.Line("I")
	require.NoError(t, err)
	asm, err := b.Assemble(testProfile(), field)
	require.NoError(t, err)

	whole, err := sdf.Union(asm.Body, asm.Insert)
	require.NoError(t, err)
	for _, p := range []ms3.Vec{
		{X: 0.2, Y: 28.86 / 2, Z: asm.Width / 2},
		{X: 0.5, Y: 28.86 / 2, Z: asm.Width / 2},
		{X: 5, Y: 14, Z: asm.Width / 2},
	} {
		assert.Less(t, evalAt3(t, whole, p), float32(0),
			"union of body and insert must be solid at %v", p)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, nil)
	engine := testEngine(t)
	field, err := engine.Line("AB")
	require.NoError(t, err)

	asm1, err := b.Assemble(testProfile(), field)
	require.NoError(t, err)
	asm2, err := b.Assemble(testProfile(), field)
	require.NoError(t, err)

	assert.Equal(t, asm1.Width, asm2.Width)
	assert.Equal(t, asm1.Body.Bounds(), asm2.Body.Bounds())
	probe := ms3.Vec{X: 1, Y: 10, Z: 5}
	assert.Equal(t, evalAt3(t, asm1.Body, probe), evalAt3(t, asm2.Body, probe))
}

func TestFindFrontFaceError(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder(cfg, nil)
	// Plain square: no edge is near 27.5mm.
	square := &profile.Profile{Contours: [][]ms2.Vec{{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
	}}}
	engine := testEngine(t)
	field, err := engine.Line("I")
	require.NoError(t, err)
	_, err = b.Assemble(square, field)
	assert.ErrorIs(t, err, ErrNoFrontFace)
	assert.Contains(t, err.Error(), "27.5")
}

func TestPipelineGenerateSTL(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPipeline(testConfig(), testProfile(), nil)
	require.NoError(t, err)
	out := filepath.Join(dir, "allen_keys.stl")
	require.NoError(t, p.Generate(testEngine(t), "I", out, "stl"))

	for _, want := range []string{"allen_keys_body.stl", "allen_keys_text.stl"} {
		_, err := os.Stat(filepath.Join(dir, want))
		assert.NoError(t, err, want)
	}
	// The combined path itself is not written.
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestPipelineGenerate3MF(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPipeline(testConfig(), testProfile(), nil)
	require.NoError(t, err)
	out := filepath.Join(dir, "label.3mf")
	require.NoError(t, p.Generate(testEngine(t), "I", out, "3mf"))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var model string
	for _, f := range zr.File {
		if f.Name == "3D/3dmodel.model" {
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			model = string(data)
		}
	}
	require.NotEmpty(t, model, "container must hold the model document")
	assert.Contains(t, model, `name="label_body"`)
	assert.Contains(t, model, `name="text_insert"`)
	assert.Contains(t, model, bodyColor)
	assert.Contains(t, model, insertColor)
}

func TestPipelineUnrenderableText(t *testing.T) {
	p, err := NewPipeline(testConfig(), testProfile(), nil)
	require.NoError(t, err)
	err = p.Generate(testEngine(t), "   ", filepath.Join(t.TempDir(), "x.3mf"), "3mf")
	assert.ErrorIs(t, err, text.ErrNoRenderableText)
	assert.True(t, IsInputError(err))
}

func TestRunBatchPartialSuccess(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPipeline(testConfig(), testProfile(), nil)
	require.NoError(t, err)
	factory := func() (text.Engine, error) {
		return text.NewShaped(goregular.TTF, testConfig().FontSize)
	}
	// The airplane glyph is not in Go Regular, so that label fails with
	// no renderable text while the other succeeds.
	labels := []string{"I", "✈✈"}
	res, err := p.RunBatch(factory, labels, dir, "3mf", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Contains(t, res.Errors, "✈✈")
	assert.ErrorIs(t, res.Errors["✈✈"], text.ErrNoRenderableText)

	_, err = os.Stat(filepath.Join(dir, "i.3mf"))
	assert.NoError(t, err)
}

func TestReadLabelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("Socket Wrenches\n\n   \nAllen Keys\n"), 0o644))
	labels, err := ReadLabelFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Socket Wrenches", "Allen Keys"}, labels)

	_, err = ReadLabelFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Socket Wrenches":  "socket_wrenches",
		"  Allen  Keys  ":  "allen_keys",
		"1/4\" Drive":      "1_4_drive",
		"Phillips #2":      "phillips_2",
		"!!!":              "label",
		"":                 "label",
		"already_ok":       "already_ok",
		"Träger 5mm":       "tr_ger_5mm",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}

func TestUniqueNames(t *testing.T) {
	names := uniqueNames([]string{"Saw", "saw", "SAW!", "file"})
	assert.Equal(t, []string{"saw", "saw_2", "saw_3", "file"}, names)

	// A label that already carries a counter suffix must not be handed
	// the same name as a deduplicated repeat.
	names = uniqueNames([]string{"saw", "saw_2", "saw"})
	assert.Equal(t, []string{"saw", "saw_2", "saw_3"}, names)
}
