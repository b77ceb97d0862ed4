package sdf

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

func mustPolygon(t *testing.T, verts []ms2.Vec) SDF2 {
	t.Helper()
	s, err := NewPolygon(verts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// unitSquare is a 2x2 square centered at the origin.
func unitSquare(t *testing.T) SDF2 {
	return mustPolygon(t, []ms2.Vec{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
	})
}

func eval2(t *testing.T, s SDF2, p ms2.Vec) float32 {
	t.Helper()
	d := make([]float32, 1)
	if err := s.Evaluate([]ms2.Vec{p}, d, &VecPool{}); err != nil {
		t.Fatal(err)
	}
	return d[0]
}

func eval3(t *testing.T, s SDF3, p ms3.Vec) float32 {
	t.Helper()
	d := make([]float32, 1)
	if err := s.Evaluate([]ms3.Vec{p}, d, &VecPool{}); err != nil {
		t.Fatal(err)
	}
	return d[0]
}

func within(t *testing.T, got, want, tol float32, msg string) {
	t.Helper()
	if math.Abs(float64(got-want)) > float64(tol) {
		t.Errorf("%s: got %v, want %v (tol %v)", msg, got, want, tol)
	}
}

func TestPolygonDistances(t *testing.T) {
	sq := unitSquare(t)
	cases := []struct {
		p    ms2.Vec
		want float32
	}{
		{ms2.Vec{X: 0, Y: 0}, -1},     // center
		{ms2.Vec{X: 0.5, Y: 0}, -0.5}, // inside, nearest right edge
		{ms2.Vec{X: 2, Y: 0}, 1},      // outside, facing edge
		{ms2.Vec{X: 2, Y: 2}, float32(math.Sqrt2)}, // outside corner
		{ms2.Vec{X: 0, Y: -3}, 2},
	}
	for _, tc := range cases {
		within(t, eval2(t, sq, tc.p), tc.want, 1e-5, "square distance")
	}
}

func TestPolygonAutoClose(t *testing.T) {
	// Repeating the first vertex at the end is accepted and ignored.
	closed := mustPolygon(t, []ms2.Vec{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: -1},
	})
	within(t, eval2(t, closed, ms2.Vec{}), -1, 1e-5, "auto-closed square center")
}

func TestPolygonErrors(t *testing.T) {
	if _, err := NewPolygon(nil); err == nil {
		t.Error("expected error for empty contour")
	}
	if _, err := NewPolygon([]ms2.Vec{{X: 0}, {X: 1}}); err == nil {
		t.Error("expected error for 2-vertex contour")
	}
	if _, err := NewPolygon([]ms2.Vec{{X: 0}, {X: 0}, {X: 1}, {Y: 1}}); err == nil {
		t.Error("expected error for consecutive duplicate vertices")
	}
	nan := float32(math.NaN())
	if _, err := NewPolygon([]ms2.Vec{{X: nan}, {X: 1}, {Y: 1}}); err == nil {
		t.Error("expected error for NaN vertex")
	}
	if _, err := NewPolygonSet(nil); err == nil {
		t.Error("expected error for empty contour set")
	}
}

func TestPolygonSetEvenOddHole(t *testing.T) {
	// 4x4 square with a 2x2 hole: an annulus under even-odd fill.
	s, err := NewPolygonSet([][]ms2.Vec{
		{{X: -2, Y: -2}, {X: 2, Y: -2}, {X: 2, Y: 2}, {X: -2, Y: 2}},
		{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval2(t, s, ms2.Vec{}), 1, 1e-5, "hole center is outside")
	within(t, eval2(t, s, ms2.Vec{X: 1.5}), -0.5, 1e-5, "ring interior")
	within(t, eval2(t, s, ms2.Vec{X: 3}), 1, 1e-5, "outside the ring")
}

func TestUnion2D(t *testing.T) {
	a := unitSquare(t)
	b := mustPolygon(t, []ms2.Vec{
		{X: 2, Y: -1}, {X: 4, Y: -1}, {X: 4, Y: 1}, {X: 2, Y: 1},
	})
	u, err := Union2D(a, b)
	if err != nil {
		t.Fatal(err)
	}
	// Point between the squares is 0.5 from both.
	within(t, eval2(t, u, ms2.Vec{X: 1.5}), 0.5, 1e-5, "gap between shapes")
	within(t, eval2(t, u, ms2.Vec{X: 3}), -1, 1e-5, "inside second shape")
	bb := u.Bounds()
	within(t, bb.Min.X, -1, 1e-6, "union bounds min")
	within(t, bb.Max.X, 4, 1e-6, "union bounds max")

	// Single shape passes through unchanged.
	single, err := Union2D(a)
	if err != nil {
		t.Fatal(err)
	}
	if single != a {
		t.Error("single-member union should return the member")
	}
	if _, err := Union2D(); err == nil {
		t.Error("expected error for empty union")
	}
	if _, err := Union2D(a, nil); err == nil {
		t.Error("expected error for nil member")
	}

	// Nested unions flatten into one membership list.
	nested, err := Union2D(u, a)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(nested.(*union2D).joined); got != 3 {
		t.Errorf("nested union flattened to %d members, want 3", got)
	}
}

func TestDifference2D(t *testing.T) {
	outer := unitSquare(t)
	inner := mustPolygon(t, []ms2.Vec{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	})
	d, err := Difference2D(outer, inner)
	if err != nil {
		t.Fatal(err)
	}
	if got := eval2(t, d, ms2.Vec{}); got < 0 {
		t.Errorf("carved center should be outside, got %v", got)
	}
	within(t, eval2(t, d, ms2.Vec{X: 0.75}), -0.25, 1e-5, "ring between inner and outer")
	if _, err := Difference2D(outer, nil); err == nil {
		t.Error("expected error for nil shape")
	}
}

func TestTranslate2D(t *testing.T) {
	s, err := Translate2D(unitSquare(t), 10, -5)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval2(t, s, ms2.Vec{X: 10, Y: -5}), -1, 1e-5, "translated center")
	bb := s.Bounds()
	within(t, bb.Min.X, 9, 1e-6, "translated bounds")
	within(t, bb.Max.Y, -4, 1e-6, "translated bounds")
}

func TestRotate2D(t *testing.T) {
	// Off-center 1x1 square at [1,2]x[-0.5,0.5], rotated a quarter turn CCW.
	sq := mustPolygon(t, []ms2.Vec{
		{X: 1, Y: -0.5}, {X: 2, Y: -0.5}, {X: 2, Y: 0.5}, {X: 1, Y: 0.5},
	})
	r, err := Rotate2D(sq, float32(math.Pi/2))
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval2(t, r, ms2.Vec{Y: 1.5}), -0.5, 1e-5, "rotated center")
	within(t, eval2(t, r, ms2.Vec{X: 2}), eval2(t, sq, ms2.Vec{Y: -2}), 1e-5, "rotation is rigid")
	bb := r.Bounds()
	within(t, bb.Min.Y, 1, 1e-5, "rotated bounds")
	within(t, bb.Max.X, 0.5, 1e-5, "rotated bounds")
	if _, err := Rotate2D(nil, 1); err == nil {
		t.Error("expected error for nil shape")
	}
}

func TestScale2D(t *testing.T) {
	s, err := Scale2D(unitSquare(t), 3)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval2(t, s, ms2.Vec{}), -3, 1e-5, "scaled interior distance")
	within(t, eval2(t, s, ms2.Vec{X: 5}), 2, 1e-5, "scaled exterior distance")
	bb := s.Bounds()
	within(t, bb.Max.X, 3, 1e-6, "scaled bounds")
	if _, err := Scale2D(unitSquare(t), 0); err == nil {
		t.Error("expected error for zero factor")
	}
}

func TestScaleXY2D(t *testing.T) {
	s, err := ScaleXY2D(unitSquare(t), 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	bb := s.Bounds()
	within(t, bb.Max.X, 4, 1e-6, "anisotropic bounds")
	within(t, bb.Max.Y, 2, 1e-6, "anisotropic bounds")
	// Sign is preserved even though the magnitude is a lower bound.
	if got := eval2(t, s, ms2.Vec{X: 3.5}); got >= 0 {
		t.Errorf("point inside stretched shape should be negative, got %v", got)
	}
	if got := eval2(t, s, ms2.Vec{Y: 2.5}); got <= 0 {
		t.Errorf("point outside stretched shape should be positive, got %v", got)
	}
	if _, err := ScaleXY2D(unitSquare(t), 1, -1); err == nil {
		t.Error("expected error for negative factor")
	}
}

func TestExtrude(t *testing.T) {
	box, err := Extrude(unitSquare(t), 4)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval3(t, box, ms3.Vec{}), -1, 1e-5, "center distance limited by square walls")
	within(t, eval3(t, box, ms3.Vec{Z: 3}), 1, 1e-5, "above the top cap")
	within(t, eval3(t, box, ms3.Vec{X: 2, Z: 3}), float32(math.Sqrt2), 1e-5, "edge diagonal")
	bb := box.Bounds()
	within(t, bb.Min.Z, -2, 1e-6, "extrusion centered on Z")
	within(t, bb.Max.Z, 2, 1e-6, "extrusion centered on Z")

	if _, err := Extrude(nil, 1); err == nil {
		t.Error("expected error for nil shape")
	}
	if _, err := Extrude(unitSquare(t), 0); err == nil {
		t.Error("expected error for zero height")
	}
}

func testBox3(t *testing.T) SDF3 {
	box, err := Extrude(unitSquare(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	return box
}

func TestUnion3DAndDifference3D(t *testing.T) {
	a := testBox3(t)
	b, err := Translate(testBox3(t), 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	u, err := Union(a, b)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval3(t, u, ms3.Vec{X: 1.5}), -0.5, 1e-5, "inside shifted member")
	bb := u.Bounds()
	within(t, bb.Max.X, 2, 1e-6, "union bounds")

	d, err := Difference(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := eval3(t, d, ms3.Vec{X: 0.5}); got < 0 {
		t.Errorf("overlap region should be carved, got %v", got)
	}
	within(t, eval3(t, d, ms3.Vec{X: -0.5}), 0.5-1, 1e-5, "remaining half")
}

func TestTranslate3D(t *testing.T) {
	s, err := Translate(testBox3(t), 5, 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval3(t, s, ms3.Vec{X: 5, Y: 5, Z: 5}), -1, 1e-5, "translated center")
	within(t, s.Bounds().Min.X, 4, 1e-6, "translated bounds")
}

func TestNewFrame(t *testing.T) {
	box := testBox3(t) // 2x2 footprint, 2 tall, centered.
	origin := ms3.Vec{X: 10, Y: 20, Z: 30}
	// Local X along world Y, local Y along world -X, local Z kept.
	ex := ms3.Vec{Y: 1}
	ey := ms3.Vec{X: -1}
	ez := ms3.Vec{Z: 1}
	f, err := NewFrame(box, origin, ex, ey, ez)
	if err != nil {
		t.Fatal(err)
	}
	within(t, eval3(t, f, origin), -1, 1e-5, "frame origin maps to local origin")
	// World point origin + 0.5*ex is local (0.5, 0, 0).
	p := ms3.Add(origin, ms3.Scale(0.5, ex))
	within(t, eval3(t, f, p), eval3(t, box, ms3.Vec{X: 0.5}), 1e-5, "frame rotation")

	bb := f.Bounds()
	within(t, bb.Min.X, 9, 1e-4, "rotated bounds")
	within(t, bb.Max.Y, 21, 1e-4, "rotated bounds")
}

func TestNewFrameRejectsBadBasis(t *testing.T) {
	box := testBox3(t)
	x, y, z := ms3.Vec{X: 1}, ms3.Vec{Y: 1}, ms3.Vec{Z: 1}
	if _, err := NewFrame(box, ms3.Vec{}, ms3.Scale(2, x), y, z); err == nil {
		t.Error("expected error for non-unit basis")
	}
	if _, err := NewFrame(box, ms3.Vec{}, x, x, z); err == nil {
		t.Error("expected error for non-orthogonal basis")
	}
	if _, err := NewFrame(box, ms3.Vec{}, y, x, z); err == nil {
		t.Error("expected error for left-handed basis")
	}
}

func TestVecPoolReuse(t *testing.T) {
	var vp VecPool
	a := vp.Float.Acquire(128)
	vp.Float.Release(a)
	b := vp.Float.Acquire(64)
	if &a[0] != &b[0] {
		t.Error("released buffer should be reused for smaller request")
	}
}

func TestGetVecPool(t *testing.T) {
	vp := &VecPool{}
	got, err := GetVecPool(vp)
	if err != nil || got != vp {
		t.Errorf("GetVecPool(*VecPool) = %v, %v", got, err)
	}
	if _, err := GetVecPool(42); err == nil {
		t.Error("expected error for userData without a pool")
	}
	if _, err := GetVecPool(nil); err == nil {
		t.Error("expected error for nil userData")
	}
}

func TestEvaluateBufferChecks(t *testing.T) {
	sq := unitSquare(t)
	if err := sq.Evaluate(nil, nil, &VecPool{}); err == nil {
		t.Error("expected error for empty buffers")
	}
	if err := sq.Evaluate(make([]ms2.Vec, 2), make([]float32, 3), &VecPool{}); err == nil {
		t.Error("expected error for mismatched buffers")
	}
}

func TestNormalizeOrErr(t *testing.T) {
	v, err := NormalizeOrErr(ms3.Vec{X: 3})
	if err != nil {
		t.Fatal(err)
	}
	within(t, v.X, 1, 1e-6, "normalized X")
	if _, err := NormalizeOrErr(ms3.Vec{}); err == nil {
		t.Error("expected error for zero vector")
	}
}
