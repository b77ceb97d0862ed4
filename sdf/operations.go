package sdf

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Union joins the shapes of two 3D SDFs into one. Is exact.
func Union(a, b SDF3) (SDF3, error) {
	if a == nil || b == nil {
		return nil, errors.New("nil shape in Union")
	}
	return &union3D{s1: a, s2: b}, nil
}

type union3D struct {
	s1, s2 SDF3
}

func (u *union3D) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	d2 := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(d2)
	err = u.s1.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	err = u.s2.Evaluate(pos, d2, userData)
	if err != nil {
		return err
	}
	minReduce(dist, d2)
	return nil
}

func (u *union3D) Bounds() ms3.Box {
	return u.s1.Bounds().Union(u.s2.Bounds())
}

// Difference returns the field of a with b removed, a-b. The boolean
// subtraction used to carve the text recess out of the label body.
func Difference(a, b SDF3) (SDF3, error) {
	if a == nil || b == nil {
		return nil, errors.New("nil shape in Difference")
	}
	return &diff3D{s1: a, s2: b}, nil
}

type diff3D struct {
	s1, s2 SDF3 // Performs s1-s2.
}

func (u *diff3D) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	d2 := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(d2)
	err = u.s1.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	err = u.s2.Evaluate(pos, d2, userData)
	if err != nil {
		return err
	}
	for i := range dist {
		dist[i] = maxf(dist[i], -d2[i])
	}
	return nil
}

func (u *diff3D) Bounds() ms3.Box {
	return u.s1.Bounds()
}

// Translate displaces a 3D shape by (x, y, z).
func Translate(s SDF3, x, y, z float32) (SDF3, error) {
	if s == nil {
		return nil, errors.New("nil shape in Translate")
	}
	return &translate3D{s: s, p: ms3.Vec{X: x, Y: y, Z: z}}, nil
}

type translate3D struct {
	s SDF3
	p ms3.Vec
}

func (t *translate3D) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	T := t.p
	for i, p := range pos {
		transformed[i] = ms3.Sub(p, T)
	}
	return t.s.Evaluate(transformed, dist, userData)
}

func (t *translate3D) Bounds() ms3.Box {
	bb := t.s.Bounds()
	return ms3.Box{Min: ms3.Add(bb.Min, t.p), Max: ms3.Add(bb.Max, t.p)}
}

// NewFrame places a shape at origin with its local axes mapped onto the
// orthonormal basis (ex, ey, ez). The basis must be right-handed and unit
// length within tolerance; rigid placement keeps the field exact.
func NewFrame(s SDF3, origin, ex, ey, ez ms3.Vec) (SDF3, error) {
	if s == nil {
		return nil, errors.New("nil shape in NewFrame")
	}
	const tol = 1e-4
	if absf(ms3.Norm(ex)-1) > tol || absf(ms3.Norm(ey)-1) > tol || absf(ms3.Norm(ez)-1) > tol {
		return nil, errors.New("frame basis vectors must be unit length")
	}
	if absf(ms3.Dot(ex, ey)) > tol || absf(ms3.Dot(ey, ez)) > tol || absf(ms3.Dot(ex, ez)) > tol {
		return nil, errors.New("frame basis vectors must be orthogonal")
	}
	if ms3.Dot(cross3(ex, ey), ez) < 0 {
		return nil, errors.New("frame basis must be right-handed")
	}
	return &frame3D{s: s, origin: origin, ex: ex, ey: ey, ez: ez}, nil
}

type frame3D struct {
	s          SDF3
	origin     ms3.Vec
	ex, ey, ez ms3.Vec
}

func (f *frame3D) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	for i, p := range pos {
		rel := ms3.Sub(p, f.origin)
		transformed[i] = ms3.Vec{
			X: ms3.Dot(rel, f.ex),
			Y: ms3.Dot(rel, f.ey),
			Z: ms3.Dot(rel, f.ez),
		}
	}
	return f.s.Evaluate(transformed, dist, userData)
}

func (f *frame3D) Bounds() ms3.Box {
	bb := f.s.Bounds()
	min := ms3.Vec{X: largenum, Y: largenum, Z: largenum}
	max := ms3.Scale(-1, min)
	for i := 0; i < 8; i++ {
		local := ms3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z}
		if i&1 != 0 {
			local.X = bb.Max.X
		}
		if i&2 != 0 {
			local.Y = bb.Max.Y
		}
		if i&4 != 0 {
			local.Z = bb.Max.Z
		}
		world := ms3.Add(f.origin, ms3.Add(
			ms3.Scale(local.X, f.ex),
			ms3.Add(ms3.Scale(local.Y, f.ey), ms3.Scale(local.Z, f.ez)),
		))
		min = ms3.MinElem(min, world)
		max = ms3.MaxElem(max, world)
	}
	return ms3.Box{Min: min, Max: max}
}

func cross3(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Cross returns the 3D cross product a x b.
func Cross(a, b ms3.Vec) ms3.Vec { return cross3(a, b) }

// NormalizeOrErr returns v scaled to unit length, or an error for vectors too
// short to normalize reliably.
func NormalizeOrErr(v ms3.Vec) (ms3.Vec, error) {
	n := ms3.Norm(v)
	if n < 1e-9 || math32.IsNaN(n) {
		return ms3.Vec{}, errors.New("cannot normalize near-zero vector")
	}
	return ms3.Scale(1/n, v), nil
}
