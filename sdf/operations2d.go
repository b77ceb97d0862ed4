package sdf

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// Union2D joins the shapes of several 2D SDFs into one. Is exact.
func Union2D(shapes ...SDF2) (SDF2, error) {
	if len(shapes) == 0 {
		return nil, errors.New("Union2D needs at least 1 shape")
	}
	var u union2D
	for i, s := range shapes {
		if s == nil {
			return nil, fmt.Errorf("nil shape %d in Union2D", i)
		}
		if sub, ok := s.(*union2D); ok {
			// Flatten nested unions so evaluation stays one pass per member.
			u.joined = append(u.joined, sub.joined...)
		} else {
			u.joined = append(u.joined, s)
		}
	}
	if len(u.joined) == 1 {
		return u.joined[0], nil
	}
	return &u, nil
}

type union2D struct {
	joined []SDF2
}

func (u *union2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	auxDist := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(auxDist)
	err = u.joined[0].Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	for _, shape := range u.joined[1:] {
		err = shape.Evaluate(pos, auxDist, userData)
		if err != nil {
			return err
		}
		minReduce(dist, auxDist)
	}
	return nil
}

func (u *union2D) Bounds() ms2.Box {
	bb := u.joined[0].Bounds()
	for _, s := range u.joined[1:] {
		bb = bb.Union(s.Bounds())
	}
	return bb
}

// Difference2D returns the field of a with b removed, a-b.
func Difference2D(a, b SDF2) (SDF2, error) {
	if a == nil || b == nil {
		return nil, errors.New("nil shape in Difference2D")
	}
	return &diff2D{s1: a, s2: b}, nil
}

type diff2D struct {
	s1, s2 SDF2 // Performs s1-s2.
}

func (u *diff2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
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

func (u *diff2D) Bounds() ms2.Box {
	return u.s1.Bounds()
}

// Translate2D displaces a 2D shape by (dirX, dirY).
func Translate2D(s SDF2, dirX, dirY float32) (SDF2, error) {
	if s == nil {
		return nil, errors.New("nil shape in Translate2D")
	}
	if math32.IsNaN(dirX) || math32.IsNaN(dirY) {
		return nil, errors.New("NaN translation in Translate2D")
	}
	return &translate2D{s: s, p: ms2.Vec{X: dirX, Y: dirY}}, nil
}

type translate2D struct {
	s SDF2
	p ms2.Vec
}

func (t *translate2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V2.Acquire(len(pos))
	defer vp.V2.Release(transformed)
	T := t.p
	for i, p := range pos {
		transformed[i] = ms2.Sub(p, T)
	}
	return t.s.Evaluate(transformed, dist, userData)
}

func (t *translate2D) Bounds() ms2.Box {
	bb := t.s.Bounds()
	return ms2.Box{Min: ms2.Add(bb.Min, t.p), Max: ms2.Add(bb.Max, t.p)}
}

// Rotate2D returns the shape rotated counterclockwise about the origin
// by radians. Is exact.
func Rotate2D(s SDF2, radians float32) (SDF2, error) {
	if s == nil {
		return nil, errors.New("nil shape in Rotate2D")
	}
	if math32.IsNaN(radians) {
		return nil, errors.New("NaN angle in Rotate2D")
	}
	sin, cos := math32.Sincos(radians)
	return &rotate2D{s: s, sin: sin, cos: cos}, nil
}

type rotate2D struct {
	s        SDF2
	sin, cos float32
}

func (r *rotate2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V2.Acquire(len(pos))
	defer vp.V2.Release(transformed)
	// Inverse rotation of the probe points.
	for i, p := range pos {
		transformed[i] = ms2.Vec{
			X: r.cos*p.X + r.sin*p.Y,
			Y: -r.sin*p.X + r.cos*p.Y,
		}
	}
	return r.s.Evaluate(transformed, dist, userData)
}

func (r *rotate2D) Bounds() ms2.Box {
	bb := r.s.Bounds()
	corners := [4]ms2.Vec{
		bb.Min,
		{X: bb.Max.X, Y: bb.Min.Y},
		bb.Max,
		{X: bb.Min.X, Y: bb.Max.Y},
	}
	out := ms2.Box{
		Min: ms2.Vec{X: largenum, Y: largenum},
		Max: ms2.Vec{X: -largenum, Y: -largenum},
	}
	for _, c := range corners {
		w := ms2.Vec{X: r.cos*c.X - r.sin*c.Y, Y: r.sin*c.X + r.cos*c.Y}
		out.Min = ms2.MinElem(out.Min, w)
		out.Max = ms2.MaxElem(out.Max, w)
	}
	return out
}

// Scale2D scales the shape uniformly about the origin. Is exact.
func Scale2D(s SDF2, factor float32) (SDF2, error) {
	if s == nil {
		return nil, errors.New("nil shape in Scale2D")
	}
	if factor <= 0 || math32.IsNaN(factor) {
		return nil, errors.New("bad scale factor in Scale2D")
	}
	return &scale2D{s: s, sx: factor, sy: factor, dscale: factor}, nil
}

// ScaleXY2D scales the shape about the origin with independent X and Y
// factors. When sx != sy the returned field is a lower bound on the true
// distance (still sign-correct), which is enough for meshing.
func ScaleXY2D(s SDF2, sx, sy float32) (SDF2, error) {
	if s == nil {
		return nil, errors.New("nil shape in ScaleXY2D")
	}
	if sx <= 0 || sy <= 0 || math32.IsNaN(sx) || math32.IsNaN(sy) {
		return nil, errors.New("bad scale factor in ScaleXY2D")
	}
	return &scale2D{s: s, sx: sx, sy: sy, dscale: minf(sx, sy)}, nil
}

type scale2D struct {
	s      SDF2
	sx, sy float32
	dscale float32
}

func (sc *scale2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V2.Acquire(len(pos))
	defer vp.V2.Release(transformed)
	for i, p := range pos {
		transformed[i] = ms2.Vec{X: p.X / sc.sx, Y: p.Y / sc.sy}
	}
	if err := sc.s.Evaluate(transformed, dist, userData); err != nil {
		return err
	}
	for i := range dist {
		dist[i] *= sc.dscale
	}
	return nil
}

func (sc *scale2D) Bounds() ms2.Box {
	bb := sc.s.Bounds()
	return ms2.Box{
		Min: ms2.Vec{X: bb.Min.X * sc.sx, Y: bb.Min.Y * sc.sy},
		Max: ms2.Vec{X: bb.Max.X * sc.sx, Y: bb.Max.Y * sc.sy},
	}
}

// Extrude converts a 2D SDF into a 3D extrusion. Extrudes in both positive
// and negative Z direction, half of h both ways.
func Extrude(s SDF2, h float32) (SDF3, error) {
	if s == nil {
		return nil, errors.New("nil shape in Extrude")
	}
	if h <= 0 || math32.IsNaN(h) {
		return nil, errors.New("bad extrusion length")
	}
	return &extrusion{s: s, h: h}, nil
}

type extrusion struct {
	s SDF2
	h float32
}

func (e *extrusion) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	pos2 := vp.V2.Acquire(len(pos))
	defer vp.V2.Release(pos2)
	for i, p := range pos {
		pos2[i] = ms2.Vec{X: p.X, Y: p.Y}
	}
	err = e.s.Evaluate(pos2, dist, userData)
	if err != nil {
		return err
	}
	h := e.h / 2
	for i, p := range pos {
		d := dist[i]
		wy := math32.Abs(p.Z) - h
		dist[i] = math32.Min(0, math32.Max(d, wy)) + math32.Hypot(math32.Max(d, 0), math32.Max(wy, 0))
	}
	return nil
}

func (e *extrusion) Bounds() ms3.Box {
	b2 := e.s.Bounds()
	hd2 := e.h / 2
	return ms3.Box{
		Min: ms3.Vec{X: b2.Min.X, Y: b2.Min.Y, Z: -hd2},
		Max: ms3.Vec{X: b2.Max.X, Y: b2.Max.Y, Z: hd2},
	}
}
