package sdf

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

const largenum = 1e20

// poly2D is a 2D field of one or more closed polygonal contours filled with
// the even-odd rule: a point is inside when a ray from it crosses the contour
// set an odd number of times. A glyph's counter (the hole of an "o") is simply
// a second contour, and a contour overlapping itself loses the doubly covered
// region, which is the cleanup behaviour text outlines need.
type poly2D struct {
	contours [][]ms2.Vec
	bb       ms2.Box
}

// NewPolygon creates a single closed polygon from a set of vertices.
// The contour is closed automatically; a repeated final vertex is discarded.
func NewPolygon(vertices []ms2.Vec) (SDF2, error) {
	return NewPolygonSet([][]ms2.Vec{vertices})
}

// NewPolygonSet creates a filled shape from several closed contours using
// even-odd fill semantics. Contours wholly inside another become holes.
func NewPolygonSet(contours [][]ms2.Vec) (SDF2, error) {
	if len(contours) == 0 {
		return nil, errors.New("polygon set needs at least one contour")
	}
	poly := poly2D{contours: make([][]ms2.Vec, len(contours))}
	min := ms2.Vec{X: largenum, Y: largenum}
	max := ms2.Vec{X: -largenum, Y: -largenum}
	for i, c := range contours {
		c, err := validateContour(c)
		if err != nil {
			return nil, err
		}
		for _, v := range c {
			min = ms2.MinElem(min, v)
			max = ms2.MaxElem(max, v)
		}
		poly.contours[i] = c
	}
	poly.bb = ms2.Box{Min: min, Max: max}
	return &poly, nil
}

func validateContour(vertices []ms2.Vec) ([]ms2.Vec, error) {
	if len(vertices) == 0 {
		return nil, errors.New("empty contour")
	}
	prevIdx := len(vertices) - 1
	if len(vertices) > 1 && vertices[0] == vertices[prevIdx] {
		vertices = vertices[:prevIdx] // Contour closes automatically.
		prevIdx--
	}
	if len(vertices) < 3 {
		return nil, errors.New("contour needs at least 3 distinct vertices")
	}
	for i := range vertices {
		if math32.IsNaN(vertices[i].X) || math32.IsNaN(vertices[i].Y) {
			return nil, errors.New("NaN value in contour vertices")
		}
		if vertices[i] == vertices[prevIdx] {
			return nil, errors.New("found two consecutive equal vertices in contour")
		}
		prevIdx = i
	}
	return vertices, nil
}

// Evaluate implements [SDF2]. Distance is to the nearest contour segment,
// signed by even-odd containment over all contours.
// https://www.shadertoy.com/view/wdBXRW
func (poly *poly2D) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if err := checkBuffers(pos, dist); err != nil {
		return err
	}
	for i, p := range pos {
		d := float32(largenum)
		inside := false
		for _, verts := range poly.contours {
			jv := len(verts) - 1
			for iv, v1 := range verts {
				v2 := verts[jv]
				e := ms2.Sub(v2, v1)
				w := ms2.Sub(p, v1)
				b := ms2.Sub(w, ms2.Scale(clampf(ms2.Dot(w, e)/ms2.Norm2(e), 0, 1), e))
				d = math32.Min(d, ms2.Norm2(b))
				// Even-odd crossing count from http://geomalgorithms.com/a03-_inclusion.html
				if (v1.Y > p.Y) != (v2.Y > p.Y) &&
					p.X < v1.X+e.X*(p.Y-v1.Y)/e.Y {
					inside = !inside
				}
				jv = iv
			}
		}
		d = math32.Sqrt(d)
		if inside {
			d = -d
		}
		dist[i] = d
	}
	return nil
}

// Bounds returns the bounding box of all contours.
func (poly *poly2D) Bounds() ms2.Box {
	return poly.bb
}
