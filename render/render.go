// Package render meshes signed distance fields into triangle soups and
// writes the results as binary STL files or multi-part 3MF containers.
package render

import (
	"errors"
	"io"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"labelforge/sdf"
)

// Renderer wraps the ReadTriangles method. Implementations produce a stream
// of triangles terminated by io.EOF, in the manner of io.Reader.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// trisPerCell is the worst case triangle yield of one grid cell:
// six tetrahedra of up to two triangles each.
const trisPerCell = 12

// GridRenderer meshes an SDF3 by splitting its bounding box into a uniform
// grid and marching tetrahedra over every cell. Tetrahedra generate a few
// more triangles than marching cubes but need no case tables and always
// produce a watertight surface.
type GridRenderer struct {
	s      sdf.SDF3
	origin ms3.Vec
	res    float32
	// nx, ny, nz are cell counts per axis. The corner lattice is one larger.
	nx, ny, nz int

	// plane0 and plane1 hold corner distances of the slab being marched,
	// each of length (nx+1)*(ny+1).
	plane0, plane1 []float32
	posbuf         []ms3.Vec

	// march position: slab iz, then cell (ix, iy) within it. planeZ is
	// the slab the distance planes currently hold; it lags iz by one
	// whenever a new slab is entered and must be refreshed.
	iz, ix, iy int
	planeZ     int
	done       bool
}

// NewGridRenderer creates a renderer for s with the argument cell resolution.
// The SDF bounds are inflated 1% about their center so the surface never lies
// exactly on the lattice boundary.
func NewGridRenderer(s sdf.SDF3, cellResolution float32) (*GridRenderer, error) {
	if s == nil {
		return nil, errors.New("nil SDF3 argument to NewGridRenderer")
	}
	if cellResolution <= 0 || math32.IsNaN(cellResolution) || math32.IsInf(cellResolution, 0) {
		return nil, errors.New("invalid renderer cell resolution")
	}
	bb := s.Bounds().ScaleCentered(ms3.Vec{X: 1.01, Y: 1.01, Z: 1.01})
	sz := bb.Size()
	const maxCells = 1 << 26
	nx := cellCount(sz.X, cellResolution)
	ny := cellCount(sz.Y, cellResolution)
	nz := cellCount(sz.Z, cellResolution)
	if nx*ny*nz > maxCells {
		return nil, errors.New("resolution too fine for model bounds")
	}
	g := &GridRenderer{
		s:      s,
		origin: bb.Min,
		res:    cellResolution,
		nx:     nx, ny: ny, nz: nz,
		plane0: make([]float32, (nx+1)*(ny+1)),
		plane1: make([]float32, (nx+1)*(ny+1)),
		posbuf: make([]ms3.Vec, (nx+1)*(ny+1)),
		iz:     -1,
	}
	return g, nil
}

func cellCount(span, res float32) int {
	n := int(math32.Ceil(span / res))
	if n < 1 {
		n = 1
	}
	return n
}

// ReadTriangles implements [Renderer]. userData must provide a [sdf.VecPool]
// if the underlying SDF tree requires one.
func (g *GridRenderer) ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error) {
	if len(dst) < trisPerCell {
		return 0, io.ErrShortBuffer
	}
	if g.done {
		return 0, io.EOF
	}
	if g.iz < 0 {
		// Prime the two corner planes of the first slab.
		if err := g.evalPlane(g.plane0, 0, userData); err != nil {
			return 0, err
		}
		if err := g.evalPlane(g.plane1, 1, userData); err != nil {
			return 0, err
		}
		g.iz, g.planeZ = 0, 0
		g.ix, g.iy = 0, 0
	}
	for {
		if g.planeZ != g.iz {
			// Entering a new slab: shift planes up one cell.
			g.plane0, g.plane1 = g.plane1, g.plane0
			if err := g.evalPlane(g.plane1, g.iz+1, userData); err != nil {
				return n, err
			}
			g.planeZ = g.iz
		}
		for ; g.iy < g.ny; g.iy++ {
			for ; g.ix < g.nx; g.ix++ {
				if len(dst)-n < trisPerCell {
					return n, nil
				}
				n += g.marchCell(dst[n:], g.ix, g.iy, g.iz)
			}
			g.ix = 0
		}
		g.iy = 0
		g.iz++
		if g.iz >= g.nz {
			g.done = true
			return n, io.EOF
		}
	}
}

// evalPlane fills dist with SDF distances over the corner lattice at height iz.
func (g *GridRenderer) evalPlane(dist []float32, iz int, userData any) error {
	z := g.origin.Z + float32(iz)*g.res
	k := 0
	for iy := 0; iy <= g.ny; iy++ {
		y := g.origin.Y + float32(iy)*g.res
		for ix := 0; ix <= g.nx; ix++ {
			g.posbuf[k] = ms3.Vec{X: g.origin.X + float32(ix)*g.res, Y: y, Z: z}
			k++
		}
	}
	return g.s.Evaluate(g.posbuf[:k], dist[:k], userData)
}

// cubeTets decomposes a cube into six tetrahedra sharing the 0-6 diagonal.
// Corner indexing: bit0=+x, bit1=+y, bit2=+z.
var cubeTets = [6][4]int{
	{0, 1, 3, 7},
	{0, 3, 2, 7},
	{0, 2, 6, 7},
	{0, 6, 4, 7},
	{0, 4, 5, 7},
	{0, 5, 1, 7},
}

func (g *GridRenderer) marchCell(dst []ms3.Triangle, ix, iy, iz int) (n int) {
	stride := g.nx + 1
	var cd [8]float32
	var cp [8]ms3.Vec
	allNeg, allPos := true, true
	for c := 0; c < 8; c++ {
		dx, dy, dz := c&1, c>>1&1, c>>2&1
		idx := (iy+dy)*stride + ix + dx
		var d float32
		if dz == 0 {
			d = g.plane0[idx]
		} else {
			d = g.plane1[idx]
		}
		cd[c] = d
		allNeg = allNeg && d < 0
		allPos = allPos && d >= 0
		cp[c] = ms3.Vec{
			X: g.origin.X + float32(ix+dx)*g.res,
			Y: g.origin.Y + float32(iy+dy)*g.res,
			Z: g.origin.Z + float32(iz+dz)*g.res,
		}
	}
	if allNeg || allPos {
		return 0
	}
	for _, tet := range cubeTets {
		n += marchTet(dst[n:], cp, cd, tet)
	}
	return n
}

// marchTet emits the isosurface triangles of a single tetrahedron.
func marchTet(dst []ms3.Triangle, cp [8]ms3.Vec, cd [8]float32, tet [4]int) int {
	var inside, outside [4]int
	ni, no := 0, 0
	for _, c := range tet {
		if cd[c] < 0 {
			inside[ni] = c
			ni++
		} else {
			outside[no] = c
			no++
		}
	}
	surf := func(a, b int) ms3.Vec {
		t := cd[a] / (cd[a] - cd[b])
		return ms3.Add(cp[a], ms3.Scale(t, ms3.Sub(cp[b], cp[a])))
	}
	switch ni {
	case 0, 4:
		return 0
	case 1:
		a := inside[0]
		tri := ms3.Triangle{surf(a, outside[0]), surf(a, outside[1]), surf(a, outside[2])}
		dst[0] = orientAway(tri, cp[a])
		return 1
	case 3:
		d := outside[0]
		tri := ms3.Triangle{surf(inside[0], d), surf(inside[1], d), surf(inside[2], d)}
		interior := ms3.Scale(1.0/3.0, ms3.Add(cp[inside[0]], ms3.Add(cp[inside[1]], cp[inside[2]])))
		dst[0] = orientAway(tri, interior)
		return 1
	case 2:
		a, b := inside[0], inside[1]
		c, d := outside[0], outside[1]
		interior := ms3.Scale(0.5, ms3.Add(cp[a], cp[b]))
		q0, q1, q2, q3 := surf(a, c), surf(a, d), surf(b, d), surf(b, c)
		dst[0] = orientAway(ms3.Triangle{q0, q1, q2}, interior)
		dst[1] = orientAway(ms3.Triangle{q0, q2, q3}, interior)
		return 2
	}
	return 0
}

// orientAway winds tri counter-clockwise as seen from outside the surface,
// taking interior as a point known to be inside the solid.
func orientAway(tri ms3.Triangle, interior ms3.Vec) ms3.Triangle {
	n := triNormal(tri)
	centroid := ms3.Scale(1.0/3.0, ms3.Add(tri[0], ms3.Add(tri[1], tri[2])))
	if ms3.Dot(n, ms3.Sub(centroid, interior)) < 0 {
		tri[1], tri[2] = tri[2], tri[1]
	}
	return tri
}

func triNormal(tri ms3.Triangle) ms3.Vec {
	return sdf.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0]))
}

// Volume computes the signed volume enclosed by a closed triangle soup via
// the divergence theorem. Consistently outward-wound meshes yield a positive
// volume.
func Volume(triangles []ms3.Triangle) float64 {
	var vol float64
	for _, t := range triangles {
		vol += float64(ms3.Dot(t[0], sdf.Cross(t[1], t[2])))
	}
	return vol / 6
}
