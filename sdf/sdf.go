// Package sdf implements the small signed-distance-field kernel used to
// model toolbox labels: closed 2D polygonal outlines, boolean composition,
// extrusion into solids and rigid placement of solids in space.
//
// Distance fields are evaluated in batch form so that meshing can feed large
// position buffers through the field without per-point interface calls.
package sdf

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// SDF3 is a 3D signed distance field in vectorized form.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length. Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators, such as [VecPool].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

// SDF2 is a 2D signed distance field in vectorized form.
type SDF2 interface {
	Evaluate(pos []ms2.Vec, dist []float32, userData any) error
	Bounds() ms2.Box
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// VecPool reuses evaluation scratch buffers across the nodes of an SDF tree.
// It is passed to Evaluate as userData. A zero VecPool is ready for use.
// VecPool is not safe for concurrent use; give each worker its own.
type VecPool struct {
	V2    bufPool[ms2.Vec]
	V3    bufPool[ms3.Vec]
	Float bufPool[float32]
}

// GetVecPool extracts a VecPool from an evaluation userData argument.
func GetVecPool(userData any) (*VecPool, error) {
	switch data := userData.(type) {
	case *VecPool:
		return data, nil
	case interface{ VecPool() *VecPool }:
		return data.VecPool(), nil
	}
	return nil, fmt.Errorf("userData %T does not provide a *sdf.VecPool", userData)
}

type bufPool[T any] struct {
	free [][]T
}

// Acquire returns a buffer of length n, reusing a released buffer if one is
// large enough.
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.free {
		if cap(buf) >= n {
			bp.free[i] = bp.free[len(bp.free)-1]
			bp.free = bp.free[:len(bp.free)-1]
			return buf[:n]
		}
	}
	return make([]T, n)
}

// Release returns a buffer acquired with Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) {
	if cap(buf) == 0 {
		return
	}
	bp.free = append(bp.free, buf)
}

func checkBuffers[T any](pos []T, dist []float32) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	return nil
}

func minf(a, b float32) float32 { return math32.Min(a, b) }

func maxf(a, b float32) float32 { return math32.Max(a, b) }

func absf(a float32) float32 { return math32.Abs(a) }

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

// minReduce takes element-wise minimum of arguments and stores to first argument.
func minReduce(d1AndDst, d2 []float32) {
	for i := range d1AndDst {
		d1AndDst[i] = math32.Min(d1AndDst[i], d2[i])
	}
}
