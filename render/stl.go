package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/soypat/geometry/ms3"
)

// stlHeader is the 84 byte preamble of a binary STL file.
type stlHeader struct {
	Comment [80]byte
	Count   uint32
}

// stlTriangle is the fixed 50 byte on-disk triangle record.
type stlTriangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
	Attr     uint16
}

// WriteBinarySTL writes a binary STL representation of the triangle soup to w
// and returns the number of bytes written.
func WriteBinarySTL(w io.Writer, triangles []ms3.Triangle) (int, error) {
	if len(triangles) == 0 {
		return 0, errors.New("no triangles to write")
	}
	cw := &countingWriter{w: bufio.NewWriter(w)}
	var header stlHeader
	copy(header.Comment[:], "labelforge binary STL")
	header.Count = uint32(len(triangles))
	if err := binary.Write(cw, binary.LittleEndian, &header); err != nil {
		return cw.n, err
	}
	var rec stlTriangle
	for _, t := range triangles {
		rec.Normal = [3]float32{}
		if n := triNormal(t); ms3.Norm(n) > 0 {
			n = ms3.Unit(n)
			rec.Normal = [3]float32{n.X, n.Y, n.Z}
		}
		for i := range t {
			rec.Vertices[i] = [3]float32{t[i].X, t[i].Y, t[i].Z}
		}
		if err := binary.Write(cw, binary.LittleEndian, &rec); err != nil {
			return cw.n, err
		}
	}
	return cw.n, cw.w.(*bufio.Writer).Flush()
}

// ReadBinarySTL reads a binary STL formatted stream into a triangle slice.
// Per-triangle normals are discarded since the winding defines them.
func ReadBinarySTL(r io.Reader) ([]ms3.Triangle, error) {
	br := bufio.NewReader(r)
	var header stlHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading STL header: %w", err)
	}
	const maxTriangles = 1 << 28
	if header.Count > maxTriangles {
		return nil, errors.New("binary STL triangle count exceeds sane limit")
	}
	triangles := make([]ms3.Triangle, 0, header.Count)
	var rec stlTriangle
	for i := uint32(0); i < header.Count; i++ {
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("reading STL triangle %d: %w", i, err)
		}
		var t ms3.Triangle
		for j := range t {
			t[j] = ms3.Vec{X: rec.Vertices[j][0], Y: rec.Vertices[j][1], Z: rec.Vertices[j][2]}
		}
		triangles = append(triangles, t)
	}
	return triangles, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}
