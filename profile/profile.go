// Package profile loads 2D cross-section outlines from SVG documents and
// scales them to physical millimeter dimensions. The scaled outline is the
// clip shape a label body is extruded from.
package profile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"labelforge/sdf"
)

var (
	// ErrNoShapes is returned when an SVG document contains no usable
	// outline elements.
	ErrNoShapes = errors.New("no shapes found in SVG document")
	// ErrOpenContour is returned when an outline does not close back on
	// its start point and has no closepath command.
	ErrOpenContour = errors.New("outline contour is not closed")
)

// curveSubdiv is the number of line segments each bezier span is
// tessellated into. Profiles are small so a fixed count is plenty.
const curveSubdiv = 16

// closeTol is the gap below which an unclosed contour is snapped shut,
// in source SVG units.
const closeTol = 1e-6

// ScalePolicy selects how an outline is fitted to the target dimensions.
type ScalePolicy uint8

const (
	// ScaleStretch scales X and Y independently so the outline's bounding
	// box exactly matches the target depth and height.
	ScaleStretch ScalePolicy = iota
	// ScaleUniform scales both axes by the height ratio, hitting the
	// target height exactly and preserving aspect ratio.
	ScaleUniform
)

// ParseScalePolicy converts a CLI argument to a ScalePolicy.
func ParseScalePolicy(s string) (ScalePolicy, error) {
	switch strings.ToLower(s) {
	case "stretch":
		return ScaleStretch, nil
	case "uniform":
		return ScaleUniform, nil
	}
	return 0, fmt.Errorf("unknown scale policy %q, want \"stretch\" or \"uniform\"", s)
}

func (sp ScalePolicy) String() string {
	switch sp {
	case ScaleStretch:
		return "stretch"
	case ScaleUniform:
		return "uniform"
	}
	return "unknown"
}

// Profile is a set of closed outline contours in millimeters, Y up, with
// the bounding box minimum corner at the origin. Holes are represented by
// additional contours and resolved with the even-odd rule.
type Profile struct {
	Contours [][]ms2.Vec
}

// Load reads and parses the SVG file at path.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile SVG: %w", err)
	}
	defer f.Close()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes an SVG document from r and extracts all path, polygon and
// rect elements as closed contours. SVG uses a Y-down coordinate system;
// contours are flipped to Y-up on extraction.
func Parse(r io.Reader) (*Profile, error) {
	dec := xml.NewDecoder(r)
	var contours [][]point
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed SVG: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		var extracted [][]point
		switch se.Name.Local {
		case "path":
			extracted, err = contoursFromPath(attr(se, "d"))
		case "polygon":
			extracted, err = contoursFromPolygon(attr(se, "points"))
		case "rect":
			extracted, err = contoursFromRect(se)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		contours = append(contours, extracted...)
	}
	if len(contours) == 0 {
		return nil, ErrNoShapes
	}
	return newProfile(contours), nil
}

// newProfile flips contours to Y-up, converts to single precision and
// rebases the bounding box minimum onto the origin.
func newProfile(contours [][]point) *Profile {
	minX, minY := contours[0][0].x, contours[0][0].y
	maxY := minY
	for _, c := range contours {
		for _, v := range c {
			minX = min(minX, v.x)
			minY = min(minY, v.y)
			maxY = max(maxY, v.y)
		}
	}
	p := &Profile{Contours: make([][]ms2.Vec, len(contours))}
	for i, c := range contours {
		out := make([]ms2.Vec, len(c))
		for j, v := range c {
			out[j] = ms2.Vec{
				X: float32(v.x - minX),
				Y: float32(maxY - v.y),
			}
		}
		p.Contours[i] = out
	}
	return p
}

// Bounds returns the profile's bounding box.
func (p *Profile) Bounds() ms2.Box {
	bb := ms2.Box{Min: p.Contours[0][0], Max: p.Contours[0][0]}
	for _, c := range p.Contours {
		for _, v := range c {
			bb.Min = ms2.MinElem(bb.Min, v)
			bb.Max = ms2.MaxElem(bb.Max, v)
		}
	}
	return bb
}

// ScaleTo fits the profile to width×height millimeters according to policy
// and returns the result as a new profile rebased onto the origin. The
// receiver is not modified.
func (p *Profile) ScaleTo(width, height float32, policy ScalePolicy) (*Profile, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("non-positive target dimensions %gx%g", width, height)
	}
	bb := p.Bounds()
	sz := bb.Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return nil, errors.New("degenerate profile with zero extent")
	}
	sx := width / sz.X
	sy := height / sz.Y
	if policy == ScaleUniform {
		// Height is the binding dimension; width follows the aspect ratio.
		sx = sy
	}
	out := &Profile{Contours: make([][]ms2.Vec, len(p.Contours))}
	for i, c := range p.Contours {
		sc := make([]ms2.Vec, len(c))
		for j, v := range c {
			sc[j] = ms2.Vec{
				X: (v.X - bb.Min.X) * sx,
				Y: (v.Y - bb.Min.Y) * sy,
			}
		}
		out.Contours[i] = sc
	}
	return out, nil
}

// SDF returns the signed distance field of the profile's filled region.
func (p *Profile) SDF() (sdf.SDF2, error) {
	return sdf.NewPolygonSet(p.Contours)
}

// Segment is a straight stretch of a profile contour after collinear
// vertex runs are collapsed.
type Segment struct {
	A, B ms2.Vec
	// Normal is the unit normal pointing out of the filled region.
	Normal ms2.Vec
}

// Length returns the segment's length.
func (s Segment) Length() float32 {
	return ms2.Norm(ms2.Sub(s.B, s.A))
}

// collinearTol is the maximum perpendicular deviation, in millimeters,
// for a vertex to be merged into the straight run through its neighbors.
const collinearTol = 1e-3

// StraightRuns collapses collinear vertex runs of every contour and
// returns the resulting straight segments in contour order. Tessellated
// curves survive as many short segments while genuine flats merge into
// one long segment each.
func (p *Profile) StraightRuns() []Segment {
	var segs []Segment
	for _, c := range p.Contours {
		collapsed := collapseCollinear(c)
		ccw := signedArea(collapsed) > 0
		for i := range collapsed {
			s := Segment{A: collapsed[i], B: collapsed[(i+1)%len(collapsed)]}
			d := ms2.Sub(s.B, s.A)
			l := ms2.Norm(d)
			if l == 0 {
				continue
			}
			// A counter-clockwise contour keeps the interior on the
			// edge's left, so outward is the right-hand normal.
			n := ms2.Vec{X: d.Y / l, Y: -d.X / l}
			if !ccw {
				n = ms2.Scale(-1, n)
			}
			s.Normal = n
			segs = append(segs, s)
		}
	}
	return segs
}

func signedArea(c []ms2.Vec) float32 {
	var sum float32
	for i := range c {
		a, b := c[i], c[(i+1)%len(c)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

func collapseCollinear(c []ms2.Vec) []ms2.Vec {
	if len(c) < 3 {
		return c
	}
	out := make([]ms2.Vec, 0, len(c))
	n := len(c)
	for i := 0; i < n; i++ {
		prev := c[(i+n-1)%n]
		cur := c[i]
		next := c[(i+1)%n]
		if perpDistance(prev, next, cur) > collinearTol {
			out = append(out, cur)
		}
	}
	if len(out) < 3 {
		return c
	}
	return out
}

// perpDistance is the perpendicular distance of p from the line through a
// and b.
func perpDistance(a, b, p ms2.Vec) float32 {
	ab := ms2.Sub(b, a)
	l := ms2.Norm(ab)
	if l == 0 {
		return ms2.Norm(ms2.Sub(p, a))
	}
	cross := ab.X*(p.Y-a.Y) - ab.Y*(p.X-a.X)
	return math32.Abs(cross) / l
}

// point is a double precision vertex used during parsing and tessellation.
type point struct {
	x, y float64
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// contoursFromPath tessellates the subpaths of a path element's data
// attribute into closed polygonal contours.
func contoursFromPath(d string) ([][]point, error) {
	if strings.TrimSpace(d) == "" {
		return nil, errors.New(`path element missing "d" attribute`)
	}
	subPaths, err := parsePathData(d)
	if err != nil {
		return nil, err
	}
	var contours [][]point
	for _, sp := range subPaths {
		if len(sp.ops) == 0 {
			continue
		}
		verts := []point{{sp.x, sp.y}}
		closed := false
		for _, op := range sp.ops {
			cur := verts[len(verts)-1]
			switch op.cmd {
			case 'L':
				verts = append(verts, point{op.x, op.y})
			case 'Q':
				verts = appendQuad(verts, cur, point{op.x1, op.y1}, point{op.x, op.y})
			case 'C':
				verts = appendCubic(verts, cur, point{op.x1, op.y1}, point{op.x2, op.y2}, point{op.x, op.y})
			case 'Z':
				closed = true
			}
		}
		if !closed {
			first, last := verts[0], verts[len(verts)-1]
			dx, dy := first.x-last.x, first.y-last.y
			if dx*dx+dy*dy > closeTol*closeTol {
				return nil, ErrOpenContour
			}
		}
		// Drop a duplicated closing vertex.
		if len(verts) > 1 {
			first, last := verts[0], verts[len(verts)-1]
			if first == last {
				verts = verts[:len(verts)-1]
			}
		}
		if len(verts) >= 3 {
			contours = append(contours, verts)
		}
	}
	return contours, nil
}

func appendQuad(dst []point, p0, p1, p2 point) []point {
	for i := 1; i <= curveSubdiv; i++ {
		t := float64(i) / curveSubdiv
		u := 1 - t
		dst = append(dst, point{
			x: u*u*p0.x + 2*u*t*p1.x + t*t*p2.x,
			y: u*u*p0.y + 2*u*t*p1.y + t*t*p2.y,
		})
	}
	return dst
}

func appendCubic(dst []point, p0, p1, p2, p3 point) []point {
	for i := 1; i <= curveSubdiv; i++ {
		t := float64(i) / curveSubdiv
		u := 1 - t
		dst = append(dst, point{
			x: u*u*u*p0.x + 3*u*u*t*p1.x + 3*u*t*t*p2.x + t*t*t*p3.x,
			y: u*u*u*p0.y + 3*u*u*t*p1.y + 3*u*t*t*p2.y + t*t*t*p3.y,
		})
	}
	return dst
}

// contoursFromPolygon parses a polygon element's points attribute.
func contoursFromPolygon(points string) ([][]point, error) {
	fields := strings.FieldsFunc(points, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, errors.New(`polygon element missing "points" attribute`)
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("polygon has odd coordinate count %d", len(fields))
	}
	verts := make([]point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("polygon coordinate %q: %w", fields[i], err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("polygon coordinate %q: %w", fields[i+1], err)
		}
		verts = append(verts, point{x, y})
	}
	if len(verts) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(verts))
	}
	return [][]point{verts}, nil
}

// contoursFromRect converts a rect element to a four vertex contour.
// Rounded corners are ignored.
func contoursFromRect(se xml.StartElement) ([][]point, error) {
	get := func(name string) (float64, error) {
		v := attr(se, name)
		if v == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	}
	x, err := get("x")
	if err != nil {
		return nil, fmt.Errorf("rect x: %w", err)
	}
	y, err := get("y")
	if err != nil {
		return nil, fmt.Errorf("rect y: %w", err)
	}
	w, err := get("width")
	if err != nil {
		return nil, fmt.Errorf("rect width: %w", err)
	}
	h, err := get("height")
	if err != nil {
		return nil, fmt.Errorf("rect height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rect with non-positive size %gx%g", w, h)
	}
	return [][]point{{
		{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h},
	}}, nil
}
