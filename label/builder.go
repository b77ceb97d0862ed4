package label

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"go.uber.org/zap"
	"labelforge/profile"
	"labelforge/sdf"
)

// ErrNoFrontFace is returned when no straight profile edge matches the
// configured front face length.
var ErrNoFrontFace = errors.New("no front face found")

// Assembly is a fully built label: the body with recessed text and the
// insert that fills the recess. Both solids share one coordinate system
// with the body's bounding box minimum at the origin.
type Assembly struct {
	Body   sdf.SDF3
	Insert sdf.SDF3
	// Width is the extrusion length along Z in mm.
	Width float32
	// TextWidth is the rendered text width in mm.
	TextWidth float32
}

// Builder assembles label solids from a scaled profile and a text field.
type Builder struct {
	cfg Config
	log *zap.Logger
}

func NewBuilder(cfg Config, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{cfg: cfg, log: log}
}

// Assemble extrudes the profile to fit the text, recesses the text into
// the front face and builds the matching insert. The profile must already
// be scaled to physical dimensions; textField is a text outline centered
// on the origin as produced by the text engines.
func (b *Builder) Assemble(prof *profile.Profile, textField sdf.SDF2) (*Assembly, error) {
	textBB := textField.Bounds()
	textWidth := textBB.Size().X
	width := textWidth + b.cfg.Padding
	b.log.Debug("assembling label",
		zap.Float32("textWidth", textWidth),
		zap.Float32("extrusionWidth", width),
	)

	profSDF, err := prof.SDF()
	if err != nil {
		return nil, fmt.Errorf("profile field: %w", err)
	}
	body, err := sdf.Extrude(profSDF, width)
	if err != nil {
		return nil, fmt.Errorf("extruding body: %w", err)
	}

	face, err := b.findFrontFace(prof)
	if err != nil {
		return nil, err
	}
	if h := textBB.Size().Y; h > face.Length() {
		b.log.Warn("text taller than front face",
			zap.Float32("textHeight", h),
			zap.Float32("faceHeight", face.Length()),
		)
	}
	origin, ex, ey, ez := faceFrame(face)

	// Recess cutter: the text prism spans from overcut proud of the face
	// down to recess depth below it, so the subtraction cannot leave a
	// zero-thickness skin on the surface.
	cutThick := b.cfg.RecessDepth + b.cfg.Overcut
	cutter, err := sdf.Extrude(textField, cutThick)
	if err != nil {
		return nil, fmt.Errorf("extruding recess cutter: %w", err)
	}
	cutter, err = sdf.Translate(cutter, 0, 0, (b.cfg.Overcut-b.cfg.RecessDepth)/2)
	if err != nil {
		return nil, err
	}
	cutter, err = sdf.NewFrame(cutter, origin, ex, ey, ez)
	if err != nil {
		return nil, fmt.Errorf("placing recess cutter: %w", err)
	}
	body, err = sdf.Difference(body, cutter)
	if err != nil {
		return nil, fmt.Errorf("cutting recess: %w", err)
	}

	// Insert: exactly recess deep and flush with the face.
	insert, err := sdf.Extrude(textField, b.cfg.RecessDepth)
	if err != nil {
		return nil, fmt.Errorf("extruding insert: %w", err)
	}
	insert, err = sdf.Translate(insert, 0, 0, -b.cfg.RecessDepth/2)
	if err != nil {
		return nil, err
	}
	insert, err = sdf.NewFrame(insert, origin, ex, ey, ez)
	if err != nil {
		return nil, fmt.Errorf("placing insert: %w", err)
	}

	// Rebase the assembly so the body rests on the origin.
	min := body.Bounds().Min
	body, err = sdf.Translate(body, -min.X, -min.Y, -min.Z)
	if err != nil {
		return nil, err
	}
	insert, err = sdf.Translate(insert, -min.X, -min.Y, -min.Z)
	if err != nil {
		return nil, err
	}
	return &Assembly{Body: body, Insert: insert, Width: width, TextWidth: textWidth}, nil
}

// findFrontFace scans the profile's straight edges for one within
// tolerance of the configured front face length. Each such edge sweeps
// into a planar face of the extrusion; since all candidates share the
// extrusion width, the longest edge yields the largest face.
func (b *Builder) findFrontFace(prof *profile.Profile) (profile.Segment, error) {
	var best profile.Segment
	found := false
	for _, s := range prof.StraightRuns() {
		l := s.Length()
		if absf(l-b.cfg.FrontFaceLength) >= b.cfg.EdgeTolerance {
			continue
		}
		if !found || l > best.Length() {
			best = s
			found = true
		}
	}
	if !found {
		return profile.Segment{}, fmt.Errorf("%w: no straight profile edge within %gmm of %gmm",
			ErrNoFrontFace, b.cfg.EdgeTolerance, b.cfg.FrontFaceLength)
	}
	b.log.Debug("front face located",
		zap.Float32("edgeLength", best.Length()),
		zap.Any("normal", best.Normal),
	)
	return best, nil
}

// faceFrame builds the placement frame of the front face. The text
// baseline runs along the extrusion axis, the text's vertical follows the
// profile edge, and the frame's Z is the outward face normal, so text
// reads correctly when the face is viewed from outside.
func faceFrame(s profile.Segment) (origin, ex, ey, ez ms3.Vec) {
	mid := ms2.Scale(0.5, ms2.Add(s.A, s.B))
	origin = ms3.Vec{X: mid.X, Y: mid.Y, Z: 0}

	up := ms2.Sub(s.B, s.A)
	up = ms2.Scale(1/ms2.Norm(up), up)
	// Point the text's vertical toward the profile top.
	if up.Y < 0 || (up.Y == 0 && up.X < 0) {
		up = ms2.Scale(-1, up)
	}
	ey = ms3.Vec{X: up.X, Y: up.Y, Z: 0}
	ez = ms3.Vec{X: s.Normal.X, Y: s.Normal.Y, Z: 0}
	ex = sdf.Cross(ey, ez)
	return origin, ex, ey, ez
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
