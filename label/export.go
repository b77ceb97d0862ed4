package label

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/geometry/ms3"
	"go.uber.org/zap"
	"labelforge/render"
	"labelforge/sdf"
)

// Part names and print colors of the two-body export. Slicers use the
// names to assign extruders and the colors for preview.
const (
	bodyName    = "label_body"
	insertName  = "text_insert"
	bodyColor   = "#333333" // dark gray
	insertColor = "#FFFFFF"
)

// Exporter meshes an assembly and writes it to disk as a single 3MF
// container or an STL file pair.
type Exporter struct {
	cfg Config
	log *zap.Logger
}

func NewExporter(cfg Config, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{cfg: cfg, log: log}
}

// Export writes asm to path in the argument format, "3mf" or "stl".
// 3MF produces one container holding both named bodies. STL produces two
// files: <base>_body.stl and <base>_text.stl, since the format has no
// notion of separate objects.
func (e *Exporter) Export(asm *Assembly, path, format string) error {
	body, err := e.mesh(asm.Body)
	if err != nil {
		return fmt.Errorf("meshing %s: %w", bodyName, err)
	}
	insert, err := e.mesh(asm.Insert)
	if err != nil {
		return fmt.Errorf("meshing %s: %w", insertName, err)
	}
	e.log.Debug("meshed assembly",
		zap.Int("bodyTriangles", len(body)),
		zap.Int("insertTriangles", len(insert)),
		zap.Float64("bodyVolume", render.Volume(body)),
	)
	switch strings.ToLower(format) {
	case "3mf":
		return e.write3MF(path, body, insert)
	case "stl":
		return e.writeSTL(path, body, insert)
	}
	return fmt.Errorf("unsupported export format %q, want \"3mf\" or \"stl\"", format)
}

func (e *Exporter) mesh(s sdf.SDF3) ([]ms3.Triangle, error) {
	r, err := render.NewGridRenderer(s, e.cfg.MeshResolution)
	if err != nil {
		return nil, err
	}
	return render.RenderAll(r, &sdf.VecPool{})
}

func (e *Exporter) write3MF(path string, body, insert []ms3.Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = render.Write3MF(f, []render.Part{
		{Name: bodyName, Color: bodyColor, Triangles: body},
		{Name: insertName, Color: insertColor, Triangles: insert},
	})
	if err != nil {
		return fmt.Errorf("writing 3MF container: %w", err)
	}
	e.log.Info("exported 3MF", zap.String("path", path))
	return f.Close()
}

func (e *Exporter) writeSTL(path string, body, insert []ms3.Triangle) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, part := range []struct {
		path string
		tris []ms3.Triangle
	}{
		{base + "_body.stl", body},
		{base + "_text.stl", insert},
	} {
		f, err := os.Create(part.path)
		if err != nil {
			return err
		}
		if _, err := render.WriteBinarySTL(f, part.tris); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", part.path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		e.log.Info("exported STL", zap.String("path", part.path))
	}
	return nil
}
