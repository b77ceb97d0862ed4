// Package label assembles 3D printable toolbox labels: a clip-profile body
// extruded to fit the label text, with the text recessed into the front
// face and a matching insert for two-color printing.
package label

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every geometric constant of label generation. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// TargetHeight is the profile height after scaling, in mm.
	TargetHeight float32 `yaml:"target_height"`
	// TargetDepth is the profile depth after scaling, in mm.
	TargetDepth float32 `yaml:"target_depth"`
	// FontSize is the text em size in mm.
	FontSize float32 `yaml:"font_size"`
	// RecessDepth is how deep text is sunk into the front face, in mm.
	RecessDepth float32 `yaml:"recess_depth"`
	// Padding is added to the text width to size the extrusion, in mm.
	Padding float32 `yaml:"padding"`
	// FrontFaceLength is the expected edge length identifying the front
	// face of the profile, in mm.
	FrontFaceLength float32 `yaml:"front_face_length"`
	// EdgeTolerance is the permitted deviation from FrontFaceLength.
	EdgeTolerance float32 `yaml:"edge_tolerance"`
	// Overcut extends the recess cutter proud of the face so the
	// subtraction leaves no skin, in mm.
	Overcut float32 `yaml:"overcut"`
	// MeshResolution is the meshing grid cell size, in mm.
	MeshResolution float32 `yaml:"mesh_resolution"`
	// ScalePolicy is "stretch" or "uniform".
	ScalePolicy string `yaml:"scale_policy"`
	// TextEngine is "shaped", "basic" or "inkscape".
	TextEngine string `yaml:"text_engine"`
	// FontFamily names the font for the inkscape engine.
	FontFamily string `yaml:"font_family"`
}

// DefaultConfig returns the stock label dimensions.
func DefaultConfig() Config {
	return Config{
		TargetHeight:    28.86,
		TargetDepth:     37.7,
		FontSize:        16,
		RecessDepth:     0.8,
		Padding:         20,
		FrontFaceLength: 27.5,
		EdgeTolerance:   1.0,
		Overcut:         0.1,
		MeshResolution:  0.2,
		ScalePolicy:     "stretch",
		TextEngine:      "shaped",
		FontFamily:      "sans-serif",
	}
}

// LoadConfig reads a YAML file over the defaults. Fields absent from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a printable label.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float32
	}{
		{"target_height", c.TargetHeight},
		{"target_depth", c.TargetDepth},
		{"font_size", c.FontSize},
		{"recess_depth", c.RecessDepth},
		{"front_face_length", c.FrontFaceLength},
		{"edge_tolerance", c.EdgeTolerance},
		{"mesh_resolution", c.MeshResolution},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", p.name, p.v)
		}
	}
	if c.Padding < 0 || c.Overcut < 0 {
		return fmt.Errorf("padding and overcut must be non-negative")
	}
	if c.FontSize >= c.TargetHeight {
		return fmt.Errorf("font_size %g does not fit the %gmm profile height", c.FontSize, c.TargetHeight)
	}
	return nil
}
