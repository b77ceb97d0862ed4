package render

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/soypat/geometry/ms3"
)

// Part is a named, colored mesh destined for a 3MF container.
type Part struct {
	// Name labels the object inside the container so slicers present it
	// as a distinct selectable part.
	Name string
	// Color is a sRGB hex string of the form #RRGGBB or #RRGGBBAA.
	Color string
	// Triangles is the part's surface with outward winding.
	Triangles []ms3.Triangle
}

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// 3MF is an OPC package: a ZIP archive whose root relationship points at the
// model document. These two members are fixed boilerplate.
const (
	contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>` +
		`</Types>`
	relsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Target="/3D/3dmodel.model" Id="rel-1" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>` +
		`</Relationships>`
)

type tmfModel struct {
	XMLName   xml.Name     `xml:"model"`
	Unit      string       `xml:"unit,attr"`
	Lang      string       `xml:"xml:lang,attr"`
	Namespace string       `xml:"xmlns,attr"`
	Resources tmfResources `xml:"resources"`
	Build     tmfBuild     `xml:"build"`
}

type tmfResources struct {
	Materials tmfBaseMaterials `xml:"basematerials"`
	Objects   []tmfObject      `xml:"object"`
}

type tmfBaseMaterials struct {
	ID    int               `xml:"id,attr"`
	Bases []tmfBaseMaterial `xml:"base"`
}

type tmfBaseMaterial struct {
	Name  string `xml:"name,attr"`
	Color string `xml:"displaycolor,attr"`
}

type tmfObject struct {
	ID     int     `xml:"id,attr"`
	Name   string  `xml:"name,attr"`
	Type   string  `xml:"type,attr"`
	PID    int     `xml:"pid,attr"`
	PIndex int     `xml:"pindex,attr"`
	Mesh   tmfMesh `xml:"mesh"`
}

type tmfMesh struct {
	Vertices  []tmfVertex   `xml:"vertices>vertex"`
	Triangles []tmfTriangle `xml:"triangles>triangle"`
}

type tmfVertex struct {
	X float32 `xml:"x,attr"`
	Y float32 `xml:"y,attr"`
	Z float32 `xml:"z,attr"`
}

type tmfTriangle struct {
	V1 uint32 `xml:"v1,attr"`
	V2 uint32 `xml:"v2,attr"`
	V3 uint32 `xml:"v3,attr"`
}

type tmfBuild struct {
	Items []tmfItem `xml:"item"`
}

type tmfItem struct {
	ObjectID int `xml:"objectid,attr"`
}

// Write3MF writes parts as a single 3MF container with one named, colored
// object per part, all placed in the build plate at their modeled positions.
// Units are millimeters.
func Write3MF(w io.Writer, parts []Part) error {
	if len(parts) == 0 {
		return errors.New("no parts to write")
	}
	model := tmfModel{
		Unit:      "millimeter",
		Lang:      "en-US",
		Namespace: "http://schemas.microsoft.com/3dmanufacturing/core/2015/02",
	}
	model.Resources.Materials.ID = 1
	nextID := 2
	for i, p := range parts {
		if len(p.Triangles) == 0 {
			return fmt.Errorf("part %q has no triangles", p.Name)
		}
		if !colorRe.MatchString(p.Color) {
			return fmt.Errorf("part %q has malformed color %q", p.Name, p.Color)
		}
		model.Resources.Materials.Bases = append(model.Resources.Materials.Bases, tmfBaseMaterial{
			Name:  p.Name,
			Color: p.Color,
		})
		obj := tmfObject{
			ID:     nextID,
			Name:   p.Name,
			Type:   "model",
			PID:    1,
			PIndex: i,
			Mesh:   weldMesh(p.Triangles),
		}
		model.Resources.Objects = append(model.Resources.Objects, obj)
		model.Build.Items = append(model.Build.Items, tmfItem{ObjectID: nextID})
		nextID++
	}

	zw := zip.NewWriter(w)
	for _, member := range []struct {
		name, body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
	} {
		f, err := zw.Create(member.name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(f, member.body); err != nil {
			return err
		}
	}
	f, err := zw.Create("3D/3dmodel.model")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	if err := enc.Encode(model); err != nil {
		return fmt.Errorf("encoding 3MF model: %w", err)
	}
	return zw.Close()
}

// weldMesh converts a triangle soup to the indexed form 3MF requires,
// merging bitwise-equal vertices.
func weldMesh(triangles []ms3.Triangle) tmfMesh {
	var mesh tmfMesh
	lookup := make(map[ms3.Vec]uint32, len(triangles))
	index := func(v ms3.Vec) uint32 {
		if i, ok := lookup[v]; ok {
			return i
		}
		i := uint32(len(mesh.Vertices))
		lookup[v] = i
		mesh.Vertices = append(mesh.Vertices, tmfVertex{X: v.X, Y: v.Y, Z: v.Z})
		return i
	}
	for _, t := range triangles {
		mesh.Triangles = append(mesh.Triangles, tmfTriangle{
			V1: index(t[0]),
			V2: index(t[1]),
			V3: index(t[2]),
		})
	}
	return mesh
}
