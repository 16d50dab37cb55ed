// Package viewlist reads XML lists of named novel viewpoints:
//
//	<ViewList>
//	  <Group Name="hall">
//	    <View Name="door" Position="0 1.6 -4" Target="0 1.2 0" FOV="70"/>
//	  </Group>
//	</ViewList>
package viewlist

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/mathutil"
)

type xmlViewList struct {
	Groups []xmlGroup `xml:"Group"`
}

type xmlGroup struct {
	Name  string    `xml:"Name,attr"`
	Views []xmlView `xml:"View"`
}

type xmlView struct {
	Name     string `xml:"Name,attr"`
	Position string `xml:"Position,attr"`
	Target   string `xml:"Target,attr"`
	FOV      string `xml:"FOV,attr"`
}

// Parse reads a view list file.
func Parse(path string) ([]Viewpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("viewlist: read %s: %w", path, err)
	}
	defer f.Close()
	views, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("viewlist: %s: %w", path, err)
	}
	return views, nil
}

// ParseReader decodes a view list. Views with unparsable attributes are
// skipped with a warning.
func ParseReader(r io.Reader) ([]Viewpoint, error) {
	var list xmlViewList
	d := xml.NewDecoder(r)
	d.CharsetReader = charsetReader
	if err := d.Decode(&list); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var views []Viewpoint
	for _, g := range list.Groups {
		for i, v := range g.Views {
			vp, err := v.viewpoint()
			if err != nil {
				logger.L().Warn("viewlist: skipping view", "group", g.Name, "view", v.Name, "err", err)
				continue
			}
			vp.Group = g.Name
			vp.Index = i
			if vp.Name == "" {
				vp.Name = strconv.Itoa(i)
			}
			views = append(views, vp)
		}
	}
	return views, nil
}

// charsetReader decodes the single-byte charsets that view lists exported
// on Windows declare.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

func (v *xmlView) viewpoint() (Viewpoint, error) {
	pos, err := parseVec3(v.Position)
	if err != nil {
		return Viewpoint{}, fmt.Errorf("position: %w", err)
	}
	target, err := parseVec3(v.Target)
	if err != nil {
		return Viewpoint{}, fmt.Errorf("target: %w", err)
	}
	if pos.Dist(target) < 1e-9 {
		return Viewpoint{}, fmt.Errorf("position equals target")
	}
	var fov float64
	if v.FOV != "" {
		fov, err = strconv.ParseFloat(v.FOV, 64)
		if err != nil || fov <= 0 || fov >= 180 {
			return Viewpoint{}, fmt.Errorf("invalid FOV %q", v.FOV)
		}
	}
	return Viewpoint{Name: v.Name, Position: pos, Target: target, FOV: fov}, nil
}

// parseVec3 accepts three numbers separated by spaces or commas.
func parseVec3(s string) (mathutil.Vec3, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) != 3 {
		return mathutil.Vec3{}, fmt.Errorf("want 3 components, got %q", s)
	}
	var v mathutil.Vec3
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return mathutil.Vec3{}, err
		}
		v[i] = x
	}
	if !v.IsFinite() {
		return mathutil.Vec3{}, fmt.Errorf("non-finite component in %q", s)
	}
	return v, nil
}

func slug(s string) string {
	if s == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func pad3(i int) string {
	return fmt.Sprintf("%03d", i)
}
