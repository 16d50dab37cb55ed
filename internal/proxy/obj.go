package proxy

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ibr-renderer/internal/mathutil"
)

// OBJInfo carries the material references found while reading an OBJ file.
type OBJInfo struct {
	MaterialLib string // mtllib file name, relative to the OBJ
	Material    string // first usemtl name
}

type objKey struct{ v, vt, vn int }

// ReadOBJ reads positions, texture coordinates, normals and polygonal faces
// from a Wavefront OBJ stream. Faces are fan-triangulated and vertices are
// split per distinct v/vt/vn triple. Texture V is flipped so that UV (0, 0)
// is the top-left texel.
func ReadOBJ(r io.Reader) (*Mesh, OBJInfo, error) {
	var (
		info     OBJInfo
		pos      []mathutil.Vec3
		tex      []mathutil.Vec2
		nrm      []mathutil.Vec3
		mesh     = &Mesh{}
		seen     = map[objKey]int{}
		hasUV    bool
		hasNorms bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, info, fmt.Errorf("proxy: obj line %d: %w", line, err)
			}
			pos = append(pos, mathutil.Vec3{v[0], v[1], v[2]})
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, info, fmt.Errorf("proxy: obj line %d: %w", line, err)
			}
			tex = append(tex, mathutil.Vec2{v[0], 1 - v[1]})
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, info, fmt.Errorf("proxy: obj line %d: %w", line, err)
			}
			nrm = append(nrm, mathutil.Vec3{v[0], v[1], v[2]}.Normalize())
		case "f":
			if len(fields) < 4 {
				return nil, info, fmt.Errorf("proxy: obj line %d: face with %d vertices", line, len(fields)-1)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				k, err := parseFaceVertex(f, len(pos), len(tex), len(nrm))
				if err != nil {
					return nil, info, fmt.Errorf("proxy: obj line %d: %w", line, err)
				}
				idx, ok := seen[k]
				if !ok {
					idx = len(mesh.Positions)
					seen[k] = idx
					mesh.Positions = append(mesh.Positions, pos[k.v])
					var uv mathutil.Vec2
					if k.vt >= 0 {
						uv = tex[k.vt]
						hasUV = true
					}
					mesh.UVs = append(mesh.UVs, uv)
					var n mathutil.Vec3
					if k.vn >= 0 {
						n = nrm[k.vn]
						hasNorms = true
					}
					mesh.Normals = append(mesh.Normals, n)
				}
				corners = append(corners, idx)
			}
			for i := 1; i+1 < len(corners); i++ {
				mesh.Indices = append(mesh.Indices, corners[0], corners[i], corners[i+1])
			}
		case "mtllib":
			if len(fields) > 1 && info.MaterialLib == "" {
				info.MaterialLib = strings.Join(fields[1:], " ")
			}
		case "usemtl":
			if len(fields) > 1 && info.Material == "" {
				info.Material = fields[1]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, info, fmt.Errorf("proxy: read obj: %w", err)
	}
	if len(mesh.Indices) == 0 {
		return nil, info, fmt.Errorf("proxy: obj has no faces")
	}
	if !hasUV {
		mesh.UVs = nil
	}
	if !hasNorms {
		mesh.RecalculateNormals()
	}
	return mesh, info, nil
}

// ReadMTLTexture returns the diffuse texture map (map_Kd) of material name,
// or of the first material when name is empty.
func ReadMTLTexture(r io.Reader, name string) (string, error) {
	sc := bufio.NewScanner(r)
	current := ""
	matched := false
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "newmtl":
			current = fields[1]
			matched = name == "" || current == name
		case "map_Kd":
			if matched {
				// Options such as -bm precede the file name.
				return fields[len(fields)-1], nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("proxy: read mtl: %w", err)
	}
	return "", nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseFaceVertex parses "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// indices; absent components are -1. Negative OBJ indices count from the end.
func parseFaceVertex(s string, nv, nvt, nvn int) (objKey, error) {
	k := objKey{-1, -1, -1}
	parts := strings.Split(s, "/")
	counts := [3]int{nv, nvt, nvn}
	dst := [3]*int{&k.v, &k.vt, &k.vn}
	for i, p := range parts {
		if i > 2 {
			break
		}
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return k, fmt.Errorf("face vertex %q: %w", s, err)
		}
		if v < 0 {
			v = counts[i] + v
		} else {
			v--
		}
		if v < 0 || v >= counts[i] {
			return k, fmt.Errorf("face vertex %q: index out of range", s)
		}
		*dst[i] = v
	}
	if k.v < 0 {
		return k, fmt.Errorf("face vertex %q: missing position", s)
	}
	return k, nil
}
