// Package proxy holds the geometric proxies that source views are
// reprojected onto: per-view depth meshes, focal surfaces and a global mesh.
package proxy

import (
	"fmt"

	"ibr-renderer/internal/mathutil"
)

// Mesh is an indexed triangle mesh. Normals and UVs are optional; when
// present they have one entry per position.
type Mesh struct {
	Positions []mathutil.Vec3
	Normals   []mathutil.Vec3
	UVs       []mathutil.Vec2
	Indices   []int // three per triangle
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the world positions of triangle i.
func (m *Mesh) Triangle(i int) [3]mathutil.Vec3 {
	return [3]mathutil.Vec3{
		m.Positions[m.Indices[3*i]],
		m.Positions[m.Indices[3*i+1]],
		m.Positions[m.Indices[3*i+2]],
	}
}

// Validate checks index bounds and attribute lengths.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("proxy: index count %d is not a multiple of 3", len(m.Indices))
	}
	for _, i := range m.Indices {
		if i < 0 || i >= len(m.Positions) {
			return fmt.Errorf("proxy: index %d out of range [0, %d)", i, len(m.Positions))
		}
	}
	if m.Normals != nil && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("proxy: %d normals for %d positions", len(m.Normals), len(m.Positions))
	}
	if m.UVs != nil && len(m.UVs) != len(m.Positions) {
		return fmt.Errorf("proxy: %d uvs for %d positions", len(m.UVs), len(m.Positions))
	}
	return nil
}

// RecalculateNormals replaces Normals with area-weighted vertex normals.
// Vertices that belong to no triangle get a zero normal.
func (m *Mesh) RecalculateNormals() {
	normals := make([]mathutil.Vec3, len(m.Positions))
	for t := 0; t < m.TriangleCount(); t++ {
		i0, i1, i2 := m.Indices[3*t], m.Indices[3*t+1], m.Indices[3*t+2]
		p0, p1, p2 := m.Positions[i0], m.Positions[i1], m.Positions[i2]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}

// Transform applies a rigid or affine transform to positions and normals
// in place.
func (m *Mesh) Transform(t mathutil.Mat4) {
	for i, p := range m.Positions {
		m.Positions[i] = t.MulPoint(p)
	}
	for i, n := range m.Normals {
		m.Normals[i] = t.MulDir(n).Normalize()
	}
}

// Bounds returns the axis-aligned bounding box of the positions.
func (m *Mesh) Bounds() (lo, hi mathutil.Vec3) {
	if len(m.Positions) == 0 {
		return lo, hi
	}
	lo, hi = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for k := 0; k < 3; k++ {
			if p[k] < lo[k] {
				lo[k] = p[k]
			}
			if p[k] > hi[k] {
				hi[k] = p[k]
			}
		}
	}
	return lo, hi
}
