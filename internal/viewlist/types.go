package viewlist

import "ibr-renderer/internal/mathutil"

// Viewpoint is one named novel view parsed from a view list.
type Viewpoint struct {
	Group    string
	Index    int // position within its group
	Name     string
	Position mathutil.Vec3
	Target   mathutil.Vec3
	FOV      float64 // horizontal, degrees; 0 uses the configured default
}

// Slug returns the output file stem, e.g. "orbit/003-front".
func (v *Viewpoint) Slug() string {
	return slug(v.Group) + "/" + pad3(v.Index) + "-" + slug(v.Name)
}
