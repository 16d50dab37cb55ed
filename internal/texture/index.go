package texture

import (
	"io/fs"
	"path"
	"strings"
)

// extPriority ranks formats when one stem exists with several extensions.
// Lossless formats win over lossy ones.
var extPriority = map[string]int{
	".png":  4,
	".tga":  3,
	".webp": 2,
	".jpg":  1,
	".jpeg": 1,
}

// Index maps lowercase image stems to paths inside a scene file system.
type Index struct {
	entries map[string]string // stem.lower() → path
}

// BuildIndex scans dirs (slash-separated, relative to fsys) recursively for
// decodable color images.
func BuildIndex(fsys fs.FS, dirs ...string) *Index {
	idx := &Index{entries: make(map[string]string)}
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	for _, dir := range dirs {
		fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.ToLower(path.Ext(p))
			if !IsImageExt(ext) {
				return nil
			}
			stem := strings.ToLower(strings.TrimSuffix(path.Base(p), path.Ext(p)))

			existing, exists := idx.entries[stem]
			if !exists || extPriority[ext] > extPriority[strings.ToLower(path.Ext(existing))] {
				idx.entries[stem] = p
			}
			return nil
		})
	}

	return idx
}

// ResolvePath returns the path for a texture name, or ("", false). Names
// may carry a directory prefix, backslashes or an extension.
func (idx *Index) ResolvePath(texName string) (string, bool) {
	texName = strings.ReplaceAll(texName, "\\", "/")
	base := path.Base(texName)
	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))

	p, ok := idx.entries[stem]
	return p, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	return len(idx.entries)
}
