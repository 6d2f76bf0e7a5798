package intake

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reviewdash/internal"
)

// Source lists review exports waiting to be processed.
type Source interface {
	List() ([]internal.SourceFile, error)
}

// DirSource lists the supported files directly inside a directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) List() ([]internal.SourceFile, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := []internal.SourceFile{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		sourceType, ok := internal.SourceTypeFromName(e.Name())
		if !ok {
			continue
		}
		out = append(out, internal.SourceFile{
			Name: e.Name(),
			Path: filepath.Join(s.dir, e.Name()),
			Type: sourceType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
