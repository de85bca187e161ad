package emailprocessor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"smtp-forensics/internal/models"
)

// DirSource reads the objects exported by tshark. Every regular file is a
// candidate whatever its extension.
type DirSource struct {
	Dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Objects returns the files of the directory sorted by name. An unreadable
// directory is fatal, an unreadable file is reported on its object.
func (s *DirSource) Objects(ctx context.Context) ([]models.RawObject, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading object directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	objects := make([]models.RawObject, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}

		obj := models.RawObject{Name: entry.Name()}
		obj.Data, obj.Err = os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		objects = append(objects, obj)
	}
	return objects, nil
}
