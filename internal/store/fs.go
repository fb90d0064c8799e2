package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// FSStore reads metric documents from a base directory laid out as
// {base}/{kindFolder}/{date}_{suffix}.json.
type FSStore struct {
	base string
}

// NewFSStore constructs a filesystem-backed document store.
func NewFSStore(base string) *FSStore {
	return &FSStore{base: base}
}

// Fetch implements DocumentStore.
func (s *FSStore) Fetch(ctx context.Context, date string, kind models.DocKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.base, kind.Folder(), kind.Filename(date))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s for %s: %w", kind, date, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Dates implements DocumentStore. A date is listed when any of the five
// document folders holds a JSON file with that date prefix.
func (s *FSStore) Dates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, kind := range models.DocKinds {
		entries, err := os.ReadDir(filepath.Join(s.base, kind.Folder()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", kind.Folder(), err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			date, _, ok := strings.Cut(name, "_")
			if ok && date != "" {
				seen[date] = struct{}{}
			}
		}
	}
	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
