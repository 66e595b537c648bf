// Package backup snapshots locale files before their first mutation in a
// run and owns every write to them.
package backup

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultDir is where FSStore keeps backups when none is configured.
const DefaultDir = ".locale-backups"

// Store persists backup copies. Implementations must never replace an
// existing object on their own; Manager checks Exists first.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
}

// FSStore keeps backups in a directory of an afero filesystem.
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFSStore creates a store rooted at dir.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FSStore{fs: fs, dir: dir}
}

// Dir returns the backup directory.
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

func (s *FSStore) Exists(_ context.Context, name string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.path(name))
	if err != nil {
		return false, fmt.Errorf("stat backup %s: %w", name, err)
	}
	return ok, nil
}

func (s *FSStore) Put(_ context.Context, name string, data []byte) error {
	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", p, err)
	}
	return nil
}

// Name maps a run id and a file path to a backup object name:
// "<runID>/<file>.bak". Every run keeps its own copies, and a run resumed
// under the same id finds the backup it already made.
func Name(runID, file string) string {
	clean := path.Clean(filepath.ToSlash(file))
	parts := strings.Split(strings.TrimLeft(clean, "/"), "/")
	for i, part := range parts {
		if part == ".." {
			parts[i] = "_"
		}
	}
	name := strings.Join(parts, "/") + ".bak"
	if runID = strings.Trim(strings.ReplaceAll(runID, "/", "_"), "."); runID != "" {
		name = runID + "/" + name
	}
	return name
}
