package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrBackupFailed marks a write skipped because its backup could not be made.
var ErrBackupFailed = errors.New("backup failed")

// State is the per-file lifecycle within one run.
type State int

const (
	Unmodified State = iota
	BackedUp
	Written
)

func (s State) String() string {
	switch s {
	case BackedUp:
		return "backed-up"
	case Written:
		return "written"
	default:
		return "unmodified"
	}
}

// Record is the pristine copy of a file taken before its first write.
type Record struct {
	File string
	Name string
	// Reused is set when a backup with the same run id already existed,
	// left by an interrupted attempt, and was kept instead of replaced.
	Reused bool
	data   []byte
}

// Data returns a copy of the backed-up content. It is nil for reused
// backups, whose content lives only in the store.
func (r Record) Data() []byte {
	if r.data == nil {
		return nil
	}
	return append([]byte(nil), r.data...)
}

// Manager owns every write to locale files during a run.
type Manager struct {
	fs     afero.Fs
	store  Store
	runID  string
	logger *zap.Logger

	mu      sync.Mutex
	states  map[string]State
	records map[string]Record
}

// NewManager creates a Manager writing through fs and backing up into store
// under runID.
func NewManager(fs afero.Fs, store Store, runID string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		fs:      fs,
		store:   store,
		runID:   runID,
		logger:  logger,
		states:  map[string]State{},
		records: map[string]Record{},
	}
}

// State returns the lifecycle state of file in this run.
func (m *Manager) State(file string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[file]
}

// Record returns the backup taken for file in this run.
func (m *Manager) Record(file string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[file]
	return rec, ok
}

// Write replaces the content of file with data. The first write of a file
// in a run backs up its current content; if that fails the write is
// skipped and an ErrBackupFailed error returned. Identical content is not
// written. The boolean reports whether the file changed.
func (m *Manager) Write(ctx context.Context, file string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := afero.ReadFile(m.fs, file)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", ErrBackupFailed, file, err)
	}
	if bytes.Equal(current, data) {
		return false, nil
	}

	if m.states[file] == Unmodified {
		rec, err := m.backup(ctx, file, current)
		if err != nil {
			m.logger.Error("Backup failed, skipping write",
				zap.String("file", file),
				zap.Error(err))
			return false, fmt.Errorf("%w: %s: %v", ErrBackupFailed, file, err)
		}
		m.records[file] = rec
		m.states[file] = BackedUp
	}

	if err := m.writeAtomic(file, data); err != nil {
		return false, err
	}
	m.states[file] = Written
	m.logger.Info("Wrote locale file", zap.String("file", file), zap.Int("bytes", len(data)))
	return true, nil
}

func (m *Manager) backup(ctx context.Context, file string, current []byte) (Record, error) {
	name := Name(m.runID, file)
	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return Record{}, err
	}
	if exists {
		m.logger.Warn("Keeping existing backup from an interrupted attempt",
			zap.String("file", file),
			zap.String("backup", name))
		return Record{File: file, Name: name, Reused: true}, nil
	}
	if err := m.store.Put(ctx, name, current); err != nil {
		return Record{}, err
	}
	m.logger.Debug("Backed up locale file", zap.String("file", file), zap.String("backup", name))
	return Record{File: file, Name: name, data: append([]byte(nil), current...)}, nil
}

func (m *Manager) writeAtomic(file string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := m.fs.Stat(file); err == nil {
		mode = info.Mode().Perm()
	}
	tmp := file + ".localesync.tmp"
	if err := afero.WriteFile(m.fs, tmp, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := m.fs.Rename(tmp, file); err != nil {
		_ = m.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
