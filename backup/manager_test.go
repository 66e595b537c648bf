package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func setup(t *testing.T) (afero.Fs, *FSStore, *Manager) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "locales/fr.json", []byte(`{"a":"original"}`), 0o600))
	store := NewFSStore(fs, "backups")
	return fs, store, NewManager(fs, store, "run-1", nil)
}

func TestWriteBacksUpOnceThenWrites(t *testing.T) {
	fs, _, m := setup(t)
	ctx := context.Background()
	assert.Equal(t, Unmodified, m.State("locales/fr.json"))

	changed, err := m.Write(ctx, "locales/fr.json", []byte(`{"a":"first"}`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Written, m.State("locales/fr.json"))

	changed, err = m.Write(ctx, "locales/fr.json", []byte(`{"a":"second"}`))
	require.NoError(t, err)
	assert.True(t, changed)

	backup, err := afero.ReadFile(fs, "backups/run-1/locales/fr.json.bak")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"original"}`, string(backup), "second write must not re-backup")

	current, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"second"}`, string(current))

	rec, ok := m.Record("locales/fr.json")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"a":"original"}`), rec.Data())
	assert.False(t, rec.Reused)

	info, err := fs.Stat("locales/fr.json")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	exists, err := afero.Exists(fs, "locales/fr.json.localesync.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteSkipsIdenticalContent(t *testing.T) {
	fs, _, m := setup(t)

	changed, err := m.Write(context.Background(), "locales/fr.json", []byte(`{"a":"original"}`))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, Unmodified, m.State("locales/fr.json"))

	exists, err := afero.Exists(fs, "backups/run-1/locales/fr.json.bak")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteKeepsBackupFromInterruptedRun(t *testing.T) {
	fs, store, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Name("run-1", "locales/fr.json"), []byte(`{"a":"pristine"}`)))

	m := NewManager(fs, store, "run-1", nil)
	_, err := m.Write(ctx, "locales/fr.json", []byte(`{"a":"repaired"}`))
	require.NoError(t, err)

	backup, err := afero.ReadFile(fs, "backups/run-1/locales/fr.json.bak")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"pristine"}`, string(backup))

	rec, ok := m.Record("locales/fr.json")
	require.True(t, ok)
	assert.True(t, rec.Reused)
}

func TestBackupFailureSkipsWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "locales/fr.json", []byte(`{"a":"original"}`), 0o644))
	m := NewManager(fs, failingStore{}, "run-1", nil)

	changed, err := m.Write(context.Background(), "locales/fr.json", []byte(`{"a":"new"}`))
	require.ErrorIs(t, err, ErrBackupFailed)
	assert.False(t, changed)
	assert.Equal(t, Unmodified, m.State("locales/fr.json"))

	current, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"original"}`, string(current))
}

func TestWriteMissingFile(t *testing.T) {
	_, _, m := setup(t)
	_, err := m.Write(context.Background(), "locales/none.json", []byte(`{}`))
	require.ErrorIs(t, err, ErrBackupFailed)
}

func TestEachRunKeepsItsOwnBackup(t *testing.T) {
	fs, store, first := setup(t)
	ctx := context.Background()

	_, err := first.Write(ctx, "locales/fr.json", []byte(`{"a":"repaired"}`))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "locales/fr.json", []byte(`{"a":"edited"}`), 0o600))

	second := NewManager(fs, store, "run-2", nil)
	_, err = second.Write(ctx, "locales/fr.json", []byte(`{"a":"repaired again"}`))
	require.NoError(t, err)

	rec, ok := second.Record("locales/fr.json")
	require.True(t, ok)
	assert.False(t, rec.Reused)
	assert.Equal(t, "run-2/locales/fr.json.bak", rec.Name)

	old, err := afero.ReadFile(fs, "backups/run-1/locales/fr.json.bak")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"original"}`, string(old))

	latest, err := afero.ReadFile(fs, "backups/run-2/locales/fr.json.bak")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"edited"}`, string(latest))
}

func TestName(t *testing.T) {
	tests := []struct {
		runID string
		file  string
		want  string
	}{
		{runID: "run-1", file: "locales/fr.json", want: "run-1/locales/fr.json.bak"},
		{runID: "run-1", file: "./locales/../locales/fr.json", want: "run-1/locales/fr.json.bak"},
		{runID: "run-1", file: "/srv/app/fr.json", want: "run-1/srv/app/fr.json.bak"},
		{runID: "run-1", file: "../shared/fr.json", want: "run-1/_/shared/fr.json.bak"},
		{runID: "a/b", file: "fr.json", want: "a_b/fr.json.bak"},
		{runID: "..", file: "fr.json", want: "fr.json.bak"},
		{runID: "", file: "fr.json", want: "fr.json.bak"},
	}
	for _, tt := range tests {
		t.Run(tt.runID+"/"+tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.runID, tt.file))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unmodified", Unmodified.String())
	assert.Equal(t, "backed-up", BackedUp.String())
	assert.Equal(t, "written", Written.String())
}
