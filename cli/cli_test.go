package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localesync/backup"
	"localesync/report"
)

type fakePublisher struct {
	published map[string][]byte
	latest    []byte
	closed    int
}

func (f *fakePublisher) Publish(_ context.Context, runID string, payload []byte) error {
	if f.published == nil {
		f.published = map[string][]byte{}
	}
	f.published[runID] = payload
	f.latest = payload
	return nil
}

func (f *fakePublisher) Latest(context.Context) ([]byte, error) { return f.latest, nil }

func (f *fakePublisher) Close() error {
	f.closed++
	return nil
}

const testConfig = `
reference: en
pattern: messages/*.json
reports:
  json: reports/i18n.json
  markdown: reports/i18n.md
rename_rules:
  version: 1
  rules:
    - from: nav.aboutUs
      to: nav.about
`

func setup(t *testing.T) (afero.Fs, Env) {
	t.Helper()
	t.Setenv("LOCALESYNC_CONFIG", "")
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"localesync.yaml":  testConfig,
		"messages/en.json": `{"nav":{"home":"Home","about":"About"},"footer":"Footer"}`,
		"messages/fr.json": `{"nav":{"home":"Accueil","aboutUs":"À propos"},"old":"Ancien"}`,
	}
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs, Env{Fs: fs, Store: backup.NewFSStore(fs, ".locale-backups"), Publisher: &fakePublisher{}}
}

func runCLI(t *testing.T, env Env, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(env)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestFix(t *testing.T) {
	fs, env := setup(t)

	out, _, err := runCLI(t, env, "fix", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "~ nav.aboutUs -> nav.about moved")
	assert.Contains(t, out, "+ footer")
	assert.Contains(t, out, "? old extra")

	data, err := afero.ReadFile(fs, "reports/i18n.json")
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "en", rep.Reference)
	assert.False(t, rep.DryRun)

	var fr report.LocaleStatus
	for _, l := range rep.Locales {
		if l.Locale == "fr" {
			fr = l
		}
	}
	assert.Equal(t, rep.RunID+"/messages/fr.json.bak", fr.Backup)
	exists, err := afero.Exists(fs, ".locale-backups/"+fr.Backup)
	require.NoError(t, err)
	assert.True(t, exists)

	md, err := afero.ReadFile(fs, "reports/i18n.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Localization Status")

	_, _, err = runCLI(t, env, "check", "--no-color")
	require.NoError(t, err, "fixed files pass the default check")
}

func TestCheckFailsWithoutWriting(t *testing.T) {
	fs, env := setup(t)
	before, err := afero.ReadFile(fs, "messages/fr.json")
	require.NoError(t, err)

	_, stderr, err := runCLI(t, env, "check", "--no-color")
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, stderr, "fr: missing footer")

	after, err := afero.ReadFile(fs, "messages/fr.json")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, _, err = runCLI(t, env, "check", "--no-color", "--fail-on", "drift")
	require.NoError(t, err)

	_, stderr, err = runCLI(t, env, "check", "--no-color", "--fail-on", "extra")
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, stderr, "fr: extra old")

	_, _, err = runCLI(t, env, "check", "--fail-on", "bogus")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCheckFailed)
}

func TestStatusAndPublish(t *testing.T) {
	_, env := setup(t)
	pub := env.Publisher.(*fakePublisher)

	out, _, err := runCLI(t, env, "status", "--no-color", "--publish")
	require.NoError(t, err)
	assert.Contains(t, out, "needs-repair")
	require.Len(t, pub.published, 1)

	out, _, err = runCLI(t, env, "status", "--published")
	require.NoError(t, err)
	assert.Equal(t, string(pub.latest), out)
}

func TestReferenceOverride(t *testing.T) {
	_, env := setup(t)

	_, _, err := runCLI(t, env, "status", "--reference", "de")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference locale unavailable")

	_, _, err = runCLI(t, env, "status", "--reference", "not a tag")
	require.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, env := setup(t)
	_, _, err := runCLI(t, env, "fix", "--config", "nowhere.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}
