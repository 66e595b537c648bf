package locales

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestLoadIsolatesFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"locales/en.json": `{"nav":{"home":"Home"}}`,
		"locales/fr.json": `{"nav":{"home":"Accueil"}}`,
		"locales/de.json": `{"nav":`,
	})

	sources := []Source{
		{Locale: "en", Path: "locales/en.json"},
		{Locale: "de", Path: "locales/de.json"},
		{Locale: "fr", Path: "locales/fr.json"},
		{Locale: "es", Path: "locales/es.json"},
	}
	res := NewLoader(fs, nil).Load(context.Background(), sources)

	assert.Equal(t, []string{"en", "de", "fr", "es"}, res.Order)
	require.Len(t, res.Locales, 2)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures["de"], ErrMalformed)
	assert.Error(t, res.Failures["es"])

	fr := res.Locales["fr"]
	home, ok := fr.Tree.Lookup([]string{"nav", "home"})
	require.True(t, ok)
	assert.Equal(t, "Accueil", home.Value())
	assert.Equal(t, `{"nav":{"home":"Accueil"}}`, string(fr.Raw))

	var loaded []string
	for _, loc := range res.Loaded() {
		loaded = append(loaded, loc.Locale)
	}
	assert.Equal(t, []string{"en", "fr"}, loaded)
}

func TestLoadOutcomeIndependentOfOtherSources(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"locales/en.json":  `{"a":"A","b":{"c":"C"}}`,
		"locales/bad.json": `not json`,
	})

	alone := NewLoader(fs, nil).Load(context.Background(), []Source{{Locale: "en", Path: "locales/en.json"}})
	mixed := NewLoader(fs, nil).WithConcurrency(1).Load(context.Background(), []Source{
		{Locale: "xx", Path: "locales/bad.json"},
		{Locale: "en", Path: "locales/en.json"},
	})

	require.Contains(t, mixed.Failures, "xx")
	assert.True(t, alone.Locales["en"].Tree.Equal(mixed.Locales["en"].Tree))
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"locales/en.json": `{"a":"A"}`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewLoader(fs, nil).Load(ctx, []Source{{Locale: "en", Path: "locales/en.json"}})
	assert.ErrorIs(t, res.Failures["en"], context.Canceled)
}

func TestDiscover(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"locales/en.json":     `{}`,
		"locales/fr.json":     `{}`,
		"locales/pt-BR.yaml":  "a: b\n",
		"locales/schema.json": `{}`,
		"locales/README.md":   "docs",
	})

	sources, err := Discover(fs, "locales/*.{json,yaml}", nil)
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Locale: "en", Path: "locales/en.json"},
		{Locale: "fr", Path: "locales/fr.json"},
		{Locale: "pt-BR", Path: "locales/pt-BR.yaml"},
	}, sources)
}

func TestGlobRootedPattern(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/srv/app/messages/en.json":    `{}`,
		"/srv/app/messages/de/de.json": `{}`,
	})

	matches, err := Glob(fs, "/srv/app/messages/**/*.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/app/messages/de/de.json", "/srv/app/messages/en.json"}, matches)

	_, err = Glob(fs, "messages/[")
	require.Error(t, err)
}

func TestDiscoverRejectsDuplicateLocale(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"locales/a/en.json": `{}`,
		"locales/b/en.json": `{}`,
	})

	_, err := Discover(fs, "locales/**/*.json", nil)
	require.Error(t, err)
}

func TestValidateLocaleID(t *testing.T) {
	assert.NoError(t, ValidateLocaleID("en"))
	assert.NoError(t, ValidateLocaleID("zh-Hant"))
	assert.Error(t, ValidateLocaleID(""))
	assert.Error(t, ValidateLocaleID("not a tag"))
}
