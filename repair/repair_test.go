package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"localesync/keytree"
)

// tree builds a key tree from dotted path/value pairs, in order.
func tree(t *testing.T, pairs ...string) *keytree.Tree {
	t.Helper()
	require.Zero(t, len(pairs)%2, "pairs must be even")
	root := keytree.NewNode()
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, root.Insert(keytree.ParsePath(pairs[i]), keytree.Leaf(pairs[i+1])))
	}
	return root
}

func strs(paths []keytree.Path) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.String())
	}
	return out
}

func value(t *testing.T, root *keytree.Tree, path string) string {
	t.Helper()
	v, ok := root.Lookup(keytree.ParsePath(path))
	require.True(t, ok, "missing %s", path)
	require.True(t, v.IsLeaf(), "%s is not a leaf", path)
	return v.Value()
}

func TestCompare(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "nav.about", "About", "title", "T")
	loc := tree(t, "nav.home", "Accueil", "legacy", "x")

	d := Compare("fr", Canonical(ref), ref, loc)
	assert.Equal(t, "fr", d.Locale)
	assert.Equal(t, []string{"nav.about", "title"}, strs(d.Missing))
	assert.Equal(t, []string{"legacy"}, strs(d.Extra))
	assert.Empty(t, d.Conflicts)
	assert.False(t, d.Empty())

	same := Compare("en", Canonical(ref), ref, ref.Clone())
	assert.True(t, same.Empty())
}

func TestCompareTypeConflictReportedBothWays(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "title", "T")
	loc := tree(t, "nav", "flat string", "title.main", "Nested")

	d := Compare("de", Canonical(ref), ref, loc)
	assert.Equal(t, []string{"nav.home", "title"}, strs(d.Missing))
	assert.Equal(t, []string{"nav", "title.main"}, strs(d.Extra))
	require.Len(t, d.Conflicts, 2)
	assert.Equal(t, "nav", d.Conflicts[0].Path.String())
	assert.Equal(t, keytree.KindNode, d.Conflicts[0].Want)
	assert.Equal(t, keytree.KindLeaf, d.Conflicts[0].Got)
	assert.Equal(t, "title", d.Conflicts[1].Path.String())
	assert.Equal(t, keytree.KindLeaf, d.Conflicts[1].Want)
	assert.Equal(t, keytree.KindNode, d.Conflicts[1].Got)
}

func TestRenameMovesValue(t *testing.T) {
	rule, err := NewRule("a", "b", "c")
	require.NoError(t, err)
	loc := tree(t, "a.b", "X", "a.z", "Z")

	results := NewRenamer([]Rule{rule}, nil).Apply("fr", loc)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeMoved, results[0].Outcome)
	assert.Equal(t, "X", value(t, loc, "a.c"))
	_, ok := loc.Lookup(keytree.ParsePath("a.b"))
	assert.False(t, ok)

	a, _ := loc.Child("a")
	assert.Equal(t, []string{"c", "z"}, a.Keys(), "renamed key keeps its position")
	assert.Equal(t, []string{"a.c"}, strs(RenamedPaths(results)))
}

func TestRenameConflictNewWinsAndIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rule, err := NewRule("", "a.b", "a.c")
	require.NoError(t, err)
	loc := tree(t, "a.b", "X", "a.c", "Y")

	results := NewRenamer([]Rule{rule}, zap.New(core)).Apply("fr", loc)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeConflict, results[0].Outcome)
	assert.Equal(t, "Y", value(t, loc, "a.c"))
	_, ok := loc.Lookup(keytree.ParsePath("a.b"))
	assert.False(t, ok)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "fr", entry.ContextMap()["locale"])
	assert.Equal(t, "a.b", entry.ContextMap()["from"])
	assert.Empty(t, RenamedPaths(results))
}

func TestRenameSubtreeAcrossParents(t *testing.T) {
	rule, err := NewRule("", "legacy.sacredTexts", "sacredTexts")
	require.NoError(t, err)
	loc := tree(t, "legacy.sacredTexts.buddhism.title", "Tipitaka", "nav.home", "Home")

	results := NewRenamer([]Rule{rule}, nil).Apply("en", loc)
	require.Len(t, results, 1)
	assert.Equal(t, "Tipitaka", value(t, loc, "sacredTexts.buddhism.title"))
	assert.Equal(t, []string{"nav", "sacredTexts"}, loc.Keys(), "empty legacy parent is pruned")
}

func TestRenameBlockedLeavesOldKey(t *testing.T) {
	rule, err := NewRule("", "old", "nav.home.label")
	require.NoError(t, err)
	loc := tree(t, "old", "X", "nav.home", "Home")

	results := NewRenamer([]Rule{rule}, nil).Apply("en", loc)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeBlocked, results[0].Outcome)
	assert.Equal(t, "X", value(t, loc, "old"))
	assert.Equal(t, "Home", value(t, loc, "nav.home"))
}

func TestRenameWildcardScope(t *testing.T) {
	rule, err := NewRule("*.categories", "buddhism", "buddhist")
	require.NoError(t, err)
	loc := tree(t,
		"sacredTexts.categories.buddhism", "Buddhism",
		"history.categories.buddhism", "Buddhism",
		"history.categories.hindu", "Hindu",
		"buddhism", "top-level untouched",
	)

	results := NewRenamer([]Rule{rule}, nil).Apply("en", loc)
	require.Len(t, results, 2)
	assert.Equal(t, "Buddhism", value(t, loc, "sacredTexts.categories.buddhist"))
	assert.Equal(t, "Buddhism", value(t, loc, "history.categories.buddhist"))
	assert.Equal(t, "top-level untouched", value(t, loc, "buddhism"))
}

func TestRenameIsIdempotent(t *testing.T) {
	rules := []Rule{
		{Scope: keytree.ParsePath("sacredTexts"), From: keytree.ParsePath("buddhism"), To: keytree.ParsePath("buddhist")},
		{From: keytree.ParsePath("nav.aboutUs"), To: keytree.ParsePath("nav.about")},
	}
	loc := tree(t, "sacredTexts.buddhism.title", "T", "nav.aboutUs", "About us", "nav.about", "About")
	renamer := NewRenamer(rules, nil)

	first := renamer.Apply("en", loc)
	require.Len(t, first, 2)
	snapshot := loc.Clone()

	second := renamer.Apply("en", loc)
	assert.Empty(t, second)
	assert.True(t, snapshot.Equal(loc))
}

func TestRuleValidation(t *testing.T) {
	tests := []struct {
		name      string
		scope     string
		from, to  string
		wantError bool
	}{
		{name: "Valid", scope: "sacredTexts", from: "buddhism", to: "buddhist"},
		{name: "Missing to", from: "a", wantError: true},
		{name: "Identical", from: "a.b", to: "a.b", wantError: true},
		{name: "Nested target", from: "a", to: "a.b", wantError: true},
		{name: "Wildcard in from", from: "*", to: "b", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRule(tt.scope, tt.from, tt.to)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateTable(t *testing.T) {
	mustRule := func(scope, from, to string) Rule {
		r, err := NewRule(scope, from, to)
		require.NoError(t, err)
		return r
	}
	tests := []struct {
		name      string
		rules     []Rule
		wantError bool
	}{
		{name: "Chain", rules: []Rule{mustRule("", "a", "b"), mustRule("", "b", "c")}},
		{name: "Cycle", rules: []Rule{mustRule("", "a", "b"), mustRule("", "b", "a")}, wantError: true},
		{name: "Back into moved key", rules: []Rule{mustRule("", "b", "c"), mustRule("", "a", "b")}, wantError: true},
		{name: "Into moved section", rules: []Rule{mustRule("", "nav", "menu"), mustRule("", "x", "nav.x")}, wantError: true},
		{name: "Other scope", rules: []Rule{mustRule("s1", "a", "b"), mustRule("s2", "b", "a")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTable(tt.rules)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChainedRulesAreIdempotent(t *testing.T) {
	a, err := NewRule("", "a", "b")
	require.NoError(t, err)
	b, err := NewRule("", "b", "c")
	require.NoError(t, err)
	require.NoError(t, ValidateTable([]Rule{a, b}))

	loc := tree(t, "a", "A")
	r := NewRenamer([]Rule{a, b}, nil)
	r.Apply("fr", loc)
	assert.True(t, tree(t, "c", "A").Equal(loc))
	assert.Empty(t, r.Apply("fr", loc))
}

func TestBackfillFillsGapsOnly(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "nav.about", "About")
	loc := tree(t, "nav.home", "Accueil")

	d := Compare("fr", Canonical(ref), ref, loc)
	res := Backfill(loc, d.Missing, ref)

	assert.Equal(t, []string{"nav.about"}, strs(res.Synthesized))
	assert.Empty(t, res.Blocked)
	assert.Equal(t, "Accueil", value(t, loc, "nav.home"))
	assert.Equal(t, "About", value(t, loc, "nav.about"))
	assert.True(t, Compare("fr", Canonical(ref), ref, loc).Empty())
}

func TestBackfillBlockedByConflict(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "title", "T")
	loc := tree(t, "nav", "flat", "title.main", "Nested")

	d := Compare("de", Canonical(ref), ref, loc)
	res := Backfill(loc, d.Missing, ref)

	assert.Empty(t, res.Synthesized)
	assert.Equal(t, []string{"nav.home", "title"}, strs(res.Blocked))
	assert.Equal(t, "flat", value(t, loc, "nav"))
	assert.Equal(t, "Nested", value(t, loc, "title.main"))
}

func TestBackfillDoesNotAliasReference(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "nav.about", "About")
	loc := keytree.NewNode()

	Backfill(loc, Canonical(ref), ref)
	require.NoError(t, loc.Insert(keytree.ParsePath("nav.extra"), keytree.Leaf("x")))

	_, ok := ref.Lookup(keytree.ParsePath("nav.extra"))
	assert.False(t, ok)
}

// Reference {nav: {home, about}}, target {nav: {home}}, a rule
// nav.aboutUs -> nav.about that matches nothing: about is synthesized.
func TestRenameThenBackfillScenario(t *testing.T) {
	ref := tree(t, "nav.home", "Home", "nav.about", "About")
	loc := tree(t, "nav.home", "Accueil")
	rule, err := NewRule("", "nav.aboutUs", "nav.about")
	require.NoError(t, err)

	renames := NewRenamer([]Rule{rule}, nil).Apply("fr", loc)
	assert.Empty(t, renames)

	d := Compare("fr", Canonical(ref), ref, loc)
	res := Backfill(loc, d.Missing, ref)

	assert.Equal(t, []string{"nav.about"}, strs(res.Synthesized))
	assert.True(t, tree(t, "nav.home", "Accueil", "nav.about", "About").Equal(loc))
}

func TestRenameBeforeBackfillAvoidsSpuriousMissing(t *testing.T) {
	ref := tree(t, "sacredTexts.buddhist.title", "Tripitaka")
	loc := tree(t, "sacredTexts.buddhism.title", "Tipitaka (fr)")
	rule, err := NewRule("sacredTexts", "buddhism", "buddhist")
	require.NoError(t, err)

	NewRenamer([]Rule{rule}, nil).Apply("fr", loc)
	d := Compare("fr", Canonical(ref), ref, loc)
	assert.Empty(t, d.Missing)
	assert.Equal(t, "Tipitaka (fr)", value(t, loc, "sacredTexts.buddhist.title"))
}
