// Package repair holds the pure transformation stages of a run: structural
// diffing, rename migration and reference backfill. Nothing here touches
// the filesystem.
package repair

import (
	"localesync/keytree"
)

// Conflict records a key path holding a leaf in one tree and a node in the
// other. Conflicts are never resolved automatically.
type Conflict struct {
	Path keytree.Path
	Want keytree.Kind
	Got  keytree.Kind
}

// Diff compares one locale against the canonical key set.
type Diff struct {
	Locale    string
	Missing   []keytree.Path
	Extra     []keytree.Path
	Renamed   []keytree.Path
	Conflicts []Conflict
}

// Empty reports whether the locale matches the canonical shape exactly.
func (d Diff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Conflicts) == 0
}

// Canonical extracts the canonical key paths from the reference tree.
func Canonical(ref *keytree.Tree) []keytree.Path {
	return keytree.Paths(ref)
}

// Compare diffs tree against the canonical paths of ref. Missing keeps
// canonical order and Extra keeps the locale's own order.
func Compare(locale string, canonical []keytree.Path, ref, tree *keytree.Tree) Diff {
	own := keytree.Paths(tree)
	canonicalSet := pathSet(canonical)
	ownSet := pathSet(own)

	d := Diff{Locale: locale}
	for _, p := range canonical {
		if _, ok := ownSet[p.Key()]; !ok {
			d.Missing = append(d.Missing, p)
		}
	}
	for _, p := range own {
		if _, ok := canonicalSet[p.Key()]; !ok {
			d.Extra = append(d.Extra, p)
		}
	}
	d.Conflicts = conflicts(ref, tree)
	return d
}

// conflicts walks both trees in lockstep and stops descending at the first
// kind mismatch on each branch.
func conflicts(ref, tree *keytree.Tree) []Conflict {
	var out []Conflict
	ref.Walk(func(path keytree.Path, want *keytree.Tree) bool {
		got, ok := tree.Lookup(path)
		if !ok {
			return false
		}
		if got.Kind() != want.Kind() {
			out = append(out, Conflict{Path: path, Want: want.Kind(), Got: got.Kind()})
			return false
		}
		return true
	})
	return out
}

func pathSet(paths []keytree.Path) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p.Key()] = struct{}{}
	}
	return out
}
