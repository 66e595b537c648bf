package schema

import (
	"errors"

	"localesync/catalog"
	"localesync/keytree"
)

// Mismatch is a declared leaf found as a section in a locale, or the
// reverse.
type Mismatch struct {
	Locale string
	Path   keytree.Path
	Want   keytree.Kind
	Got    keytree.Kind
}

// Unresolved is a declared key the runtime catalog could not serve from the
// locale itself.
type Unresolved struct {
	Path     keytree.Path
	Fallback bool
	Reason   string
}

// Findings are warnings only; they never block write-back.
type Findings struct {
	// LocaleGaps lists declared paths absent from a single locale.
	LocaleGaps map[string][]keytree.Path
	// Drift lists declared paths absent from every locale: the schema
	// itself no longer matches the data.
	Drift []keytree.Path
	// Mismatches lists leaf/section disagreements.
	Mismatches []Mismatch
	// Undeclared lists reference paths the schema does not declare.
	Undeclared []keytree.Path
	// Unresolved lists keys the catalog could not serve per locale.
	Unresolved map[string][]Unresolved
}

// Clean reports whether no finding was recorded.
func (f Findings) Clean() bool {
	return len(f.LocaleGaps) == 0 && len(f.Drift) == 0 && len(f.Mismatches) == 0 &&
		len(f.Undeclared) == 0 && len(f.Unresolved) == 0
}

// Locale is one runtime tree handed to Validate.
type Locale struct {
	ID   string
	Tree *keytree.Tree
}

// Validate checks that every declared path exists in every locale. ref is
// the reference tree used to detect undeclared keys; it may be nil.
func Validate(shape Shape, locales []Locale, ref *keytree.Tree) Findings {
	f := Findings{
		LocaleGaps: map[string][]keytree.Path{},
		Unresolved: map[string][]Unresolved{},
	}
	declared := shape.Paths()
	absentCount := map[string]int{}

	for _, loc := range locales {
		for _, p := range declared {
			v, ok := loc.Tree.Lookup(p)
			if ok && v.IsLeaf() {
				continue
			}
			f.LocaleGaps[loc.ID] = append(f.LocaleGaps[loc.ID], p)
			absentCount[p.Key()]++
		}
		f.Mismatches = append(f.Mismatches, mismatches(shape, loc)...)
	}

	if len(locales) > 0 {
		for _, p := range declared {
			if absentCount[p.Key()] == len(locales) {
				f.Drift = append(f.Drift, p)
			}
		}
	}

	if ref != nil {
		for _, p := range keytree.Paths(ref) {
			if kind, ok := shape.Lookup(p); !ok || kind != keytree.KindLeaf {
				f.Undeclared = append(f.Undeclared, p)
			}
		}
	}

	for id := range f.LocaleGaps {
		if len(f.LocaleGaps[id]) == 0 {
			delete(f.LocaleGaps, id)
		}
	}
	return f
}

func mismatches(shape Shape, loc Locale) []Mismatch {
	var out []Mismatch
	shape.Tree().Walk(func(path keytree.Path, want *keytree.Tree) bool {
		got, ok := loc.Tree.Lookup(path)
		if !ok {
			return false
		}
		if got.Kind() != want.Kind() {
			out = append(out, Mismatch{Locale: loc.ID, Path: path, Want: want.Kind(), Got: got.Kind()})
			return false
		}
		return true
	})
	return out
}

// CheckLookups resolves every declared key through the runtime catalog for every
// locale and records keys served by fallback or failing to render. Results
// are merged into f.
func CheckLookups(f *Findings, shape Shape, cat *catalog.Catalog, locales []string) {
	if f.Unresolved == nil {
		f.Unresolved = map[string][]Unresolved{}
	}
	declared := shape.Paths()
	for _, locale := range locales {
		for _, p := range declared {
			_, err := cat.Resolve(locale, p.String())
			if err == nil {
				continue
			}
			f.Unresolved[locale] = append(f.Unresolved[locale], Unresolved{
				Path:     p,
				Fallback: errors.Is(err, catalog.ErrFallback),
				Reason:   err.Error(),
			})
		}
	}
}
