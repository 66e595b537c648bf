// Package report aggregates the outcome of a run per locale and renders it
// for terminals, CI artefacts and dashboards.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"localesync/keytree"
	"localesync/repair"
	"localesync/schema"
)

// Locale status values.
const (
	StatusReference   = "reference"
	StatusOK          = "ok"
	StatusRepaired    = "repaired"
	StatusNeedsRepair = "needs-repair"
	StatusFailed      = "failed"
)

// LocaleRun is everything the pipeline learned about one locale.
type LocaleRun struct {
	Locale    string
	File      string
	Reference bool
	LoadErr   error
	Renames   []repair.RenameResult
	// Before is the diff taken before any repair, After the final one.
	Before   repair.Diff
	After    repair.Diff
	Backfill repair.BackfillResult
	Written  bool
	// Backup names the copy taken before the first write, if any.
	Backup   string
	WriteErr error
}

// Input is handed to Build once a run has finished.
type Input struct {
	RunID         string
	Reference     string
	DryRun        bool
	GeneratedAt   time.Time
	CanonicalKeys int
	Locales       []LocaleRun
	Findings      *schema.Findings
	Usage         *UsageStatus
	// Errors holds per-file failures, usually a *multierror.Error.
	Errors error
}

type RenameEntry struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Outcome string `json:"outcome"`
}

type ConflictEntry struct {
	Path string `json:"path"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

// LocaleStatus is the rendered outcome for one locale.
type LocaleStatus struct {
	Locale     string          `json:"locale"`
	File       string          `json:"file"`
	Status     string          `json:"status"`
	Completion float64         `json:"completion"`
	Renamed    []RenameEntry   `json:"renamed,omitempty"`
	Backfilled []string        `json:"backfilled,omitempty"`
	Blocked    []string        `json:"blocked,omitempty"`
	Missing    []string        `json:"missing,omitempty"`
	Extra      []string        `json:"extra,omitempty"`
	Conflicts  []ConflictEntry `json:"conflicts,omitempty"`
	Written    bool            `json:"written"`
	Backup     string          `json:"backup,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Changed reports whether repair touched the locale's tree.
func (l LocaleStatus) Changed() bool {
	return len(l.Backfilled) > 0 || movedOrDropped(l.Renamed)
}

type MismatchEntry struct {
	Locale string `json:"locale"`
	Path   string `json:"path"`
	Want   string `json:"want"`
	Got    string `json:"got"`
}

type UnresolvedEntry struct {
	Path     string `json:"path"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// SchemaStatus mirrors schema.Findings with plain strings.
type SchemaStatus struct {
	LocaleGaps map[string][]string          `json:"locale_gaps,omitempty"`
	Drift      []string                     `json:"drift,omitempty"`
	Mismatches []MismatchEntry              `json:"mismatches,omitempty"`
	Undeclared []string                     `json:"undeclared,omitempty"`
	Unresolved map[string][]UnresolvedEntry `json:"unresolved,omitempty"`
}

// Clean reports whether the schema check found nothing.
func (s *SchemaStatus) Clean() bool {
	return s == nil || (len(s.LocaleGaps) == 0 && len(s.Drift) == 0 && len(s.Mismatches) == 0 &&
		len(s.Undeclared) == 0 && len(s.Unresolved) == 0)
}

// UsageStatus compares translation calls in source code with the reference.
type UsageStatus struct {
	Files     int      `json:"files"`
	Undefined []string `json:"undefined,omitempty"`
	Unused    []string `json:"unused,omitempty"`
}

// Report is the aggregate outcome of a run.
type Report struct {
	RunID         string         `json:"run_id"`
	Reference     string         `json:"reference"`
	DryRun        bool           `json:"dry_run"`
	GeneratedAt   time.Time      `json:"generated_at"`
	CanonicalKeys int            `json:"canonical_keys"`
	Locales       []LocaleStatus `json:"locales"`
	Schema        *SchemaStatus  `json:"schema,omitempty"`
	Usage         *UsageStatus   `json:"usage,omitempty"`
	Failures      []string       `json:"failures,omitempty"`

	err error
}

// Err returns the accumulated per-file failures, or nil.
func (r *Report) Err() error {
	return r.err
}

// Totals are summed over all locales.
type Totals struct {
	Locales    int
	Failed     int
	Changed    int
	Written    int
	Renamed    int
	Backfilled int
	Blocked    int
	Missing    int
	Extra      int
	Conflicts  int
}

// Totals sums the per-locale counters.
func (r *Report) Totals() Totals {
	var t Totals
	for _, l := range r.Locales {
		t.Locales++
		if l.Status == StatusFailed {
			t.Failed++
		}
		if l.Changed() {
			t.Changed++
		}
		if l.Written {
			t.Written++
		}
		t.Renamed += len(l.Renamed)
		t.Backfilled += len(l.Backfilled)
		t.Blocked += len(l.Blocked)
		t.Missing += len(l.Missing)
		t.Extra += len(l.Extra)
		t.Conflicts += len(l.Conflicts)
	}
	return t
}

// Build turns the raw run data into a Report. Locales are sorted with the
// reference first.
func Build(in Input) *Report {
	r := &Report{
		RunID:         in.RunID,
		Reference:     in.Reference,
		DryRun:        in.DryRun,
		GeneratedAt:   in.GeneratedAt,
		CanonicalKeys: in.CanonicalKeys,
		Usage:         in.Usage,
		err:           in.Errors,
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}

	for _, run := range in.Locales {
		r.Locales = append(r.Locales, buildLocale(run, in.CanonicalKeys, in.DryRun))
	}
	sort.SliceStable(r.Locales, func(i, j int) bool {
		a, b := r.Locales[i], r.Locales[j]
		if (a.Status == StatusReference) != (b.Status == StatusReference) {
			return a.Status == StatusReference
		}
		return a.Locale < b.Locale
	})

	if in.Findings != nil {
		r.Schema = buildSchema(*in.Findings)
	}

	if in.Errors != nil {
		if merr, ok := in.Errors.(*multierror.Error); ok {
			for _, err := range merr.Errors {
				r.Failures = append(r.Failures, err.Error())
			}
		} else {
			r.Failures = append(r.Failures, in.Errors.Error())
		}
	}
	return r
}

func buildLocale(run LocaleRun, canonical int, dryRun bool) LocaleStatus {
	s := LocaleStatus{
		Locale:  run.Locale,
		File:    run.File,
		Written: run.Written,
		Backup:  run.Backup,
	}
	if run.LoadErr != nil {
		s.Status = StatusFailed
		s.Error = run.LoadErr.Error()
		return s
	}

	for _, res := range run.Renames {
		s.Renamed = append(s.Renamed, RenameEntry{
			From:    res.From.String(),
			To:      res.To.String(),
			Outcome: string(res.Outcome),
		})
	}
	s.Backfilled = strs(run.Backfill.Synthesized)
	s.Blocked = strs(run.Backfill.Blocked)
	s.Missing = strs(run.After.Missing)
	s.Extra = strs(run.After.Extra)
	for _, c := range run.After.Conflicts {
		s.Conflicts = append(s.Conflicts, ConflictEntry{Path: c.Path.String(), Want: c.Want.String(), Got: c.Got.String()})
	}
	// Keys present under a legacy name count as translated.
	s.Completion = percent(canonical-len(run.Backfill.Synthesized)-len(run.After.Missing), canonical)

	switch {
	case run.WriteErr != nil:
		s.Status = StatusFailed
		s.Error = run.WriteErr.Error()
	case run.Reference:
		s.Status = StatusReference
	case s.Changed() && dryRun:
		s.Status = StatusNeedsRepair
	case s.Changed():
		s.Status = StatusRepaired
	default:
		s.Status = StatusOK
	}
	return s
}

func buildSchema(f schema.Findings) *SchemaStatus {
	s := &SchemaStatus{
		Drift:      strs(f.Drift),
		Undeclared: strs(f.Undeclared),
	}
	for locale, gaps := range f.LocaleGaps {
		if len(gaps) == 0 {
			continue
		}
		if s.LocaleGaps == nil {
			s.LocaleGaps = map[string][]string{}
		}
		s.LocaleGaps[locale] = strs(gaps)
	}
	for _, m := range f.Mismatches {
		s.Mismatches = append(s.Mismatches, MismatchEntry{
			Locale: m.Locale,
			Path:   m.Path.String(),
			Want:   m.Want.String(),
			Got:    m.Got.String(),
		})
	}
	for locale, entries := range f.Unresolved {
		if len(entries) == 0 {
			continue
		}
		if s.Unresolved == nil {
			s.Unresolved = map[string][]UnresolvedEntry{}
		}
		for _, u := range entries {
			s.Unresolved[locale] = append(s.Unresolved[locale], UnresolvedEntry{
				Path:     u.Path.String(),
				Fallback: u.Fallback,
				Reason:   u.Reason,
			})
		}
	}
	return s
}

func movedOrDropped(entries []RenameEntry) bool {
	for _, e := range entries {
		if e.Outcome != string(repair.OutcomeBlocked) {
			return true
		}
	}
	return false
}

func strs(paths []keytree.Path) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.String())
	}
	return out
}

func percent(numerator int, denominator int) float64 {
	if denominator <= 0 {
		return 100
	}
	value := float64(numerator) * 100 / float64(denominator)
	return math.Round(value*10) / 10
}

// Category selects which findings fail a check run.
type Category string

const (
	CategoryMissing  Category = "missing"
	CategoryExtra    Category = "extra"
	CategoryConflict Category = "conflict"
	CategoryDrift    Category = "drift"
	CategorySchema   Category = "schema"
	CategoryUsage    Category = "usage"
	CategoryFailed   Category = "failed"
)

var allCategories = []Category{CategoryMissing, CategoryExtra, CategoryConflict, CategoryDrift, CategorySchema, CategoryUsage, CategoryFailed}

// ParseCategories parses a comma separated category list.
func ParseCategories(list string) ([]Category, error) {
	var out []Category
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		found := false
		for _, c := range allCategories {
			if string(c) == name {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown category %q", name)
		}
	}
	return out, nil
}

// Violations lists the findings that belong to any of cats.
func (r *Report) Violations(cats []Category) []string {
	var out []string
	for _, cat := range cats {
		out = append(out, r.violations(cat)...)
	}
	return out
}

func (r *Report) violations(cat Category) []string {
	var out []string
	switch cat {
	case CategoryMissing:
		for _, l := range r.Locales {
			for _, p := range l.Backfilled {
				out = append(out, fmt.Sprintf("%s: missing %s", l.Locale, p))
			}
			for _, p := range l.Missing {
				out = append(out, fmt.Sprintf("%s: missing %s", l.Locale, p))
			}
		}
	case CategoryExtra:
		for _, l := range r.Locales {
			for _, p := range l.Extra {
				out = append(out, fmt.Sprintf("%s: extra %s", l.Locale, p))
			}
		}
	case CategoryConflict:
		for _, l := range r.Locales {
			for _, c := range l.Conflicts {
				out = append(out, fmt.Sprintf("%s: conflict %s (want %s, got %s)", l.Locale, c.Path, c.Want, c.Got))
			}
			for _, e := range l.Renamed {
				if e.Outcome != string(repair.OutcomeMoved) {
					out = append(out, fmt.Sprintf("%s: rename %s -> %s %s", l.Locale, e.From, e.To, e.Outcome))
				}
			}
		}
	case CategoryDrift:
		if r.Schema != nil {
			for _, p := range r.Schema.Drift {
				out = append(out, fmt.Sprintf("schema: %s is declared but absent from every locale", p))
			}
			for _, m := range r.Schema.Mismatches {
				out = append(out, fmt.Sprintf("schema: %s: %s declared as %s, found %s", m.Locale, m.Path, m.Want, m.Got))
			}
		}
	case CategorySchema:
		if r.Schema != nil {
			for _, locale := range sortedKeys(r.Schema.LocaleGaps) {
				for _, p := range r.Schema.LocaleGaps[locale] {
					out = append(out, fmt.Sprintf("schema: %s: missing declared %s", locale, p))
				}
			}
			for _, p := range r.Schema.Undeclared {
				out = append(out, fmt.Sprintf("schema: %s is not declared", p))
			}
		}
	case CategoryUsage:
		if r.Usage != nil {
			for _, k := range r.Usage.Undefined {
				out = append(out, fmt.Sprintf("usage: %s is used but not defined", k))
			}
		}
	case CategoryFailed:
		for _, l := range r.Locales {
			if l.Status == StatusFailed {
				out = append(out, fmt.Sprintf("%s: %s", l.Locale, l.Error))
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
