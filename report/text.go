package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

type palette struct {
	ok, warn, bad, dim, bold *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.dim, p.bold} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s string) string {
	switch s {
	case StatusOK, StatusReference:
		return p.ok.Sprint(s)
	case StatusRepaired, StatusNeedsRepair:
		return p.warn.Sprint(s)
	default:
		return p.bad.Sprint(s)
	}
}

// RenderText writes a human readable summary followed by per-locale detail.
func RenderText(w io.Writer, r *Report, colored bool) error {
	p := newPalette(colored)
	ew := &errWriter{w: w}

	mode := "fix"
	if r.DryRun {
		mode = "dry run"
	}
	ew.printf("%s %s %s\n", p.bold.Sprint("localesync"), p.dim.Sprint(r.RunID), p.dim.Sprintf("(%s, reference %s, %d keys)", mode, r.Reference, r.CanonicalKeys))

	for _, l := range r.Locales {
		ew.printf("  %-8s %-22s %5.1f%%", l.Locale, p.status(l.Status), l.Completion)
		if l.Status == StatusFailed {
			ew.printf("  %s\n", l.Error)
			continue
		}
		ew.printf("  renamed %d, backfilled %d, extra %d, conflicts %d", len(l.Renamed), len(l.Backfilled), len(l.Extra), len(l.Conflicts))
		if l.Written {
			ew.printf("  %s", p.ok.Sprint("written"))
		}
		ew.printf("\n")

		for _, e := range l.Renamed {
			ew.printf("    %s %s -> %s %s\n", p.warn.Sprint("~"), e.From, e.To, p.dim.Sprint(e.Outcome))
		}
		for _, k := range l.Backfilled {
			ew.printf("    %s %s\n", p.ok.Sprint("+"), k)
		}
		for _, k := range l.Blocked {
			ew.printf("    %s %s %s\n", p.bad.Sprint("!"), k, p.dim.Sprint("blocked"))
		}
		for _, c := range l.Conflicts {
			ew.printf("    %s %s %s\n", p.bad.Sprint("!"), c.Path, p.dim.Sprintf("want %s, got %s", c.Want, c.Got))
		}
		for _, k := range l.Extra {
			ew.printf("    %s %s %s\n", p.dim.Sprint("?"), k, p.dim.Sprint("extra"))
		}
	}

	if s := r.Schema; s != nil {
		if s.Clean() {
			ew.printf("%s %s\n", p.bold.Sprint("schema"), p.ok.Sprint("ok"))
		} else {
			ew.printf("%s drift %d, mismatches %d, undeclared %d\n", p.bold.Sprint("schema"), len(s.Drift), len(s.Mismatches), len(s.Undeclared))
			for _, k := range s.Drift {
				ew.printf("    %s %s %s\n", p.bad.Sprint("!"), k, p.dim.Sprint("declared, absent everywhere"))
			}
			for _, m := range s.Mismatches {
				ew.printf("    %s %s/%s %s\n", p.bad.Sprint("!"), m.Locale, m.Path, p.dim.Sprintf("declared %s, found %s", m.Want, m.Got))
			}
			for _, locale := range sortedKeys(s.LocaleGaps) {
				for _, k := range s.LocaleGaps[locale] {
					ew.printf("    %s %s/%s %s\n", p.warn.Sprint("-"), locale, k, p.dim.Sprint("gap"))
				}
			}
			for _, k := range s.Undeclared {
				ew.printf("    %s %s %s\n", p.dim.Sprint("?"), k, p.dim.Sprint("undeclared"))
			}
			for _, locale := range sortedKeys(s.Unresolved) {
				for _, u := range s.Unresolved[locale] {
					note := "unresolved"
					if u.Fallback {
						note = "fallback"
					}
					ew.printf("    %s %s/%s %s\n", p.warn.Sprint("-"), locale, u.Path, p.dim.Sprint(note))
				}
			}
		}
	}

	if u := r.Usage; u != nil {
		ew.printf("%s %d files, undefined %d, unused %d\n", p.bold.Sprint("usage"), u.Files, len(u.Undefined), len(u.Unused))
		for _, k := range u.Undefined {
			ew.printf("    %s %s %s\n", p.bad.Sprint("!"), k, p.dim.Sprint("undefined"))
		}
		for _, k := range u.Unused {
			ew.printf("    %s %s %s\n", p.dim.Sprint("?"), k, p.dim.Sprint("unused"))
		}
	}

	for _, f := range r.Failures {
		ew.printf("%s %s\n", p.bad.Sprint("error"), f)
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
