package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// JSON encodes the report as indented JSON with a trailing newline.
func JSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the JSON artefact to path.
func WriteJSON(fs afero.Fs, path string, r *Report) error {
	data, err := JSON(r)
	if err != nil {
		return err
	}
	return writeFile(fs, path, data)
}

// Markdown renders a translator-friendly status page.
func Markdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Localization Status\n\n")
	fmt.Fprintf(&b, "Run `%s`, reference locale `%s`, %d canonical keys.", r.RunID, r.Reference, r.CanonicalKeys)
	if r.DryRun {
		b.WriteString(" Dry run: nothing was written.")
	}
	b.WriteString("\n\n")

	b.WriteString("## Locale Summary\n\n")
	b.WriteString("| Locale | Status | Completion | Renamed | Backfilled | Extra | Conflicts | Written |\n")
	b.WriteString("| --- | --- | ---: | ---: | ---: | ---: | ---: | --- |\n")
	for _, l := range r.Locales {
		written := "no"
		if l.Written {
			written = "yes"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %.1f%% | %d | %d | %d | %d | %s |\n",
			l.Locale, l.Status, l.Completion, len(l.Renamed), len(l.Backfilled), len(l.Extra), len(l.Conflicts), written)
	}

	for _, l := range r.Locales {
		if l.Error == "" && len(l.Renamed) == 0 && len(l.Backfilled) == 0 && len(l.Blocked) == 0 &&
			len(l.Extra) == 0 && len(l.Conflicts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## Locale: `%s`\n", l.Locale)
		if l.Error != "" {
			fmt.Fprintf(&b, "\nError: %s\n", l.Error)
		}
		if len(l.Renamed) > 0 {
			b.WriteString("\n### Renamed Keys\n\n")
			for _, e := range l.Renamed {
				fmt.Fprintf(&b, "- `%s` -> `%s` (%s)\n", e.From, e.To, e.Outcome)
			}
		}
		keyList(&b, "Backfilled Keys", l.Backfilled)
		keyList(&b, "Blocked Keys", l.Blocked)
		keyList(&b, "Extra Keys", l.Extra)
		if len(l.Conflicts) > 0 {
			b.WriteString("\n### Type Conflicts\n\n")
			for _, c := range l.Conflicts {
				fmt.Fprintf(&b, "- `%s`: expected %s, found %s\n", c.Path, c.Want, c.Got)
			}
		}
	}

	if s := r.Schema; s != nil && !s.Clean() {
		b.WriteString("\n## Schema\n")
		keyList(&b, "Drift", s.Drift)
		keyList(&b, "Undeclared Keys", s.Undeclared)
		if len(s.Mismatches) > 0 {
			b.WriteString("\n### Shape Mismatches\n\n")
			for _, m := range s.Mismatches {
				fmt.Fprintf(&b, "- `%s` in `%s`: declared %s, found %s\n", m.Path, m.Locale, m.Want, m.Got)
			}
		}
		for _, locale := range sortedKeys(s.LocaleGaps) {
			keyList(&b, fmt.Sprintf("Gaps in `%s`", locale), s.LocaleGaps[locale])
		}
	}

	if u := r.Usage; u != nil && (len(u.Undefined) > 0 || len(u.Unused) > 0) {
		fmt.Fprintf(&b, "\n## Source Usage\n\n%d files scanned.\n", u.Files)
		keyList(&b, "Undefined Keys", u.Undefined)
		keyList(&b, "Unused Keys", u.Unused)
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// WriteMarkdown writes the Markdown artefact to path.
func WriteMarkdown(fs afero.Fs, path string, r *Report) error {
	return writeFile(fs, path, []byte(Markdown(r)))
}

func keyList(b *strings.Builder, title string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, key := range keys {
		b.WriteString("- `")
		b.WriteString(key)
		b.WriteString("`\n")
	}
}

func writeFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
