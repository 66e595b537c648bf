package locales

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Discover expands a glob pattern (doublestar syntax, e.g.
// "messages/**/*.json") into sources. The locale id is the file stem; files
// whose stem is not a valid BCP 47 tag or whose extension has no codec are
// skipped.
func Discover(fs afero.Fs, pattern string, logger *zap.Logger) ([]Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	matches, err := Glob(fs, pattern)
	if err != nil {
		return nil, err
	}

	seen := map[string]string{}
	out := make([]Source, 0, len(matches))
	for _, match := range matches {
		if _, err := CodecFor(match); err != nil {
			continue
		}
		id := strings.TrimSuffix(path.Base(match), path.Ext(match))
		if err := ValidateLocaleID(id); err != nil {
			logger.Debug("Skipping file without locale name",
				zap.String("file", match),
				zap.Error(err))
			continue
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("locale %q matched twice: %s and %s", id, prev, match)
		}
		seen[id] = match
		out = append(out, Source{Locale: id, Path: match})
	}
	return out, nil
}

// Glob matches a doublestar pattern against fs and returns sorted paths.
// Rooted patterns are matched below their static prefix, since io/fs
// paths cannot start with a slash.
func Glob(fs afero.Fs, pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	base := ""
	if path.IsAbs(pattern) {
		base, pattern = doublestar.SplitPattern(pattern)
		fs = afero.NewBasePathFs(fs, base)
	}
	matches, err := doublestar.Glob(afero.NewIOFS(fs), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if base != "" {
		for i := range matches {
			matches[i] = path.Join(base, matches[i])
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// ValidateLocaleID checks that id parses as a BCP 47 language tag.
func ValidateLocaleID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("locale id is empty")
	}
	if _, err := language.Parse(id); err != nil {
		return fmt.Errorf("locale id %q: %w", id, err)
	}
	return nil
}
