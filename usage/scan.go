// Package usage finds translation keys referenced from source code.
package usage

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"localesync/keytree"
	"localesync/locales"
)

var skippedDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	".next":        true,
}

// Result maps every key found to the files that reference it.
type Result struct {
	Keys  map[string][]string
	Files int
}

// Sorted returns the keys in lexical order.
func (r *Result) Sorted() []string {
	keys := make([]string, 0, len(r.Keys))
	for k := range r.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scanner matches calls like t("nav.home") in source files.
type Scanner struct {
	fs     afero.Fs
	re     *regexp.Regexp
	logger *zap.Logger
}

// NewScanner builds a scanner for the translation function call, e.g. "t"
// or "utils.T". Only the first string literal argument is taken as key.
func NewScanner(fsys afero.Fs, call string, logger *zap.Logger) (*Scanner, error) {
	if call == "" {
		return nil, fmt.Errorf("usage: translation call name is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	re, err := regexp.Compile(`(?:^|[^\w.])` + regexp.QuoteMeta(call) + "\\s*\\(\\s*[\"'`]([A-Za-z0-9_.\\-]+)[\"'`]")
	if err != nil {
		return nil, fmt.Errorf("usage: %w", err)
	}
	return &Scanner{fs: fsys, re: re, logger: logger}, nil
}

// Scan reads every file matching the doublestar pattern.
func (s *Scanner) Scan(pattern string) (*Result, error) {
	matches, err := locales.Glob(s.fs, pattern)
	if err != nil {
		return nil, err
	}

	res := &Result{Keys: map[string][]string{}}
	for _, match := range matches {
		if skipped(match) {
			continue
		}
		info, err := s.fs.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := afero.ReadFile(s.fs, match)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", match, err)
		}
		res.Files++
		seen := map[string]bool{}
		for _, m := range s.re.FindAllSubmatch(data, -1) {
			key := string(m[1])
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Keys[key] = append(res.Keys[key], match)
		}
	}
	s.logger.Debug("Scanned sources for translation keys",
		zap.String("pattern", pattern),
		zap.Int("files", res.Files),
		zap.Int("keys", len(res.Keys)))
	return res, nil
}

func skipped(file string) bool {
	for _, part := range strings.Split(path.Dir(file), "/") {
		if skippedDirs[part] {
			return true
		}
	}
	return false
}

// Compare checks scanned keys against the reference tree. Undefined keys
// are used in code but absent from the reference. Unused keys are
// reference leaves no call reaches, directly or through a used section.
func Compare(res *Result, ref *keytree.Tree) (undefined, unused []string) {
	used := map[string]bool{}
	for _, key := range res.Sorted() {
		p := keytree.ParsePath(key)
		if _, ok := ref.Lookup(p); !ok {
			undefined = append(undefined, key)
			continue
		}
		used[p.Key()] = true
	}

	for _, p := range keytree.Paths(ref) {
		reached := false
		for i := len(p); i > 0; i-- {
			if used[p[:i].Key()] {
				reached = true
				break
			}
		}
		if !reached {
			unused = append(unused, p.String())
		}
	}
	return undefined, unused
}
