package keytree

import "strings"

// Separator joins path segments in the dotted notation used by reports and
// rename rules.
const Separator = "."

// Path addresses one value inside a locale tree.
type Path []string

// ParsePath splits a dotted key path. Empty segments are dropped so that
// "nav..home" and "nav.home" address the same key.
func ParsePath(s string) Path {
	parts := strings.Split(strings.TrimSpace(s), Separator)
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String renders the path in dotted notation.
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Key returns a map key for p that cannot collide for segments containing
// the separator.
func (p Path) Key() string {
	return strings.Join(p, "\x00")
}

// Join returns a new path with the segments of other appended.
func (p Path) Join(other ...string) Path {
	out := make(Path, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final segment or "" for the empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Equal reports whether both paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}
