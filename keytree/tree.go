// Package keytree models a locale's translation data as a recursive sum type:
// every value is either a Leaf holding a string or a Node holding ordered
// children. Traversal, diffing and merging are total functions over it.
package keytree

import (
	"errors"
	"fmt"
)

// Kind distinguishes leaves from nodes.
type Kind int

const (
	KindLeaf Kind = iota
	KindNode
)

func (k Kind) String() string {
	if k == KindNode {
		return "node"
	}
	return "leaf"
}

var (
	// ErrExists is returned by Insert when the target path already holds a value.
	ErrExists = errors.New("key path already exists")
	// ErrBlocked is returned when a leaf sits where a node is required.
	ErrBlocked = errors.New("key path blocked by leaf")
	// ErrEmptyPath is returned for operations on the root path.
	ErrEmptyPath = errors.New("empty key path")
)

// Tree is either a leaf (string value) or a node (ordered children).
type Tree struct {
	kind     Kind
	value    string
	keys     []string
	children map[string]*Tree
}

// Leaf returns a leaf tree holding value.
func Leaf(value string) *Tree {
	return &Tree{kind: KindLeaf, value: value}
}

// NewNode returns an empty node.
func NewNode() *Tree {
	return &Tree{kind: KindNode, children: map[string]*Tree{}}
}

// Kind reports whether t is a leaf or a node.
func (t *Tree) Kind() Kind { return t.kind }

// IsLeaf reports whether t holds a string value.
func (t *Tree) IsLeaf() bool { return t.kind == KindLeaf }

// Value returns the leaf value, or "" for nodes.
func (t *Tree) Value() string { return t.value }

// Len returns the number of direct children.
func (t *Tree) Len() int { return len(t.keys) }

// Keys returns the child keys in insertion order.
func (t *Tree) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Child returns the direct child stored under key.
func (t *Tree) Child(key string) (*Tree, bool) {
	if t.kind != KindNode {
		return nil, false
	}
	child, ok := t.children[key]
	return child, ok
}

// Set stores child under key. New keys are appended; existing keys keep
// their position.
func (t *Tree) Set(key string, child *Tree) {
	if t.kind != KindNode {
		panic("keytree: Set on leaf")
	}
	if _, ok := t.children[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.children[key] = child
}

// Delete removes key and reports whether it was present.
func (t *Tree) Delete(key string) bool {
	if t.kind != KindNode {
		return false
	}
	if _, ok := t.children[key]; !ok {
		return false
	}
	delete(t.children, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return true
}

// RenameKey moves the child stored under from to to, keeping its position.
// It fails when from is absent or to is already taken.
func (t *Tree) RenameKey(from, to string) bool {
	if t.kind != KindNode || from == to {
		return false
	}
	child, ok := t.children[from]
	if !ok {
		return false
	}
	if _, taken := t.children[to]; taken {
		return false
	}
	for i, k := range t.keys {
		if k == from {
			t.keys[i] = to
			break
		}
	}
	delete(t.children, from)
	t.children[to] = child
	return true
}

// Lookup walks path from t. The empty path returns t itself.
func (t *Tree) Lookup(path Path) (*Tree, bool) {
	cur := t
	for _, seg := range path {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Insert places value at path, creating intermediate nodes as needed. It
// never replaces an existing value: ErrExists is returned when path is
// occupied and ErrBlocked when a leaf sits on the way.
func (t *Tree) Insert(path Path, value *Tree) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	cur := t
	for i, seg := range path.Parent() {
		next, ok := cur.children[seg]
		if !ok {
			next = NewNode()
			cur.Set(seg, next)
		} else if next.IsLeaf() {
			return fmt.Errorf("%w: %s", ErrBlocked, path[:i+1])
		}
		cur = next
	}
	if _, ok := cur.children[path.Last()]; ok {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	cur.Set(path.Last(), value)
	return nil
}

// CanInsert reports whether Insert(path, ...) would succeed without
// modifying t.
func (t *Tree) CanInsert(path Path) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	cur := t
	for i, seg := range path {
		next, ok := cur.children[seg]
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		if next.IsLeaf() {
			return fmt.Errorf("%w: %s", ErrBlocked, path[:i+1])
		}
		cur = next
	}
	return nil
}

// Remove deletes the value at path and prunes ancestors left empty by the
// removal. It reports whether anything was removed.
func (t *Tree) Remove(path Path) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := t.Lookup(path.Parent())
	if !ok || !parent.Delete(path.Last()) {
		return false
	}
	for p := path.Parent(); len(p) > 0; p = p.Parent() {
		node, ok := t.Lookup(p)
		if !ok || node.IsLeaf() || node.Len() > 0 {
			break
		}
		grand, _ := t.Lookup(p.Parent())
		grand.Delete(p.Last())
	}
	return true
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	if t.kind == KindLeaf {
		return Leaf(t.value)
	}
	out := NewNode()
	for _, key := range t.keys {
		out.Set(key, t.children[key].Clone())
	}
	return out
}

// Equal reports structural and value equality, including child order.
func (t *Tree) Equal(other *Tree) bool {
	if t.kind != other.kind {
		return false
	}
	if t.kind == KindLeaf {
		return t.value == other.value
	}
	if len(t.keys) != len(other.keys) {
		return false
	}
	for i, key := range t.keys {
		if other.keys[i] != key || !t.children[key].Equal(other.children[key]) {
			return false
		}
	}
	return true
}

// Walk visits every value depth-first in insertion order. The root is not
// visited. Returning false from fn skips the children of a node.
func (t *Tree) Walk(fn func(path Path, value *Tree) bool) {
	t.walk(nil, fn)
}

func (t *Tree) walk(prefix Path, fn func(Path, *Tree) bool) {
	for _, key := range t.keys {
		child := t.children[key]
		path := prefix.Join(key)
		if !fn(path, child) {
			continue
		}
		if !child.IsLeaf() {
			child.walk(path, fn)
		}
	}
}

// Paths flattens t into one path per leaf, depth-first in insertion order.
func Paths(t *Tree) []Path {
	var out []Path
	t.Walk(func(path Path, value *Tree) bool {
		if value.IsLeaf() {
			out = append(out, path)
		}
		return true
	})
	return out
}

// CountLeaves returns the number of leaves below t.
func CountLeaves(t *Tree) int {
	if t.IsLeaf() {
		return 1
	}
	count := 0
	for _, key := range t.keys {
		count += CountLeaves(t.children[key])
	}
	return count
}
