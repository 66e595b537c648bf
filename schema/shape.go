// Package schema cross-checks the compile-time translation schema against
// the runtime locale files.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"localesync/keytree"
)

// Shape is the declared key shape. Leaves carry no meaningful value.
type Shape struct {
	tree *keytree.Tree
}

// FromTree derives a shape from a skeleton tree, e.g. a messages file
// generated from the typed schema.
func FromTree(tree *keytree.Tree) Shape {
	return Shape{tree: tree.Clone()}
}

// FromStruct derives a shape from a typed nested struct. Field names follow
// encoding/json rules: the json tag name wins, "-" skips the field and
// untagged embedded structs are inlined. String fields are leaves and
// struct fields are nested sections; any other type is rejected.
func FromStruct(v any) (Shape, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Shape{}, fmt.Errorf("schema: expected struct, got %v", t)
	}
	root := keytree.NewNode()
	if err := addFields(root, t, nil); err != nil {
		return Shape{}, err
	}
	return Shape{tree: root}, nil
}

func addFields(node *keytree.Tree, t reflect.Type, prefix keytree.Path) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}
		name, inline, skip := fieldName(f)
		if skip {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if inline && ft.Kind() == reflect.Struct {
			if err := addFields(node, ft, prefix); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		path := prefix.Join(name)
		switch ft.Kind() {
		case reflect.String:
			node.Set(name, keytree.Leaf(""))
		case reflect.Struct:
			child := keytree.NewNode()
			if err := addFields(child, ft, path); err != nil {
				return err
			}
			node.Set(name, child)
		default:
			return fmt.Errorf("schema: field %s at %q has unsupported type %s", f.Name, path.String(), ft)
		}
	}
	return nil
}

func fieldName(f reflect.StructField) (name string, inline, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, _, _ = strings.Cut(tag, ",")
	if name == "" {
		if f.Anonymous {
			return f.Name, true, false
		}
		name = f.Name
	}
	return name, false, false
}

// Paths lists the declared leaf paths depth-first.
func (s Shape) Paths() []keytree.Path {
	if s.tree == nil {
		return nil
	}
	return keytree.Paths(s.tree)
}

// Lookup returns the declared kind at path.
func (s Shape) Lookup(path keytree.Path) (keytree.Kind, bool) {
	if s.tree == nil {
		return 0, false
	}
	v, ok := s.tree.Lookup(path)
	if !ok {
		return 0, false
	}
	return v.Kind(), true
}

// Tree exposes the skeleton for walking.
func (s Shape) Tree() *keytree.Tree {
	if s.tree == nil {
		return keytree.NewNode()
	}
	return s.tree
}
