package locales

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"localesync/keytree"
)

// tomlCodec sorts keys on decode: TOML tables carry no order.
type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) Decode(data []byte) (*keytree.Tree, error) {
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return tomlTable(raw, nil)
}

func tomlTable(table map[string]any, prefix keytree.Path) (*keytree.Tree, error) {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	node := keytree.NewNode()
	for _, key := range keys {
		path := prefix.Join(key)
		switch value := table[key].(type) {
		case string:
			node.Set(key, keytree.Leaf(value))
		case map[string]any:
			child, err := tomlTable(value, path)
			if err != nil {
				return nil, err
			}
			node.Set(key, child)
		default:
			return nil, unsupported(path, fmt.Sprintf("%T", value))
		}
	}
	return node, nil
}

func (tomlCodec) Encode(tree *keytree.Tree) ([]byte, error) {
	data, err := toml.Marshal(tomlValue(tree))
	if err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return data, nil
}

func tomlValue(tree *keytree.Tree) any {
	if tree.IsLeaf() {
		return tree.Value()
	}
	out := make(map[string]any, tree.Len())
	for _, key := range tree.Keys() {
		child, _ := tree.Child(key)
		out[key] = tomlValue(child)
	}
	return out
}
