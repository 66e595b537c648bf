package locales

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"localesync/keytree"
)

const yamlStrTag = "!!str"

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Decode(data []byte) (*keytree.Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return keytree.NewNode(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top-level YAML value must be a mapping", ErrMalformed)
	}
	return yamlMapping(root, nil)
}

func yamlMapping(n *yaml.Node, prefix keytree.Path) (*keytree.Tree, error) {
	node := keytree.NewNode()
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		value := n.Content[i+1]
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		path := prefix.Join(name)
		switch value.Kind {
		case yaml.MappingNode:
			child, err := yamlMapping(value, path)
			if err != nil {
				return nil, err
			}
			node.Set(name, child)
		case yaml.ScalarNode:
			if value.ShortTag() != yamlStrTag {
				return nil, unsupported(path, value.ShortTag())
			}
			node.Set(name, keytree.Leaf(value.Value))
		case yaml.SequenceNode:
			return nil, unsupported(path, "sequence")
		default:
			return nil, unsupported(path, value.Tag)
		}
	}
	return node, nil
}

func (yamlCodec) Encode(tree *keytree.Tree) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNode(tree)); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func yamlNode(tree *keytree.Tree) *yaml.Node {
	if tree.IsLeaf() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: yamlStrTag, Value: tree.Value()}
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range tree.Keys() {
		child, _ := tree.Child(key)
		out.Content = append(out.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: yamlStrTag, Value: key},
			yamlNode(child),
		)
	}
	return out
}
