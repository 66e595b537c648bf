package locales

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"localesync/keytree"
)

const defaultJSONIndent = "  "

// jsonCodec keeps document key order in both directions. The zero value
// writes two-space indentation with raw UTF-8; styledFor matches an
// existing file instead.
type jsonCodec struct {
	indent  string
	compact bool
	ascii   bool
	noEOL   bool
}

func (jsonCodec) Name() string { return "json" }

// styledFor returns a codec that writes data's indentation and keeps
// non-ASCII text \u-escaped when data does.
func (jsonCodec) styledFor(data []byte) Codec {
	c := jsonCodec{indent: defaultJSONIndent}
	body := bytes.TrimSpace(data)
	if len(body) == 0 {
		return c
	}
	c.noEOL = !bytes.HasSuffix(data, []byte("\n"))
	if !bytes.ContainsRune(body, '\n') {
		c.compact = true
	}
	for _, line := range bytes.Split(body, []byte("\n"))[1:] {
		trimmed := bytes.TrimLeft(line, " \t")
		if len(trimmed) == len(line) || len(trimmed) == 0 {
			continue
		}
		c.indent = string(line[:len(line)-len(trimmed)])
		break
	}
	c.ascii = bytes.Contains(body, []byte(`\u`)) && isASCII(body)
	return c
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (jsonCodec) Decode(data []byte) (*keytree.Tree, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return keytree.NewNode(), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top-level JSON value must be an object", ErrMalformed)
	}
	return jsonObject(root, nil)
}

func jsonObject(obj gjson.Result, prefix keytree.Path) (*keytree.Tree, error) {
	node := keytree.NewNode()
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		path := prefix.Join(name)
		switch {
		case value.IsObject():
			child, childErr := jsonObject(value, path)
			if childErr != nil {
				err = childErr
				return false
			}
			node.Set(name, child)
		case value.Type == gjson.String:
			node.Set(name, keytree.Leaf(value.String()))
		case value.IsArray():
			err = unsupported(path, "array")
			return false
		default:
			err = unsupported(path, value.Type.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (c jsonCodec) Encode(tree *keytree.Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.write(&buf, tree); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if !c.compact {
		indent := c.indent
		if indent == "" {
			indent = defaultJSONIndent
		}
		out = bytes.TrimRight(pretty.PrettyOptions(out, &pretty.Options{Width: 80, Indent: indent}), "\n")
	}
	if !c.noEOL {
		out = append(out, '\n')
	}
	return out, nil
}

func (c jsonCodec) write(buf *bytes.Buffer, tree *keytree.Tree) error {
	if tree.IsLeaf() {
		return c.writeString(buf, tree.Value())
	}
	buf.WriteByte('{')
	for i, key := range tree.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := c.writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		child, _ := tree.Child(key)
		if err := c.write(buf, child); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString keeps <, > and & unescaped; translations are not HTML.
func (c jsonCodec) writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	out := bytes.TrimRight(tmp.Bytes(), "\n")
	if !c.ascii {
		buf.Write(out)
		return nil
	}
	for _, r := range string(out) {
		if r < utf8.RuneSelf {
			buf.WriteRune(r)
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			writeEscape(buf, r1)
			writeEscape(buf, r2)
			continue
		}
		writeEscape(buf, r)
	}
	return nil
}

func writeEscape(buf *bytes.Buffer, r rune) {
	hex := strconv.FormatInt(int64(r), 16)
	buf.WriteString(`\u`)
	for i := len(hex); i < 4; i++ {
		buf.WriteByte('0')
	}
	buf.WriteString(hex)
}
