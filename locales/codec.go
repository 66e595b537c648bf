// Package locales loads and serializes per-locale translation files.
package locales

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"localesync/keytree"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a codec.
	ErrUnsupportedFormat = errors.New("unsupported locale file format")
	// ErrUnsupportedValue is returned when a value is neither a string nor a mapping.
	ErrUnsupportedValue = errors.New("unsupported locale value")
	// ErrMalformed is returned when a locale file cannot be parsed.
	ErrMalformed = errors.New("malformed locale file")
)

// Codec converts between a file encoding and a key tree.
type Codec interface {
	Name() string
	Decode(data []byte) (*keytree.Tree, error)
	Encode(tree *keytree.Tree) ([]byte, error)
}

// styled is implemented by codecs that can mirror the formatting of the
// file they decoded.
type styled interface {
	styledFor(data []byte) Codec
}

var codecs = map[string]Codec{
	".json": jsonCodec{},
	".yaml": yamlCodec{},
	".yml":  yamlCodec{},
	".toml": tomlCodec{},
}

// CodecFor picks the codec matching the file extension of path.
func CodecFor(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	codec, ok := codecs[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return codec, nil
}

// SupportedExtensions lists the file extensions CodecFor accepts.
func SupportedExtensions() []string {
	return []string{".json", ".yaml", ".yml", ".toml"}
}

func unsupported(path keytree.Path, kind string) error {
	return fmt.Errorf("%w at %q: %s", ErrUnsupportedValue, path.String(), kind)
}
