package schema

import (
	"fmt"

	"github.com/spf13/afero"

	"localesync/locales"
)

// LoadFile reads a skeleton file in any supported locale format and
// derives the shape from it. Leaf values are ignored.
func LoadFile(fs afero.Fs, path string) (Shape, error) {
	loc, err := locales.NewLoader(fs, nil).LoadOne(locales.Source{Locale: "schema", Path: path})
	if err != nil {
		return Shape{}, fmt.Errorf("load schema: %w", err)
	}
	return FromTree(loc.Tree), nil
}
