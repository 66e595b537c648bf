package repair

import (
	"localesync/keytree"
)

// BackfillResult lists what Backfill did to one locale.
type BackfillResult struct {
	// Synthesized paths now hold a copy of the reference value.
	Synthesized []keytree.Path
	// Blocked paths could not be filled because of a structural conflict.
	Blocked []keytree.Path
}

// Backfill copies the reference value of every missing path into tree.
// Existing values are never overwritten.
func Backfill(tree *keytree.Tree, missing []keytree.Path, ref *keytree.Tree) BackfillResult {
	var res BackfillResult
	for _, path := range missing {
		value, ok := ref.Lookup(path)
		if !ok {
			continue
		}
		if err := tree.Insert(path, value.Clone()); err != nil {
			res.Blocked = append(res.Blocked, path)
			continue
		}
		res.Synthesized = append(res.Synthesized, path)
	}
	return res
}
