package repair

import (
	"fmt"

	"go.uber.org/zap"

	"localesync/keytree"
)

// Wildcard matches any single segment of a rule scope.
const Wildcard = "*"

// Rule renames From to To inside every node matched by Scope. From and To
// are relative to the scope node.
type Rule struct {
	Scope keytree.Path
	From  keytree.Path
	To    keytree.Path
}

// NewRule parses dotted scope/from/to strings into a Rule.
func NewRule(scope, from, to string) (Rule, error) {
	r := Rule{Scope: keytree.ParsePath(scope), From: keytree.ParsePath(from), To: keytree.ParsePath(to)}
	return r, r.Validate()
}

// Validate rejects rules that could never converge.
func (r Rule) Validate() error {
	switch {
	case len(r.From) == 0 || len(r.To) == 0:
		return fmt.Errorf("rename rule %s: from and to are required", r)
	case r.From.Equal(r.To):
		return fmt.Errorf("rename rule %s: from and to are identical", r)
	case r.From.HasPrefix(r.To) || r.To.HasPrefix(r.From):
		return fmt.Errorf("rename rule %s: from and to must not contain each other", r)
	}
	for _, seg := range append(r.From.Join(), r.To...) {
		if seg == Wildcard {
			return fmt.Errorf("rename rule %s: wildcards are only allowed in scope", r)
		}
	}
	return nil
}

// ValidateTable rejects rule tables that would keep moving keys on every
// run: no rule may write into a path that an earlier rule of the same
// scope moves away.
func ValidateTable(rules []Rule) error {
	for i, r := range rules {
		for j, prev := range rules[:i] {
			if !prev.Scope.Equal(r.Scope) {
				continue
			}
			if r.To.HasPrefix(prev.From) || prev.From.HasPrefix(r.To) {
				return fmt.Errorf("rename rule %d (%s) writes into %s, which rule %d moves away", i+1, r, prev.From, j+1)
			}
		}
	}
	return nil
}

func (r Rule) String() string {
	from, to := r.From.String(), r.To.String()
	if len(r.Scope) > 0 {
		from = r.Scope.String() + "." + from
		to = r.Scope.String() + "." + to
	}
	return from + " -> " + to
}

// Outcome describes what a rule did at one location.
type Outcome string

const (
	// OutcomeMoved means the old key was moved to the new name.
	OutcomeMoved Outcome = "moved"
	// OutcomeConflict means both names existed; the new value was kept and
	// the old one dropped.
	OutcomeConflict Outcome = "conflict"
	// OutcomeBlocked means the new name could not be created because a leaf
	// sits on its path; the old key is left untouched.
	OutcomeBlocked Outcome = "blocked"
)

// RenameResult is one application of a rule to a concrete location.
type RenameResult struct {
	Rule    Rule
	From    keytree.Path
	To      keytree.Path
	Outcome Outcome
}

// Renamer applies an explicit rule table to locale trees.
type Renamer struct {
	rules  []Rule
	logger *zap.Logger
}

// NewRenamer creates a Renamer. Rules are applied in the given order.
func NewRenamer(rules []Rule, logger *zap.Logger) *Renamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renamer{rules: rules, logger: logger}
}

// Rules returns the rule table.
func (r *Renamer) Rules() []Rule {
	return r.rules
}

// Apply runs every rule against tree in place. Applying the same rules a
// second time changes nothing.
func (r *Renamer) Apply(locale string, tree *keytree.Tree) []RenameResult {
	var out []RenameResult
	for _, rule := range r.rules {
		for _, base := range matchScope(tree, rule.Scope) {
			res, ok := applyAt(tree, rule, base)
			if !ok {
				continue
			}
			out = append(out, res)
			fields := []zap.Field{
				zap.String("locale", locale),
				zap.String("from", res.From.String()),
				zap.String("to", res.To.String()),
			}
			switch res.Outcome {
			case OutcomeMoved:
				r.logger.Debug("Renamed key", fields...)
			case OutcomeConflict:
				r.logger.Warn("Rename conflict: both keys present, keeping new key", fields...)
			case OutcomeBlocked:
				r.logger.Warn("Rename blocked by existing leaf", fields...)
			}
		}
	}
	return out
}

func applyAt(tree *keytree.Tree, rule Rule, base keytree.Path) (RenameResult, bool) {
	oldPath := base.Join(rule.From...)
	newPath := base.Join(rule.To...)
	res := RenameResult{Rule: rule, From: oldPath, To: newPath}

	value, ok := tree.Lookup(oldPath)
	if !ok {
		return res, false
	}
	if _, exists := tree.Lookup(newPath); exists {
		tree.Remove(oldPath)
		res.Outcome = OutcomeConflict
		return res, true
	}
	if err := tree.CanInsert(newPath); err != nil {
		res.Outcome = OutcomeBlocked
		return res, true
	}

	res.Outcome = OutcomeMoved
	if oldPath.Parent().Equal(newPath.Parent()) {
		parent, _ := tree.Lookup(oldPath.Parent())
		parent.RenameKey(oldPath.Last(), newPath.Last())
		return res, true
	}
	_ = tree.Insert(newPath, value)
	tree.Remove(oldPath)
	return res, true
}

// matchScope returns every node path matching scope. Wildcard segments
// match any child node.
func matchScope(tree *keytree.Tree, scope keytree.Path) []keytree.Path {
	if len(scope) == 0 {
		return []keytree.Path{nil}
	}
	seg, rest := scope[0], scope[1:]
	var keys []string
	if seg == Wildcard {
		keys = tree.Keys()
	} else {
		keys = []string{seg}
	}

	var out []keytree.Path
	for _, key := range keys {
		child, ok := tree.Child(key)
		if !ok || child.IsLeaf() {
			continue
		}
		for _, sub := range matchScope(child, rest) {
			out = append(out, keytree.Path{key}.Join(sub...))
		}
	}
	return out
}

// RenamedPaths lists the target paths that received a value from a rule.
func RenamedPaths(results []RenameResult) []keytree.Path {
	var out []keytree.Path
	for _, res := range results {
		if res.Outcome == OutcomeMoved {
			out = append(out, res.To)
		}
	}
	return out
}
