// Package catalog serves repaired locale trees to the rendering layer
// through a go-i18n bundle.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/nicksnyder/go-i18n/v2/i18n/template"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"localesync/keytree"
)

// ErrFallback is returned by Resolve when a key was served by a locale other
// than the one requested.
var ErrFallback = errors.New("served by fallback locale")

// Catalog is a read-only view of all locales, keyed by dotted key path.
type Catalog struct {
	bundle      *i18n.Bundle
	reference   language.Tag
	referenceID string
	tags        map[string]language.Tag
	// empty holds authored empty leaves per locale; go-i18n drops
	// messages without text.
	empty  map[string]map[string]bool
	logger *zap.Logger
}

// Messages are plain text: "{{count}}" placeholders belong to the
// rendering layer and must not be executed as Go templates.
var plainText template.Parser = template.IdentityParser{}

// New builds a Catalog with reference as the fallback locale. Every leaf of
// every tree becomes one message identified by its dotted path.
func New(reference string, trees map[string]*keytree.Tree, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	refTag, err := language.Parse(reference)
	if err != nil {
		return nil, fmt.Errorf("parse reference locale %q: %w", reference, err)
	}

	c := &Catalog{
		bundle:      i18n.NewBundle(refTag),
		reference:   refTag,
		referenceID: reference,
		tags:        make(map[string]language.Tag, len(trees)),
		empty:       make(map[string]map[string]bool, len(trees)),
		logger:      logger,
	}

	ids := make([]string, 0, len(trees))
	for id := range trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tag, err := language.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", id, err)
		}
		c.tags[id] = tag
		msgs, empty := messages(trees[id])
		c.empty[id] = empty
		if err := c.bundle.AddMessages(tag, msgs...); err != nil {
			return nil, fmt.Errorf("add messages for %q: %w", id, err)
		}
	}
	return c, nil
}

func messages(tree *keytree.Tree) ([]*i18n.Message, map[string]bool) {
	var out []*i18n.Message
	empty := map[string]bool{}
	tree.Walk(func(path keytree.Path, value *keytree.Tree) bool {
		switch {
		case !value.IsLeaf():
		case value.Value() == "":
			empty[path.String()] = true
		default:
			out = append(out, &i18n.Message{ID: path.String(), Other: value.Value()})
		}
		return true
	})
	return out, empty
}

// Locales returns the locale ids known to the catalog.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.tags))
	for id := range c.tags {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Resolve renders key for locale without silent fallback: if the message
// only exists in the reference locale, the reference text is returned along
// with ErrFallback.
func (c *Catalog) Resolve(locale, key string) (string, error) {
	tag, ok := c.tags[locale]
	if !ok {
		return "", fmt.Errorf("unknown locale %q", locale)
	}
	if c.empty[locale][key] {
		return "", nil
	}
	localizer := i18n.NewLocalizer(c.bundle, tag.String())
	msg, usedTag, err := localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: key, TemplateParser: plainText})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			return "", err
		}
		switch {
		case msg != "" && usedTag != tag:
			return msg, fmt.Errorf("%w: %s", ErrFallback, usedTag)
		case c.empty[c.referenceID][key]:
			return "", fmt.Errorf("%w: %s", ErrFallback, c.reference)
		}
		return "", err
	}
	if usedTag != tag {
		return msg, fmt.Errorf("%w: %s", ErrFallback, usedTag)
	}
	return msg, nil
}

// T renders key for locale, falling back to the reference locale and
// finally to the key itself.
func (c *Catalog) T(locale, key string) string {
	if key == "" {
		return ""
	}
	if c.empty[locale][key] {
		return ""
	}
	languages := []string{}
	if tag, ok := c.tags[locale]; ok {
		languages = append(languages, tag.String())
	}
	languages = append(languages, c.reference.String())

	localizer := i18n.NewLocalizer(c.bundle, languages...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateParser: plainText})
	if msg != "" {
		return msg
	}
	if c.empty[c.referenceID][key] {
		return ""
	}
	c.logger.Debug("Localize failed",
		zap.String("key", key),
		zap.Strings("locales", languages),
		zap.Error(err))
	return key
}
