package locales

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"localesync/keytree"
)

const defaultConcurrency = 8

// Source names the file holding one locale's data.
type Source struct {
	Locale string
	Path   string
}

// Locale is a successfully loaded locale file.
type Locale struct {
	Source
	Codec Codec
	Tree  *keytree.Tree
	// Raw is the file content as read, kept for backup and change detection.
	Raw []byte
}

// Result holds the outcome of loading a set of sources. Every requested
// locale appears either in Locales or in Failures, never both.
type Result struct {
	Locales  map[string]*Locale
	Failures map[string]error
	// Order lists requested locale ids in input order.
	Order []string
}

// Loaded returns the successfully loaded locales in input order.
func (r *Result) Loaded() []*Locale {
	out := make([]*Locale, 0, len(r.Locales))
	for _, id := range r.Order {
		if loc, ok := r.Locales[id]; ok {
			out = append(out, loc)
		}
	}
	return out
}

// Loader reads locale files through an afero filesystem.
type Loader struct {
	fs          afero.Fs
	logger      *zap.Logger
	concurrency int
}

// NewLoader creates a Loader. A nil logger disables logging.
func NewLoader(fs afero.Fs, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fs: fs, logger: logger, concurrency: defaultConcurrency}
}

// WithConcurrency bounds the number of files read at once. Values below 1
// make loading sequential.
func (l *Loader) WithConcurrency(n int) *Loader {
	if n < 1 {
		n = 1
	}
	l.concurrency = n
	return l
}

// Load reads and parses every source. A failure in one source is recorded
// against that locale only. Load returns once every source has finished.
func (l *Loader) Load(ctx context.Context, sources []Source) *Result {
	type outcome struct {
		locale *Locale
		err    error
	}
	outcomes := make([]outcome, len(sources))

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: err}
				return nil
			}
			loc, err := l.LoadOne(src)
			outcomes[i] = outcome{locale: loc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		Locales:  make(map[string]*Locale, len(sources)),
		Failures: map[string]error{},
		Order:    make([]string, 0, len(sources)),
	}
	for i, src := range sources {
		res.Order = append(res.Order, src.Locale)
		if outcomes[i].err != nil {
			l.logger.Warn("Failed to load locale",
				zap.String("locale", src.Locale),
				zap.String("file", src.Path),
				zap.Error(outcomes[i].err))
			res.Failures[src.Locale] = outcomes[i].err
			continue
		}
		l.logger.Debug("Loaded locale",
			zap.String("locale", src.Locale),
			zap.String("file", src.Path),
			zap.Int("keys", keytree.CountLeaves(outcomes[i].locale.Tree)))
		res.Locales[src.Locale] = outcomes[i].locale
	}
	return res
}

// LoadOne reads and parses a single source.
func (l *Loader) LoadOne(src Source) (*Locale, error) {
	codec, err := CodecFor(src.Path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(l.fs, src.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Path, err)
	}
	tree, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Path, err)
	}
	if st, ok := codec.(styled); ok {
		codec = st.styledFor(data)
	}
	return &Locale{Source: src, Codec: codec, Tree: tree, Raw: data}, nil
}
