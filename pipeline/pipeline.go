// Package pipeline runs one repair pass over every locale: load, rename,
// diff, backfill, validate, back up and write, then report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"localesync/backup"
	"localesync/catalog"
	"localesync/keytree"
	"localesync/locales"
	"localesync/repair"
	"localesync/report"
	"localesync/schema"
	"localesync/usage"
)

// ErrReferenceUnavailable aborts a run: nothing can be repaired without
// the canonical key set.
var ErrReferenceUnavailable = errors.New("reference locale unavailable")

// UsageOptions enables the source scan.
type UsageOptions struct {
	Pattern string
	Call    string
}

// Options describe one run.
type Options struct {
	Reference string
	Sources   []locales.Source
	Rules     []repair.Rule
	// Shape enables schema validation when set.
	Shape  *schema.Shape
	Usage  *UsageOptions
	DryRun bool
	// RunID defaults to a random UUID.
	RunID string
}

// Pipeline holds the collaborators shared by runs.
type Pipeline struct {
	fs          afero.Fs
	store       backup.Store
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// New creates a Pipeline reading and writing locale files through fs and
// backing them up into store.
func New(fs afero.Fs, store backup.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fs:     fs,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithConcurrency bounds the number of files loaded in parallel.
func (p *Pipeline) WithConcurrency(n int) *Pipeline {
	p.concurrency = n
	return p
}

type localeState struct {
	loc *locales.Locale
	run *report.LocaleRun
}

// Run executes a full pass. Per-file failures are recorded in the report
// and never abort the run; only an unavailable reference locale or a
// cancelled context return an error.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Report, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With(zap.String("run_id", runID))

	if !hasSource(opts.Sources, opts.Reference) {
		return nil, fmt.Errorf("%w: %q is not among the configured locales", ErrReferenceUnavailable, opts.Reference)
	}

	loader := locales.NewLoader(p.fs, logger)
	if p.concurrency > 0 {
		loader = loader.WithConcurrency(p.concurrency)
	}
	res := loader.Load(ctx, opts.Sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, ok := res.Locales[opts.Reference]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrReferenceUnavailable, res.Failures[opts.Reference])
	}

	var errs *multierror.Error
	renamer := repair.NewRenamer(opts.Rules, logger)

	// The reference is migrated first so the canonical set uses new names.
	refRun := &report.LocaleRun{
		Locale:    ref.Locale,
		File:      ref.Path,
		Reference: true,
		Renames:   renamer.Apply(ref.Locale, ref.Tree),
	}
	canonical := repair.Canonical(ref.Tree)
	refRun.After.Locale = ref.Locale
	refRun.After.Renamed = repair.RenamedPaths(refRun.Renames)

	states := []localeState{{loc: ref, run: refRun}}
	for _, id := range res.Order {
		if id == opts.Reference {
			continue
		}
		if err, failed := res.Failures[id]; failed {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", id, err))
			states = append(states, localeState{run: &report.LocaleRun{
				Locale:  id,
				File:    sourcePath(opts.Sources, id),
				LoadErr: err,
			}})
			continue
		}
		loc := res.Locales[id]
		states = append(states, localeState{loc: loc, run: repairLocale(loc, ref.Tree, canonical, renamer, logger)})
	}

	var findings *schema.Findings
	if opts.Shape != nil {
		f, err := p.validate(*opts.Shape, opts.Reference, states, logger)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		findings = &f
	}

	var usageStatus *report.UsageStatus
	if opts.Usage != nil && opts.Usage.Pattern != "" {
		u, err := p.scanUsage(*opts.Usage, ref.Tree, logger)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		usageStatus = u
	}

	if !opts.DryRun {
		if err := p.writeBack(ctx, runID, states, logger); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	runs := make([]report.LocaleRun, 0, len(states))
	for _, st := range states {
		runs = append(runs, *st.run)
	}
	rep := report.Build(report.Input{
		RunID:         runID,
		Reference:     opts.Reference,
		DryRun:        opts.DryRun,
		GeneratedAt:   p.now(),
		CanonicalKeys: len(canonical),
		Locales:       runs,
		Findings:      findings,
		Usage:         usageStatus,
		Errors:        errs.ErrorOrNil(),
	})

	totals := rep.Totals()
	logger.Info("Run finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("locales", totals.Locales),
		zap.Int("failed", totals.Failed),
		zap.Int("renamed", totals.Renamed),
		zap.Int("backfilled", totals.Backfilled),
		zap.Int("written", totals.Written))
	return rep, nil
}

// repairLocale migrates renamed keys, then backfills what is still missing.
func repairLocale(loc *locales.Locale, ref *keytree.Tree, canonical []keytree.Path, renamer *repair.Renamer, logger *zap.Logger) *report.LocaleRun {
	run := &report.LocaleRun{Locale: loc.Locale, File: loc.Path}
	run.Before = repair.Compare(loc.Locale, canonical, ref, loc.Tree)
	run.Renames = renamer.Apply(loc.Locale, loc.Tree)

	afterRename := repair.Compare(loc.Locale, canonical, ref, loc.Tree)
	run.Backfill = repair.Backfill(loc.Tree, afterRename.Missing, ref)

	run.After = repair.Compare(loc.Locale, canonical, ref, loc.Tree)
	run.After.Renamed = repair.RenamedPaths(run.Renames)

	for _, p := range run.Backfill.Blocked {
		logger.Warn("Backfill blocked by a leaf",
			zap.String("locale", loc.Locale),
			zap.String("path", p.String()))
	}
	logger.Debug("Locale repaired in memory",
		zap.String("locale", loc.Locale),
		zap.Int("missing_before", len(run.Before.Missing)),
		zap.Int("renamed", len(run.After.Renamed)),
		zap.Int("backfilled", len(run.Backfill.Synthesized)),
		zap.Int("extra", len(run.After.Extra)),
		zap.Int("conflicts", len(run.After.Conflicts)))
	return run
}

func (p *Pipeline) validate(shape schema.Shape, reference string, states []localeState, logger *zap.Logger) (schema.Findings, error) {
	var (
		loaded  []schema.Locale
		ids     []string
		trees   = map[string]*keytree.Tree{}
		refTree *keytree.Tree
	)
	for _, st := range states {
		if st.loc == nil {
			continue
		}
		loaded = append(loaded, schema.Locale{ID: st.loc.Locale, Tree: st.loc.Tree})
		ids = append(ids, st.loc.Locale)
		trees[st.loc.Locale] = st.loc.Tree
		if st.run.Reference {
			refTree = st.loc.Tree
		}
	}

	f := schema.Validate(shape, loaded, refTree)
	cat, err := catalog.New(reference, trees, logger)
	if err != nil {
		return f, fmt.Errorf("catalog: %w", err)
	}
	schema.CheckLookups(&f, shape, cat, ids)

	if !f.Clean() {
		logger.Warn("Schema and locale data disagree",
			zap.Int("drift", len(f.Drift)),
			zap.Int("mismatches", len(f.Mismatches)),
			zap.Int("undeclared", len(f.Undeclared)))
	}
	return f, nil
}

func (p *Pipeline) scanUsage(opts UsageOptions, ref *keytree.Tree, logger *zap.Logger) (*report.UsageStatus, error) {
	call := opts.Call
	if call == "" {
		call = "t"
	}
	scanner, err := usage.NewScanner(p.fs, call, logger)
	if err != nil {
		return nil, err
	}
	res, err := scanner.Scan(opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("usage: %w", err)
	}
	undefined, unused := usage.Compare(res, ref)
	return &report.UsageStatus{Files: res.Files, Undefined: undefined, Unused: unused}, nil
}

// writeBack serializes every mutated locale. A failing file is recorded on
// its run and does not stop the others.
func (p *Pipeline) writeBack(ctx context.Context, runID string, states []localeState, logger *zap.Logger) error {
	manager := backup.NewManager(p.fs, p.store, runID, logger)
	var errs *multierror.Error
	for _, st := range states {
		if st.loc == nil || !mutated(st.run) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := st.loc.Codec.Encode(st.loc.Tree)
		if err != nil {
			st.run.WriteErr = fmt.Errorf("encode %s: %w", st.loc.Path, err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", st.loc.Locale, st.run.WriteErr))
			continue
		}
		written, err := manager.Write(ctx, st.loc.Path, data)
		if rec, ok := manager.Record(st.loc.Path); ok {
			st.run.Backup = rec.Name
		}
		if err != nil {
			st.run.WriteErr = err
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", st.loc.Locale, err))
			continue
		}
		st.run.Written = written
	}
	return errs.ErrorOrNil()
}

func mutated(run *report.LocaleRun) bool {
	if len(run.Backfill.Synthesized) > 0 {
		return true
	}
	for _, r := range run.Renames {
		if r.Outcome != repair.OutcomeBlocked {
			return true
		}
	}
	return false
}

func hasSource(sources []locales.Source, id string) bool {
	for _, s := range sources {
		if s.Locale == id {
			return true
		}
	}
	return false
}

func sourcePath(sources []locales.Source, id string) string {
	for _, s := range sources {
		if s.Locale == id {
			return s.Path
		}
	}
	return ""
}
