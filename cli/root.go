// Package cli wires configuration, storage and the pipeline into the
// localesync command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"localesync/backup"
)

var (
	// ErrCheckFailed is returned by check when a selected category has findings.
	ErrCheckFailed = errors.New("localization check failed")
	// ErrFilesFailed is returned by fix when some locale could not be repaired.
	ErrFilesFailed = errors.New("some locale files failed")
)

// Publisher receives the JSON report of a run. redis.ReportPublisher
// implements it.
type Publisher interface {
	Publish(ctx context.Context, runID string, payload []byte) error
	Latest(ctx context.Context) ([]byte, error)
	Close() error
}

// Env carries the process dependencies. Zero fields fall back to the OS
// filesystem, a no-op logger, a store chosen from the environment and a
// Redis publisher.
type Env struct {
	Fs        afero.Fs
	Logger    *zap.Logger
	Store     backup.Store
	Publisher Publisher
}

type globalOptions struct {
	configPath string
	reference  string
	backupDir  string
	reportJSON string
	reportMD   string
	noColor    bool
	verbose    bool
	publish    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand(env Env) *cobra.Command {
	if env.Fs == nil {
		env.Fs = afero.NewOsFs()
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "localesync",
		Short: "Keep locale files in sync with the reference locale",
		Long: `localesync compares every locale file with the reference locale,
migrates renamed keys, fills missing keys with the reference text and checks
the result against the declared translation schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default $LOCALESYNC_CONFIG or localesync.yaml)")
	flags.StringVar(&opts.reference, "reference", "", "reference locale, overrides the config file")
	flags.StringVar(&opts.backupDir, "backup-dir", "", "directory for backups of modified files")
	flags.StringVar(&opts.reportJSON, "report-json", "", "write the JSON report to this path")
	flags.StringVar(&opts.reportMD, "report-md", "", "write the Markdown report to this path")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every repair step")
	flags.BoolVar(&opts.publish, "publish", false, "publish the JSON report to Redis")

	root.AddCommand(
		newFixCommand(env, opts),
		newCheckCommand(env, opts),
		newStatusCommand(env, opts),
	)
	return root
}

// Execute runs the command line with args.
func Execute(ctx context.Context, env Env, args []string) error {
	root := NewRootCommand(env)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
