package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"localesync/backup"
	"localesync/config"
	"localesync/locales"
	"localesync/pipeline"
	"localesync/redis"
	"localesync/report"
	"localesync/s3"
	"localesync/schema"
	"localesync/utils"
)

const defaultFailOn = "missing,conflict,drift,failed"

func newFixCommand(env Env, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Repair locale files and write them back",
		Long: `fix migrates renamed keys, backfills missing keys with the reference
text and writes every changed locale file after backing up its original.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := execute(cmd, env, opts, false)
			if err != nil {
				return err
			}
			if rep.Err() != nil {
				return fmt.Errorf("%w: %v", ErrFilesFailed, rep.Err())
			}
			return nil
		},
	}
}

func newCheckCommand(env Env, opts *globalOptions) *cobra.Command {
	var failOn string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report drift without writing and fail on selected findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := report.ParseCategories(failOn)
			if err != nil {
				return err
			}
			rep, err := execute(cmd, env, opts, true)
			if err != nil {
				return err
			}
			violations := rep.Violations(cats)
			for _, v := range violations {
				fmt.Fprintln(cmd.ErrOrStderr(), v)
			}
			if len(violations) > 0 {
				return fmt.Errorf("%w: %d findings", ErrCheckFailed, len(violations))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", defaultFailOn,
		"comma separated categories that fail the check: missing, extra, conflict, drift, schema, usage, failed")
	return cmd
}

func newStatusCommand(env Env, opts *globalOptions) *cobra.Command {
	var published bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the localization status without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !published {
				_, err := execute(cmd, env, opts, true)
				return err
			}
			pub, err := publisher(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer pub.Close()
			data, err := pub.Latest(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "print the latest report published to Redis")
	return cmd
}

// execute loads the configuration, runs the pipeline and emits the report.
func execute(cmd *cobra.Command, env Env, opts *globalOptions, dryRun bool) (*report.Report, error) {
	ctx := cmd.Context()
	logger := env.Logger
	if opts.verbose {
		utils.SetLevel(zapcore.DebugLevel)
	}

	cfg, err := loadConfig(env.Fs, opts)
	if err != nil {
		return nil, err
	}
	sources, err := cfg.Sources(env.Fs, logger)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}

	runOpts := pipeline.Options{
		Reference: cfg.Reference,
		Sources:   sources,
		Rules:     rules,
		DryRun:    dryRun,
	}
	if cfg.Schema != "" {
		shape, err := schema.LoadFile(env.Fs, cfg.Schema)
		if err != nil {
			return nil, err
		}
		runOpts.Shape = &shape
	}
	if cfg.Usage.Pattern != "" {
		runOpts.Usage = &pipeline.UsageOptions{Pattern: cfg.Usage.Pattern, Call: cfg.Usage.Call}
	}

	store, err := backupStore(env, cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("Starting run",
		zap.String("config", cfg.File),
		zap.String("reference", cfg.Reference),
		zap.Int("locales", len(sources)),
		zap.Int("rename_rules", len(rules)),
		zap.Int("rules_version", cfg.RenameRules.Version),
		zap.Bool("dry_run", dryRun))

	rep, err := pipeline.New(env.Fs, store, logger).WithConcurrency(cfg.Concurrency).Run(ctx, runOpts)
	if err != nil {
		return nil, err
	}

	colored := !opts.noColor && !color.NoColor
	if err := report.RenderText(cmd.OutOrStdout(), rep, colored); err != nil {
		return nil, err
	}
	if cfg.Reports.JSON != "" {
		if err := report.WriteJSON(env.Fs, cfg.Reports.JSON, rep); err != nil {
			return nil, err
		}
	}
	if cfg.Reports.Markdown != "" {
		if err := report.WriteMarkdown(env.Fs, cfg.Reports.Markdown, rep); err != nil {
			return nil, err
		}
	}
	if opts.publish {
		publishReport(ctx, env, rep)
	}
	return rep, nil
}

func loadConfig(fs afero.Fs, opts *globalOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(fs, path)
	if err != nil {
		return nil, err
	}
	if opts.reference != "" {
		if err := locales.ValidateLocaleID(opts.reference); err != nil {
			return nil, err
		}
		cfg.Reference = opts.reference
	}
	if opts.backupDir != "" {
		cfg.BackupDir = opts.backupDir
	}
	if opts.reportJSON != "" {
		cfg.Reports.JSON = opts.reportJSON
	}
	if opts.reportMD != "" {
		cfg.Reports.Markdown = opts.reportMD
	}
	return cfg, nil
}

// backupStore prefers an S3 bucket when S3_BUCKET is set.
func backupStore(env Env, cfg *config.Config) (backup.Store, error) {
	if env.Store != nil {
		return env.Store, nil
	}
	s3Config := s3.NewS3ConfigFromEnv()
	if s3Config.Enabled() {
		return s3.NewBackupStore(s3Config, env.Logger)
	}
	return backup.NewFSStore(env.Fs, cfg.BackupDir), nil
}

func publisher(ctx context.Context, env Env) (Publisher, error) {
	if env.Publisher != nil {
		return env.Publisher, nil
	}
	return redis.NewReportPublisher(ctx, redis.NewRedisConfigFromEnv(), env.Logger)
}

// publishReport never fails the run: dashboards are best effort.
func publishReport(ctx context.Context, env Env, rep *report.Report) {
	payload, err := report.JSON(rep)
	if err != nil {
		env.Logger.Warn("Failed to encode report for publishing", zap.Error(err))
		return
	}
	pub, err := publisher(ctx, env)
	if err != nil {
		env.Logger.Warn("Report not published", zap.Error(err))
		return
	}
	defer pub.Close()
	if err := pub.Publish(ctx, rep.RunID, payload); err != nil {
		env.Logger.Warn("Report not published", zap.Error(err))
	}
}
