// Package config loads the localesync YAML configuration and applies
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"localesync/backup"
	"localesync/locales"
	"localesync/repair"
)

const (
	// DefaultFile is read when LOCALESYNC_CONFIG is not set.
	DefaultFile        = "localesync.yaml"
	defaultConcurrency = 8
)

var (
	// ErrNotFound is returned when the config file does not exist.
	ErrNotFound = errors.New("config file not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid config")
)

// LocaleFile declares one locale explicitly.
type LocaleFile struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// RuleSpec is a rename rule as written in the config file.
type RuleSpec struct {
	Scope string `yaml:"scope,omitempty"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

// RuleSet is the versioned rename rule table. Bump Version whenever the
// rules change so reports can tell which table a run applied.
type RuleSet struct {
	Version int        `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

// Reports lists where report artefacts are written.
type Reports struct {
	JSON     string `yaml:"json,omitempty"`
	Markdown string `yaml:"markdown,omitempty"`
}

// Usage configures the source scan for translation calls.
type Usage struct {
	Pattern string `yaml:"pattern,omitempty"`
	Call    string `yaml:"call,omitempty"`
}

// Config is the full run configuration.
type Config struct {
	Reference   string       `yaml:"reference"`
	Locales     []LocaleFile `yaml:"locales,omitempty"`
	Pattern     string       `yaml:"pattern,omitempty"`
	Schema      string       `yaml:"schema,omitempty"`
	BackupDir   string       `yaml:"backup_dir,omitempty"`
	Concurrency int          `yaml:"concurrency,omitempty"`
	Reports     Reports      `yaml:"reports,omitempty"`
	RenameRules RuleSet      `yaml:"rename_rules,omitempty"`
	Usage       Usage        `yaml:"usage,omitempty"`

	// File is the path the config was read from.
	File string `yaml:"-"`
}

// getEnv returns environment variable or default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Path returns the config file path from LOCALESYNC_CONFIG or the default.
func Path() string {
	return getEnv("LOCALESYNC_CONFIG", DefaultFile)
}

// Load reads the config file at path, applies environment overrides and
// validates the result. Relative paths inside the file are resolved
// against the file's directory.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.File = path
	cfg.resolve(filepath.Dir(path))
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Locales {
		c.Locales[i].Path = join(c.Locales[i].Path)
	}
	c.Pattern = join(c.Pattern)
	c.Schema = join(c.Schema)
	c.BackupDir = join(c.BackupDir)
	c.Reports.JSON = join(c.Reports.JSON)
	c.Reports.Markdown = join(c.Reports.Markdown)
	c.Usage.Pattern = join(c.Usage.Pattern)
}

func (c *Config) applyEnv() {
	c.Reference = getEnv("LOCALESYNC_REFERENCE", c.Reference)
	c.BackupDir = getEnv("LOCALESYNC_BACKUP_DIR", c.BackupDir)
	c.Reports.JSON = getEnv("LOCALESYNC_REPORT_JSON", c.Reports.JSON)
	c.Reports.Markdown = getEnv("LOCALESYNC_REPORT_MD", c.Reports.Markdown)
	c.Concurrency = getEnvInt("LOCALESYNC_CONCURRENCY", c.Concurrency)

	if c.BackupDir == "" {
		c.BackupDir = backup.DefaultDir
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Reference == "" {
		errs = multierror.Append(errs, errors.New("reference locale is required"))
	} else if err := locales.ValidateLocaleID(c.Reference); err != nil {
		errs = multierror.Append(errs, err)
	}

	switch {
	case len(c.Locales) == 0 && c.Pattern == "":
		errs = multierror.Append(errs, errors.New("either locales or pattern must be set"))
	case len(c.Locales) > 0 && c.Pattern != "":
		errs = multierror.Append(errs, errors.New("locales and pattern are mutually exclusive"))
	}

	ids := map[string]bool{}
	paths := map[string]bool{}
	for _, l := range c.Locales {
		if err := locales.ValidateLocaleID(l.ID); err != nil {
			errs = multierror.Append(errs, err)
		}
		if l.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("locale %q has no path", l.ID))
		} else if _, err := locales.CodecFor(l.Path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("locale %q: %w", l.ID, err))
		}
		if ids[l.ID] {
			errs = multierror.Append(errs, fmt.Errorf("locale %q declared twice", l.ID))
		}
		if paths[l.Path] {
			errs = multierror.Append(errs, fmt.Errorf("file %s declared twice", l.Path))
		}
		ids[l.ID] = true
		paths[l.Path] = true
	}
	if len(c.Locales) > 0 && c.Reference != "" && !ids[c.Reference] {
		errs = multierror.Append(errs, fmt.Errorf("reference locale %q is not declared", c.Reference))
	}

	if len(c.RenameRules.Rules) > 0 && c.RenameRules.Version < 1 {
		errs = multierror.Append(errs, errors.New("rename_rules.version must be at least 1"))
	}
	rules := make([]repair.Rule, 0, len(c.RenameRules.Rules))
	for i, rs := range c.RenameRules.Rules {
		rule, err := repair.NewRule(rs.Scope, rs.From, rs.To)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rename rule %d: %w", i+1, err))
			continue
		}
		rules = append(rules, rule)
	}
	if len(rules) == len(c.RenameRules.Rules) {
		if err := repair.ValidateTable(rules); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if c.Usage.Pattern != "" && c.Usage.Call == "" {
		c.Usage.Call = "t"
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Rules converts the rename table into repair rules.
func (c *Config) Rules() ([]repair.Rule, error) {
	rules := make([]repair.Rule, 0, len(c.RenameRules.Rules))
	for i, rs := range c.RenameRules.Rules {
		rule, err := repair.NewRule(rs.Scope, rs.From, rs.To)
		if err != nil {
			return nil, fmt.Errorf("rename rule %d: %w", i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Sources returns the declared locales, discovering them from Pattern when
// no explicit list is given.
func (c *Config) Sources(fs afero.Fs, logger *zap.Logger) ([]locales.Source, error) {
	if len(c.Locales) == 0 {
		return locales.Discover(fs, c.Pattern, logger)
	}
	out := make([]locales.Source, 0, len(c.Locales))
	for _, l := range c.Locales {
		out = append(out, locales.Source{Locale: l.ID, Path: l.Path})
	}
	return out, nil
}
