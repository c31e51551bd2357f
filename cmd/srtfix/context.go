package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"srtfix/internal/config"
	"srtfix/internal/history"
	"srtfix/internal/logging"
	"srtfix/internal/mapping"
	"srtfix/internal/repair"
)

type globalFlags struct {
	config    string
	mapping   string
	logLevel  string
	logFormat string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once, applies global flag overrides,
// and creates the state and log directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	if mappingFlag := strings.TrimSpace(c.flags.mapping); mappingFlag != "" {
		expanded, err := config.ExpandPath(mappingFlag)
		if err != nil {
			return fmt.Errorf("--mapping: %w", err)
		}
		cfg.Paths.MappingFile = expanded
	}
	if level := strings.TrimSpace(c.flags.logLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if format := strings.TrimSpace(c.flags.logFormat); format != "" {
		cfg.Logging.Format = strings.ToLower(format)
	}
	return nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// loadTable returns the configured mapping table, or the built-in table when
// no mapping file is configured.
func (c *commandContext) loadTable() (*mapping.Table, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paths.MappingFile == "" {
		return mapping.Default()
	}
	return mapping.Load(cfg.Paths.MappingFile)
}

func (c *commandContext) newEngine() (*repair.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	table, err := c.loadTable()
	if err != nil {
		return nil, err
	}
	return repair.New(table,
		repair.WithMinConfidence(cfg.Repair.MinConfidence),
		repair.WithNormalizeNewlines(cfg.Repair.NormalizeNewlines),
		repair.WithLogger(logger),
	), nil
}

// openHistory opens the journal. It returns nil without error when history
// is disabled in configuration.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func (c *commandContext) requireHistory() (*history.Store, error) {
	store, err := c.openHistory()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("history is disabled; set [history] enabled = true in %s", c.configPath)
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
