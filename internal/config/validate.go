package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRepair(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRepair() error {
	if c.Repair.MinConfidence < 0 || c.Repair.MinConfidence > 100 {
		return errors.New("repair.min_confidence must be between 0 and 100")
	}
	if c.Repair.Workers < 1 || c.Repair.Workers > 64 {
		return errors.New("repair.workers must be between 1 and 64")
	}
	if strings.ContainsAny(c.Repair.OutputSuffix, `/\`) {
		return fmt.Errorf("repair.output_suffix %q must not contain path separators", c.Repair.OutputSuffix)
	}
	if filepath.Base(c.Repair.ArchiveName) != c.Repair.ArchiveName {
		return fmt.Errorf("repair.archive_name %q must be a file name, not a path", c.Repair.ArchiveName)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadMB < 1 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.SettleMS < 0 {
		return errors.New("watch.settle_ms must not be negative")
	}
	if c.Paths.InboxDir != "" && c.Paths.InboxDir == c.Paths.OutboxDir {
		return errors.New("paths.inbox_dir and paths.outbox_dir must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
