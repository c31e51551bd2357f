package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRepair()
	c.normalizeServer()
	c.normalizeWatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(MappingEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.MappingFile = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	fields := []struct {
		key   string
		value *string
	}{
		{"paths.mapping_file", &c.Paths.MappingFile},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.inbox_dir", &c.Paths.InboxDir},
		{"paths.outbox_dir", &c.Paths.OutboxDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeRepair() {
	c.Repair.OutputSuffix = strings.TrimSpace(c.Repair.OutputSuffix)
	c.Repair.ArchiveName = strings.TrimSpace(c.Repair.ArchiveName)
	if c.Repair.ArchiveName == "" {
		c.Repair.ArchiveName = defaultArchiveName
	}
	if c.Repair.Workers == 0 {
		c.Repair.Workers = defaultWorkers
	}

	exts := make([]string, 0, len(c.Repair.Extensions))
	seen := make(map[string]struct{}, len(c.Repair.Extensions))
	for _, ext := range c.Repair.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Repair.Extensions = exts
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv(TokenEnv); ok && strings.TrimSpace(value) != "" {
		c.Server.Token = value
	}
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeWatch() {
	if c.Watch.SettleMS == 0 {
		c.Watch.SettleMS = defaultWatchSettleMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
