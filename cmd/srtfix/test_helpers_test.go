package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"srtfix/internal/config"
	"srtfix/internal/testsupport"
)

// cliEnv is a config file plus the temp tree it points at.
type cliEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLIEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliEnv {
	t.Helper()
	t.Setenv(config.MappingEnv, "")
	t.Setenv(config.TokenEnv, "")
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Logging.Level = "error"
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeSubtitle writes a one-cue UTF-8 subtitle whose dialogue is line.
func writeSubtitle(t *testing.T, path, line string) {
	t.Helper()
	testsupport.WriteFile(t, path, []byte("1\n00:00:01,000 --> 00:00:02,000\n"+line+"\n"))
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
