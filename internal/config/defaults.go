package config

const (
	defaultConfigPath        = "~/.config/srtfix/config.toml"
	defaultStateDir          = "~/.local/share/srtfix"
	defaultMinConfidence     = 30
	defaultOutputSuffix      = "_tr"
	defaultWorkers           = 4
	defaultArchiveName       = "subtitle.zip"
	defaultServerBind        = "127.0.0.1:7490"
	defaultMaxUploadMB       = 16
	defaultWatchSettleMS     = 500
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultHistoryEnabled    = true
	defaultNormalizeNewlines = false

	// MappingEnv overrides paths.mapping_file when set.
	MappingEnv = "SRTFIX_MAPPING"
	// TokenEnv overrides server.token when set.
	TokenEnv = "SRTFIX_API_TOKEN"
)

var defaultExtensions = []string{".srt"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Repair: Repair{
			MinConfidence:     defaultMinConfidence,
			OutputSuffix:      defaultOutputSuffix,
			Extensions:        append([]string(nil), defaultExtensions...),
			Workers:           defaultWorkers,
			NormalizeNewlines: defaultNormalizeNewlines,
			ArchiveName:       defaultArchiveName,
		},
		Server: Server{
			Bind:        defaultServerBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Watch: Watch{
			SettleMS: defaultWatchSettleMS,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
