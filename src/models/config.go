package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Backend  MBackendConfig  `yaml:"backend"`
	Playback MPlaybackConfig `yaml:"playback"`
	Storage  MStorageConfig  `yaml:"storage"`
}

type MBackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout int    `yaml:"timeout"`       // seconds, timestep/time lookups
	FetchTimeout   int    `yaml:"fetch_timeout"` // seconds, per-step coordinate fetches
}

type MPlaybackConfig struct {
	TickIntervalMS int  `yaml:"tick_interval_ms"`
	SkipNonTrading bool `yaml:"skip_non_trading"`
	HistoryLimit   int  `yaml:"history_limit"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}
