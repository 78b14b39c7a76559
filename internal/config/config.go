// Package config loads pingwatch configuration: the application
// config file and the job schedule file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/user/pingwatch/internal/model"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogDir   string `mapstructure:"log_dir"`
	LogLevel string `mapstructure:"log_level"`

	// Probe primitive selection: "system" spawns the platform ping
	// utility, "icmp" sends echo requests in-process.
	ProbeMode      string `mapstructure:"probe_mode"`
	ICMPPrivileged bool   `mapstructure:"icmp_privileged"`

	// Per-job defaults, overridable in the schedule file.
	DefaultTimeout int `mapstructure:"default_timeout"` // seconds
	DefaultCount   int `mapstructure:"default_count"`
	DefaultWorkers int `mapstructure:"default_workers"`

	// Daemon schedule file and output locations.
	ScheduleFile string `mapstructure:"schedule_file"`
	ResultsDir   string `mapstructure:"results_dir"`
	ReportDir    string `mapstructure:"report_dir"`

	// Structured result stores. Empty values disable a store; the
	// per-run log files are always written.
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// Query-backed host source database.
	SourceDriver string `mapstructure:"source_driver"` // sqlite3 or pgx
	SourceDSN    string `mapstructure:"source_dsn"`
}

// DefaultParams returns the configured probe parameter defaults.
func (c *Config) DefaultParams() model.ProbeParams {
	return model.ProbeParams{
		Timeout: time.Duration(c.DefaultTimeout) * time.Second,
		Count:   c.DefaultCount,
		Workers: c.DefaultWorkers,
	}.Normalized()
}

// HostFileSearchDirs returns the fallback directories for relative
// host file paths: the data dir's config subdirectory, then the data
// dir itself.
func (c *Config) HostFileSearchDirs() []string {
	return []string{filepath.Join(c.DataDir, "config"), c.DataDir}
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pingwatch")

	return &Config{
		DataDir:  dataDir,
		LogDir:   filepath.Join(dataDir, "log"),
		LogLevel: "info",

		ProbeMode: "system",

		DefaultTimeout: 3,
		DefaultCount:   1,
		DefaultWorkers: 10,

		ScheduleFile: filepath.Join(dataDir, "ping_schedule.conf"),
		ResultsDir:   filepath.Join(dataDir, "results"),
		ReportDir:    filepath.Join(dataDir, "reports"),

		SQLitePath: filepath.Join(dataDir, "pingwatch.db"),

		SourceDriver: "sqlite3",
	}
}

// Load reads configuration from file and environment. cfgFile, when
// non-empty, names an explicit config file; otherwise config.yaml is
// looked up in the data dir and the working directory.
func Load(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(cfg.DataDir)
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("pingwatch")
	v.AutomaticEnv()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("probe_mode", cfg.ProbeMode)
	v.SetDefault("default_timeout", cfg.DefaultTimeout)
	v.SetDefault("default_count", cfg.DefaultCount)
	v.SetDefault("default_workers", cfg.DefaultWorkers)
	v.SetDefault("schedule_file", cfg.ScheduleFile)
	v.SetDefault("results_dir", cfg.ResultsDir)
	v.SetDefault("report_dir", cfg.ReportDir)
	v.SetDefault("sqlite_path", cfg.SQLitePath)
	v.SetDefault("source_driver", cfg.SourceDriver)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
