package config

import (
	"os"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds process level settings. Bot behaviour itself lives in the
// JSON documents under ConfigDir.
type Config struct {
	DiscordToken         string        `yaml:"discord_token"`
	ConfigDir            string        `yaml:"config_dir"`
	DatabasePath         string        `yaml:"database_path"`
	GuildID              string        `yaml:"guild_id"`
	LogLevel             string        `yaml:"log_level"`
	LogFile              LogFileConfig `yaml:"log_file"`
	Health               HealthConfig  `yaml:"health"`
	CommandCacheSeconds  int           `yaml:"command_cache_seconds"`
	ReversalTimeoutSecs  int           `yaml:"reversal_timeout_seconds"`
	JournalRetentionDays int           `yaml:"journal_retention_days"`
	SyncCommands         bool          `yaml:"sync_commands"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogFileConfig enables a rotating file sink next to stdout when Path is set.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func DefaultConfig() Config {
	return Config{
		ConfigDir:            "configs",
		DatabasePath:         "configbot.db",
		LogLevel:             "info",
		Health:               HealthConfig{Enabled: false, Addr: ":8080"},
		LogFile:              LogFileConfig{MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
		CommandCacheSeconds:  300,
		ReversalTimeoutSecs:  15,
		JournalRetentionDays: 30,
		SyncCommands:         true,
	}
}

// Load reads CONFIG_PATH (default config.yaml), then a .env file, then the
// environment. Variables already set are never overwritten by .env.
func Load() (Config, error) {
	return LoadFrom(envString("CONFIG_PATH", "config.yaml"), ".env")
}

func LoadFrom(path, envPath string) (Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.WithMessage(err, "decode "+path)
		}
	}

	if envPath != "" {
		if info, err := os.Stat(envPath); err == nil && !info.IsDir() {
			_ = godotenv.Load(envPath)
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.CommandCacheSeconds < 0 {
		cfg.CommandCacheSeconds = 0
	}
	if cfg.ReversalTimeoutSecs <= 0 {
		cfg.ReversalTimeoutSecs = 15
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.ConfigDir = envString("CONFIG_DIR", cfg.ConfigDir)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile.Path = envString("LOG_FILE", cfg.LogFile.Path)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.CommandCacheSeconds = envInt("COMMAND_CACHE_SECONDS", cfg.CommandCacheSeconds)
	cfg.ReversalTimeoutSecs = envInt("REVERSAL_TIMEOUT_SECONDS", cfg.ReversalTimeoutSecs)
	cfg.JournalRetentionDays = envInt("JOURNAL_RETENTION_DAYS", cfg.JournalRetentionDays)
	cfg.SyncCommands = envBool("SYNC_COMMANDS", cfg.SyncCommands)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
