package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("config_dir: /srv/bot\nlog_level: debug\nhealth:\n  enabled: true\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("HEALTH_ADDR", ":9090")

	cfg, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigDir != "/srv/bot" {
		t.Fatalf("expected config dir from yaml, got %q", cfg.ConfigDir)
	}
	if !cfg.Health.Enabled || cfg.Health.Addr != ":9090" {
		t.Fatalf("unexpected health config: %+v", cfg.Health)
	}
	if cfg.DatabasePath != "configbot.db" {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
}

func TestLoadFromDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("DISCORD_TOKEN=from-file\nGUILD_ID=42\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("GUILD_ID", "")
	_ = os.Unsetenv("GUILD_ID")

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"), envPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-env" {
		t.Fatalf("expected env token to win, got %q", cfg.DiscordToken)
	}
	if cfg.GuildID != "42" {
		t.Fatalf("expected guild id from .env, got %q", cfg.GuildID)
	}
	_ = os.Unsetenv("GUILD_ID")
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml"), ""); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestBuildLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger, err := BuildLogger("debug", LogFileConfig{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}
