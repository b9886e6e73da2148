package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Database.Path != "./diffkit.db" {
		t.Errorf("Database.Path = %s, want ./diffkit.db", cfg.Database.Path)
	}
	if cfg.Loader.MIB.SumLength != 10 {
		t.Errorf("Loader.MIB.SumLength = %d, want 10", cfg.Loader.MIB.SumLength)
	}
	if !cfg.Loader.Cast() {
		t.Error("Loader.Cast() should default to true")
	}
	if !cfg.Loader.MIB.Flip() {
		t.Error("Loader.MIB.Flip() should default to true")
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Server.Addr = %s, want :3000", cfg.Server.Addr)
	}
	if cfg.Watch.Debounce.Duration() != 500*time.Millisecond {
		t.Errorf("Watch.Debounce = %s, want 500ms", cfg.Watch.Debounce.Duration())
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestSummary(t *testing.T) {
	cfg := DefaultConfig()
	if strings.Contains(cfg.Summary(), "Watching") {
		t.Error("Summary() should leave out an unset watch dir")
	}

	cfg.Watch.Dir = "/data/incoming"
	summary := cfg.Summary()
	for _, want := range []string{
		"Database: ./diffkit.db",
		"Server: :3000",
		"mib sum_length=10 flip=true",
		"Watching: /data/incoming (debounce 500ms)",
		"Log: info/text",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
loader:
  cast_to_electron_diffraction: false
  mib:
    flip_patterns: false
watch:
  dir: /data/incoming
  debounce: 2s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if cfg.Loader.Cast() {
		t.Error("Loader.Cast() should be false when disabled in the file")
	}
	if cfg.Loader.MIB.Flip() {
		t.Error("Loader.MIB.Flip() should be false when disabled in the file")
	}
	if cfg.Loader.MIB.SumLength != 10 {
		t.Errorf("Loader.MIB.SumLength = %d, want default 10", cfg.Loader.MIB.SumLength)
	}
	if cfg.Watch.Dir != "/data/incoming" {
		t.Errorf("Watch.Dir = %s, want /data/incoming", cfg.Watch.Dir)
	}
	if cfg.Watch.Debounce.Duration() != 2*time.Second {
		t.Errorf("Watch.Debounce = %s, want 2s", cfg.Watch.Debounce.Duration())
	}
	if cfg.Database.Path != "./diffkit.db" {
		t.Errorf("Database.Path = %s, want default", cfg.Database.Path)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	if _, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromPath() should fail for a missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("watch:\n  debounce: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(bad); err == nil {
		t.Error("LoadFromPath() should fail for an invalid duration")
	}
}

func TestSaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Database.Path = "/var/lib/diffkit/catalog.db"
	cfg.Loader.MIB.SumLength = 4
	cast := false
	cfg.Loader.CastToElectronDiffraction = &cast

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.Database.Path != cfg.Database.Path {
		t.Errorf("Database.Path = %s, want %s", loaded.Database.Path, cfg.Database.Path)
	}
	if loaded.Loader.MIB.SumLength != 4 {
		t.Errorf("Loader.MIB.SumLength = %d, want 4", loaded.Loader.MIB.SumLength)
	}
	if loaded.Loader.Cast() {
		t.Error("Loader.Cast() should survive a save as false")
	}
}

func TestFindConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv(EnvConfigPath, "")

	wd := t.TempDir()
	t.Chdir(wd)

	// Home config only
	homeConfig := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	if err := DefaultConfig().Save(homeConfig); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if found := FindConfigPath(); found != homeConfig {
		t.Errorf("FindConfigPath() = %q, want %q", found, homeConfig)
	}

	// Working directory wins over home
	if err := DefaultConfig().Save(filepath.Join(wd, ConfigFileName)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if found := FindConfigPath(); filepath.Base(found) != ConfigFileName {
		t.Errorf("FindConfigPath() = %q, want the working directory file", found)
	}

	// Missing explicit path falls back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	if found := FindConfigPath(); filepath.Base(found) != ConfigFileName {
		t.Errorf("FindConfigPath() = %q, want fallback to the working directory file", found)
	}

	// Existing explicit path wins
	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := DefaultConfig().Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found := FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %q, want %q", found, explicit)
	}
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvAddr, ":9090")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")
	// unset rather than empty so that .env may supply it; t.Setenv restores it
	t.Setenv(EnvWatchDir, "")
	os.Unsetenv(EnvWatchDir)

	wd := t.TempDir()
	t.Chdir(wd)

	// .env fills unset variables but never overrides set ones
	dotenv := EnvAddr + "=:7070\n" + EnvWatchDir + "=/srv/scans\n"
	if err := os.WriteFile(filepath.Join(wd, DotEnvFile), []byte(dotenv), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != "" && !strings.HasPrefix(path, "/etc/") {
		t.Errorf("path = %q, want no config file", path)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090 from the environment", cfg.Server.Addr)
	}
	if cfg.Watch.Dir != "/srv/scans" {
		t.Errorf("Watch.Dir = %s, want /srv/scans from .env", cfg.Watch.Dir)
	}
}

func TestLogConfig(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "debug", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %s, want debug", logger.GetLevel())
	}
	logger.WithField("dataset", "abc").Info("ingested")
	if !strings.Contains(buf.String(), `"dataset":"abc"`) {
		t.Errorf("json output missing field: %s", buf.String())
	}

	if _, err := (LogConfig{Level: "loud"}).NewLogger(&buf); err == nil {
		t.Error("NewLogger() should reject an unknown level")
	}
	if _, err := (LogConfig{Level: "info", Format: "xml"}).NewLogger(&buf); err == nil {
		t.Error("NewLogger() should reject an unknown format")
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
