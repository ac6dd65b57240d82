package app

import (
	"testing"
)

// TestLoadConfig verifies basic config loading.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config == nil {
		t.Fatal("LoadConfig() returned nil config")
	}

	// Verify defaults are set
	// Note: LogLevel may be empty (triggers precedence logic in logger.go)
	// LogFormat should have a default
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.LogOutput == "" {
		t.Error("LogOutput not set to default")
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("MLSYNC_VERBOSE", "true")
	t.Setenv("MLSYNC_FORMAT", "json")
	t.Setenv("LOG_FORMAT", "json")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if !config.Verbose {
		t.Error("MLSYNC_VERBOSE environment variable not loaded")
	}
	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.LogFormat != "json" {
		t.Errorf("LogFormat = %s, want json", config.LogFormat)
	}
}

// TestConfig_UpdateFromFlags verifies flags take precedence while empty
// flag values keep earlier settings.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{
		Format:   "json",
		LogLevel: "info",
	}

	config.UpdateFromFlags(true, false, true, "", "")

	if !config.Verbose {
		t.Error("Verbose flag not applied")
	}
	if config.Quiet {
		t.Error("Quiet should stay false")
	}
	if !config.NoColor {
		t.Error("NoColor flag not applied")
	}
	if config.Format != "json" {
		t.Errorf("empty format flag overwrote Format: got %s", config.Format)
	}
	if config.LogLevel != "info" {
		t.Errorf("empty log-level flag overwrote LogLevel: got %s", config.LogLevel)
	}

	config.UpdateFromFlags(false, true, false, "yaml", "error")

	if config.Format != "yaml" {
		t.Errorf("Format = %s, want yaml", config.Format)
	}
	if config.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error", config.LogLevel)
	}
	if !config.Quiet {
		t.Error("Quiet flag not applied")
	}
}
