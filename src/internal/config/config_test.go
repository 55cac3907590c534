// FILE: src/internal/config/config_test.go
package config

import "testing"

func TestDefaultsValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults() produced an invalid config: %v", err)
	}
}

func TestValidateRejectsNonPositiveRingBufferCapacity(t *testing.T) {
	cfg := defaults()
	cfg.RingBuffer.Capacity = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for zero ring buffer capacity")
	}
}

func TestValidateRejectsEmptyJournalPath(t *testing.T) {
	cfg := defaults()
	cfg.Journal.Path = ""
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for empty journal path")
	}
}

func TestValidateRejectsEmptySecretPath(t *testing.T) {
	cfg := defaults()
	cfg.Bridge.SecretPath = ""
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for empty bridge secret path")
	}
}

func TestDefaultCollectorsConfigEnablesEveryCollector(t *testing.T) {
	cfg := defaultCollectorsConfig()
	toggles := []CollectorToggle{
		cfg.JournalTail, cfg.KernelMessages, cfg.Resource, cfg.Pressure,
		cfg.Crash, cfg.UnitFailures, cfg.Network, cfg.EventLog, cfg.WER,
		cfg.Power, cfg.WSLDiagnostics, cfg.Process, cfg.ServiceState,
		cfg.SecurityPosture,
	}
	for i, toggle := range toggles {
		if !toggle.Enabled {
			t.Fatalf("collector toggle %d expected enabled by default", i)
		}
	}
}

func TestGetConfigPathPrefersExplicitAbsoluteFile(t *testing.T) {
	t.Setenv("WSLMON_TEST_CONFIG_FILE", "/etc/wslmon/custom.toml")
	got := GetConfigPath("WSLMON_TEST")
	if got != "/etc/wslmon/custom.toml" {
		t.Fatalf("got %q", got)
	}
}

func TestGetConfigPathJoinsRelativeFileWithDir(t *testing.T) {
	t.Setenv("WSLMON_TEST_CONFIG_FILE", "custom.toml")
	t.Setenv("WSLMON_TEST_CONFIG_DIR", "/etc/wslmon")
	got := GetConfigPath("WSLMON_TEST")
	if got != "/etc/wslmon/custom.toml" {
		t.Fatalf("got %q", got)
	}
}
