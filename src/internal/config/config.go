// FILE: src/internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Config is the full configuration tree for either daemon. Both
// wsl-guestd and wsl-hostd load the same shape; platform-specific
// fields that don't apply to a side are simply left at their zero
// value.
type Config struct {
	Journal    JournalConfig    `toml:"journal"`
	Bridge     BridgeConfig     `toml:"bridge"`
	RingBuffer RingBufferConfig `toml:"ring_buffer"`
	Collectors CollectorsConfig `toml:"collectors"`
	Logging    LogConfig        `toml:"logging"`
}

// JournalConfig controls where the hash-chained event log lives and
// how its HMAC authentication key is sourced.
type JournalConfig struct {
	Path string `toml:"path"`

	// HMACKeyEnv names an environment variable holding the raw hex
	// key. HMACKeyFileEnv names an environment variable holding the
	// path to a file whose contents are the hex key. Both absent (or
	// malformed) disables the HMAC tag without error, per spec.md §6.
	HMACKeyEnv     string `toml:"hmac_key_env"`
	HMACKeyFileEnv string `toml:"hmac_key_file_env"`
}

// BridgeConfig controls the dual-role IPC channel between the two
// sides.
type BridgeConfig struct {
	SecretPath   string `toml:"secret_path"`
	ListenAddr   string `toml:"listen_addr"`
	ConnectAddr  string `toml:"connect_addr"`
}

// RingBufferConfig sizes the in-memory snapshot buffer.
type RingBufferConfig struct {
	Capacity int `toml:"capacity"`
}

// CollectorsConfig holds the enable flag and an interval field for
// every collector this side can run. IntervalSeconds is loaded but no
// collector reads it; every collector polls at its built-in interval.
type CollectorsConfig struct {
	JournalTail      CollectorToggle `toml:"journal_tail"`
	KernelMessages   CollectorToggle `toml:"kernel_messages"`
	Resource         CollectorToggle `toml:"resource"`
	Pressure         CollectorToggle `toml:"pressure"`
	Crash            CollectorToggle `toml:"crash"`
	UnitFailures     CollectorToggle `toml:"unit_failures"`
	Network          CollectorToggle `toml:"network"`
	EventLog         CollectorToggle `toml:"event_log"`
	WER              CollectorToggle `toml:"wer"`
	Power            CollectorToggle `toml:"power"`
	WSLDiagnostics   CollectorToggle `toml:"wsl_diagnostics"`
	Process          CollectorToggle `toml:"process"`
	ServiceState     CollectorToggle `toml:"service_state"`
	SecurityPosture  CollectorToggle `toml:"security_posture"`
}

// CollectorToggle is the per-collector enable flag and interval
// override shared by every entry in CollectorsConfig.
type CollectorToggle struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

func defaultCollectorsConfig() CollectorsConfig {
	enabled := CollectorToggle{Enabled: true}
	return CollectorsConfig{
		JournalTail:     enabled,
		KernelMessages:  enabled,
		Resource:        enabled,
		Pressure:        enabled,
		Crash:           enabled,
		UnitFailures:    enabled,
		Network:         enabled,
		EventLog:        enabled,
		WER:             enabled,
		Power:           enabled,
		WSLDiagnostics:  enabled,
		Process:         enabled,
		ServiceState:    enabled,
		SecurityPosture: enabled,
	}
}

func defaultJournalPath() string {
	if runtime.GOOS == "windows" {
		return `C:/ProgramData/WslMonitor/host-events.log`
	}
	return "/var/log/wsl-monitor/guest-events.log"
}

func defaultSecretPath() string {
	if runtime.GOOS == "windows" {
		return `C:/ProgramData/WslMonitor/bridge.secret`
	}
	return "/etc/wsl-monitor/bridge.secret"
}

func defaults() *Config {
	return &Config{
		Journal: JournalConfig{
			Path:           defaultJournalPath(),
			HMACKeyEnv:     "WSLMON_JOURNAL_HMAC_KEY",
			HMACKeyFileEnv: "WSLMON_JOURNAL_HMAC_KEY_FILE",
		},
		Bridge: BridgeConfig{
			SecretPath:  defaultSecretPath(),
			ListenAddr:  "0.0.0.0:8743",
			ConnectAddr: "127.0.0.1:8743",
		},
		RingBuffer: RingBufferConfig{Capacity: 4096},
		Collectors: defaultCollectorsConfig(),
		Logging:    *DefaultLogConfig(),
	}
}

// LoadWithCLI loads configuration from CLI args, environment, and
// TOML file, in that precedence order, mirroring the teacher's own
// builder chain.
func LoadWithCLI(envPrefix string, cliArgs []string) (*Config, error) {
	configPath := GetConfigPath(envPrefix)

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix(envPrefix + "_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()
	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

// GetConfigPath resolves the TOML config path the same way the
// teacher does: an explicit file env var, a directory env var, or a
// per-user default under the home directory.
func GetConfigPath(envPrefix string) string {
	fileVar := envPrefix + "_CONFIG_FILE"
	dirVar := envPrefix + "_CONFIG_DIR"
	name := strings.ToLower(envPrefix) + ".toml"

	if configFile := os.Getenv(fileVar); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv(dirVar); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv(dirVar); configDir != "" {
		return filepath.Join(configDir, name)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", name)
	}

	return name
}

func (c *Config) validate() error {
	if c.RingBuffer.Capacity < 1 {
		return fmt.Errorf("ring buffer capacity must be positive: %d", c.RingBuffer.Capacity)
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal path must not be empty")
	}
	if c.Bridge.SecretPath == "" {
		return fmt.Errorf("bridge secret path must not be empty")
	}
	return validateLogConfig(&c.Logging)
}
