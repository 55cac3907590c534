// FILE: src/internal/daemonutil/daemonutil.go
// Package daemonutil holds the bootstrap logic shared by wsl-guestd and
// wsl-hostd: logger initialization and journal HMAC key resolution.
// Grounded on cmd/logwisp/bootstrap.go's initializeLogger, adapted from
// a CLI-flag-aware, quiet-mode-aware setup to the two daemons' plain
// config-driven one.
package daemonutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/config"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/digest"
	"github.com/lixenwraith/log"
)

// InitLogger builds and initializes a *log.Logger from cfg the same
// way logwisp's bootstrap turns LogConfig into the package's own
// configArgs strings.
func InitLogger(cfg config.LogConfig) (*log.Logger, error) {
	logger := log.NewLogger()

	levelValue, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	args := []string{fmt.Sprintf("level=%d", levelValue)}

	switch cfg.Output {
	case "none":
		args = append(args, "disable_file=true", "enable_stdout=false")
	case "stdout":
		args = append(args, "disable_file=true", "enable_stdout=true", "stdout_target=stdout")
	case "stderr":
		args = append(args, "disable_file=true", "enable_stdout=true", "stdout_target=stderr")
	case "file":
		args = append(args, "enable_stdout=false")
		args = appendFileArgs(args, cfg)
	case "both":
		args = append(args, "enable_stdout=true")
		args = appendFileArgs(args, cfg)
		args = appendConsoleArgs(args, cfg)
	default:
		return nil, fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	if cfg.Console != nil && cfg.Console.Format != "" {
		args = append(args, fmt.Sprintf("format=%s", cfg.Console.Format))
	}

	if err := logger.ApplyConfigString(args...); err != nil {
		return nil, err
	}
	return logger, nil
}

func appendFileArgs(args []string, cfg config.LogConfig) []string {
	if cfg.File == nil {
		return args
	}
	args = append(args,
		fmt.Sprintf("directory=%s", cfg.File.Directory),
		fmt.Sprintf("name=%s", cfg.File.Name),
		fmt.Sprintf("max_size_mb=%d", cfg.File.MaxSizeMB),
		fmt.Sprintf("max_total_size_mb=%d", cfg.File.MaxTotalSizeMB))
	if cfg.File.RetentionHours > 0 {
		args = append(args, fmt.Sprintf("retention_period_hrs=%.1f", cfg.File.RetentionHours))
	}
	return args
}

func appendConsoleArgs(args []string, cfg config.LogConfig) []string {
	target := "stderr"
	if cfg.Console != nil && cfg.Console.Target != "" {
		target = cfg.Console.Target
	}
	if target == "split" {
		return append(args, "stdout_split_mode=true", "stdout_target=split")
	}
	return append(args, fmt.Sprintf("stdout_target=%s", target))
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return 0, nil
	case "info":
		return 1, nil
	case "warn", "warning":
		return 2, nil
	case "error":
		return 3, nil
	default:
		return 0, fmt.Errorf("unknown level %q", level)
	}
}

// ResolveHMACKey implements spec.md's two recognized forms of journal
// HMAC key configuration: a raw hex key in one environment variable,
// or a path to a file containing the hex key in another. Neither set
// (or either malformed) disables the tag without error — callers pass
// the result straight to journal.WithHMACKey, and a nil key there is a
// no-op.
func ResolveHMACKey(cfg config.JournalConfig) []byte {
	if cfg.HMACKeyEnv != "" {
		if raw := os.Getenv(cfg.HMACKeyEnv); raw != "" {
			if key, err := digest.FromHex(raw); err == nil {
				return key
			}
		}
	}
	if cfg.HMACKeyFileEnv != "" {
		if path := os.Getenv(cfg.HMACKeyFileEnv); path != "" {
			data, err := os.ReadFile(path)
			if err == nil {
				if key, err := digest.FromHex(strings.TrimSpace(string(data))); err == nil {
					return key
				}
			}
		}
	}
	return nil
}
