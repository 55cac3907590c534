// FILE: src/cmd/wsl-hostd/main.go
//go:build windows

// wsl-hostd is the Windows-side daemon: it runs the host signal
// collectors, writes their output to the hash-chained journal, and
// bridges records to the guest over the authenticated IPC channel.
// Mirrors wsl-guestd's shape with the platform-specific collector set
// and machine identifier swapped for their Windows equivalents.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/bridge"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector/windows"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/config"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/daemonutil"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/ringbuffer"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/version"
)

const envPrefix = "WSLMON_HOST"

func main() {
	cfg, err := config.LoadWithCLI(envPrefix, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := daemonutil.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Shutdown(2 * time.Second)

	logger.Info("msg", "wsl-hostd starting", "version", version.Short())

	hmacKey := daemonutil.ResolveHMACKey(cfg.Journal)
	jrnl, err := journal.Open(cfg.Journal.Path, "host", journal.WithHMACKey(hmacKey))
	if err != nil {
		logger.Error("msg", "failed to open journal", "error", err)
		os.Exit(1)
	}
	defer jrnl.Close()

	ring := ringbuffer.New[event.Record](cfg.RingBuffer.Capacity)

	sup := collector.New(logger, jrnl, ring, collector.WithMachineID(windows.MachineGUID()))
	registerWindowsCollectors(sup, cfg.Collectors)

	listener, err := net.Listen("tcp", cfg.Bridge.ListenAddr)
	if err != nil {
		logger.Error("msg", "failed to listen for bridge peer", "addr", cfg.Bridge.ListenAddr, "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	br := bridge.New(logger, listener, func() (net.Conn, error) {
		return net.Dial("tcp", cfg.Bridge.ConnectAddr)
	}, secretLoader(cfg.Bridge.SecretPath), "guest", sup.EmitInbound)
	sup.SetForwarder(br)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	br.Start(ctx)
	sup.Start(ctx)

	<-ctx.Done()
	logger.Info("msg", "wsl-hostd shutting down")
	sup.Stop()
	br.Stop()
}

func secretLoader(path string) bridge.SecretLoader {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}

func registerWindowsCollectors(sup *collector.Supervisor, cfg config.CollectorsConfig) {
	if cfg.EventLog.Enabled {
		sup.Register(windows.NewEventLogTail())
	}
	if cfg.WER.Enabled {
		sup.Register(windows.NewWERWatcher())
	}
	if cfg.Power.Enabled {
		sup.Register(windows.NewPowerPoller())
	}
	if cfg.WSLDiagnostics.Enabled {
		sup.Register(windows.NewWSLDiagnosticsPoller())
	}
	if cfg.Process.Enabled {
		sup.Register(windows.NewProcessSampler())
	}
	if cfg.ServiceState.Enabled {
		sup.Register(windows.NewServiceStateSampler())
	}
	if cfg.SecurityPosture.Enabled {
		sup.Register(windows.NewSecurityPostureSampler())
	}
}
