// FILE: src/cmd/wsl-guestd/main.go
// wsl-guestd is the Linux-side daemon: it runs the guest signal
// collectors, writes their output to the hash-chained journal, and
// bridges records to the host over the authenticated IPC channel.
// Wiring mirrors cmd/logwisp/main.go's bootstrap shape (config, then
// logger, then the long-running service) collapsed onto one binary.
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
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector/linux"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/config"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/daemonutil"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/ringbuffer"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/version"
)

const envPrefix = "WSLMON_GUEST"

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

	logger.Info("msg", "wsl-guestd starting", "version", version.Short())

	hmacKey := daemonutil.ResolveHMACKey(cfg.Journal)
	jrnl, err := journal.Open(cfg.Journal.Path, "guest", journal.WithHMACKey(hmacKey))
	if err != nil {
		logger.Error("msg", "failed to open journal", "error", err)
		os.Exit(1)
	}
	defer jrnl.Close()

	ring := ringbuffer.New[event.Record](cfg.RingBuffer.Capacity)

	sup := collector.New(logger, jrnl, ring, collector.WithMachineID(linux.BootID()))
	registerLinuxCollectors(sup, cfg.Collectors)

	listener, err := net.Listen("tcp", cfg.Bridge.ListenAddr)
	if err != nil {
		logger.Error("msg", "failed to listen for bridge peer", "addr", cfg.Bridge.ListenAddr, "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	br := bridge.New(logger, listener, func() (net.Conn, error) {
		return net.Dial("tcp", cfg.Bridge.ConnectAddr)
	}, secretLoader(cfg.Bridge.SecretPath), "host", sup.EmitInbound)
	sup.SetForwarder(br)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	br.Start(ctx)
	sup.Start(ctx)

	<-ctx.Done()
	logger.Info("msg", "wsl-guestd shutting down")
	sup.Stop()
	br.Stop()
}

func secretLoader(path string) bridge.SecretLoader {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}

func registerLinuxCollectors(sup *collector.Supervisor, cfg config.CollectorsConfig) {
	if cfg.JournalTail.Enabled {
		sup.Register(linux.NewJournalTail())
	}
	if cfg.KernelMessages.Enabled {
		sup.Register(linux.NewKernelMessageTail())
	}
	if cfg.Resource.Enabled {
		sup.Register(linux.NewResourceSampler())
	}
	if cfg.Pressure.Enabled {
		sup.Register(linux.NewPressureSampler())
	}
	if cfg.Crash.Enabled {
		sup.Register(linux.NewCrashWatcher(""))
	}
	if cfg.UnitFailures.Enabled {
		sup.Register(linux.NewUnitFailurePoller())
	}
	if cfg.Network.Enabled {
		sup.Register(linux.NewNetworkCounters())
	}
}
