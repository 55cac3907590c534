// FILE: src/internal/collector/windows/windows.go
//go:build windows

// Package windows implements the host-side signal collectors: the
// platform event-log tail, the WER crash-artifact watcher, power and
// WSL-diagnostics pollers, the process sampler, the service-state
// sampler, and the security-posture sampler. Each mirrors one
// *_collector.cpp file from the original host daemon.
package windows

import (
	"bytes"
	"context"
	"strconv"
	"time"
)

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }

func trimSpaceBytes(b []byte) []byte { return bytes.TrimSpace(b) }

// sleepOrDone waits d or returns false immediately if ctx is done.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// MachineGUID is the stable per-machine identifier read from
// HKLM\SOFTWARE\Microsoft\Cryptography\MachineGuid, the Windows
// analogue of the guest's /proc/sys/kernel/random/boot_id.
func MachineGUID() string {
	v, err := readRegistryString(`SOFTWARE\Microsoft\Cryptography`, "MachineGuid")
	if err != nil {
		return ""
	}
	return v
}
