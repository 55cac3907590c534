// FILE: src/internal/collector/windows/security.go
//go:build windows

package windows

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const securitySampleInterval = 10 * time.Second

const (
	productStateEnabledMask  = 0x10
	productStateUpToDateMask = 0x1000
)

// vendorProbe is one hard-coded companion service check, mirroring the
// original's kVendorProbes table exactly.
type vendorProbe struct {
	serviceName    string
	vendorFragment string
	component      string
}

var vendorProbes = []vendorProbe{
	{serviceName: "SepMasterService", vendorFragment: "symantec", component: "Symantec Endpoint"},
	{serviceName: "mfemms", vendorFragment: "mcafee", component: "McAfee Endpoint"},
	{serviceName: "CSFalconService", vendorFragment: "crowdstrike", component: "CrowdStrike Sensor"},
	{serviceName: "SentinelAgent", vendorFragment: "sentinel", component: "SentinelOne Agent"},
	{serviceName: "ossecsvc", vendorFragment: "trend", component: "TrendMicro/OSSEC"},
}

func containsCaseInsensitive(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func productStateToText(state uint32) string {
	enabled := state&productStateEnabledMask != 0
	upToDate := state&productStateUpToDateMask != 0
	text := "Disabled"
	if enabled {
		text = "Enabled"
	}
	if upToDate {
		text += "|UpToDate"
	} else {
		text += "|Outdated"
	}
	return text
}

func serviceStateToText(state svc.State) string {
	switch state {
	case svc.Stopped:
		return "Stopped"
	case svc.StartPending:
		return "StartPending"
	case svc.StopPending:
		return "StopPending"
	case svc.Running:
		return "Running"
	case svc.ContinuePending:
		return "ContinuePending"
	case svc.PausePending:
		return "PausePending"
	case svc.Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

type securityProduct struct {
	DisplayName  string `json:"displayName"`
	ProductState uint32 `json:"productState"`
	Suite        string `json:"pathToSignedProductExe"`
}

// queryAntiMalwareProducts shells out to PowerShell to read the
// ROOT\SecurityCenter2 WMI namespace. No pure-Go WMI client exists in
// the retrieval pack, so this follows the same platform-CLI-shelling
// pattern as the event-log tail and power poller.
func queryAntiMalwareProducts(ctx context.Context) ([]securityProduct, error) {
	script := `Get-CimInstance -Namespace root/SecurityCenter2 -ClassName AntiVirusProduct -ErrorAction SilentlyContinue | ` +
		`Select-Object displayName,productState,pathToSignedProductExe | ConvertTo-Json -Compress`
	out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	trimmed := trimSpaceBytes(out)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var products []securityProduct
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return nil, err
		}
		return products, nil
	}
	var single securityProduct
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []securityProduct{single}, nil
}

// SecurityPostureSampler enumerates anti-malware/firewall products
// every 10 seconds, decoding each product's 32-bit state, and probes a
// fixed set of vendor service names as a companion signal.
type SecurityPostureSampler struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSecurityPostureSampler constructs a SecurityPostureSampler.
func NewSecurityPostureSampler() *SecurityPostureSampler {
	return &SecurityPostureSampler{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (s *SecurityPostureSampler) Name() string { return "security.posture" }

func (s *SecurityPostureSampler) Start(ctx context.Context, sup *collector.Supervisor) error {
	go s.run(ctx, sup)
	return nil
}

func (s *SecurityPostureSampler) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(s.stopped)

	m, mgrErr := mgr.Connect()
	if mgrErr == nil {
		defer m.Disconnect()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(securitySampleInterval):
		}

		products, err := queryAntiMalwareProducts(ctx)
		if err != nil {
			continue
		}
		for _, product := range products {
			stateText := productStateToText(product.ProductState)
			severity := event.SeverityInfo
			if strings.Contains(stateText, "Disabled") || strings.Contains(stateText, "Outdated") {
				severity = event.SeverityWarning
			}
			rec := event.Record{
				Source:   s.Name(),
				Category: event.CategorySecurity,
				Severity: severity,
				Message:  "Security product state",
			}
			rec.SetAttribute("name", product.DisplayName)
			rec.SetAttribute("stateText", stateText)
			rec.SetAttribute("suite", product.Suite)
			sup.Emit(rec)

			if mgrErr == nil {
				s.probeVendorServices(sup, m, product.DisplayName)
			}
		}
	}
}

func (s *SecurityPostureSampler) probeVendorServices(sup *collector.Supervisor, m *mgr.Mgr, vendorName string) {
	for _, probe := range vendorProbes {
		if !containsCaseInsensitive(vendorName, probe.vendorFragment) {
			continue
		}

		rec := event.Record{
			Source:   s.Name(),
			Category: event.CategorySecurity,
			Message:  "Vendor service state",
		}
		rec.SetAttribute("vendor", vendorName)
		rec.SetAttribute("probe", probe.component)
		rec.SetAttribute("service", probe.serviceName)

		svcHandle, err := m.OpenService(probe.serviceName)
		if err != nil {
			rec.Severity = event.SeverityWarning
			rec.Message = "Vendor service unavailable"
			sup.Emit(rec)
			continue
		}
		status, err := svcHandle.Query()
		svcHandle.Close()
		if err != nil {
			rec.Severity = event.SeverityWarning
			rec.Message = "Vendor service state query failed"
			sup.Emit(rec)
			continue
		}

		rec.Severity = event.SeverityInfo
		if status.State != svc.Running {
			rec.Severity = event.SeverityWarning
		}
		rec.SetAttribute("serviceState", serviceStateToText(status.State))
		rec.SetAttribute("pid", fmt.Sprintf("%d", status.ProcessId))
		sup.Emit(rec)
	}
}

func (s *SecurityPostureSampler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.stopped
}
