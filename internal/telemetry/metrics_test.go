package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dantte-lp/goctap/internal/telemetry"
)

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := telemetry.NewCollector(reg)

	c.ObserveCall("authenticatorGetInfo", "", 5*time.Millisecond, nil)
	c.ObserveCall("authenticatorClientPIN", "0x31", 2*time.Millisecond, errSentinel)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var foundRequests, foundErrors bool
	for _, fam := range families {
		switch fam.GetName() {
		case "goctap_ctap2_requests_total":
			foundRequests = true
			if total := sumCounters(fam.GetMetric()); total != 2 {
				t.Errorf("requests_total = %v, want 2", total)
			}
		case "goctap_ctap2_errors_total":
			foundErrors = true
			if total := sumCounters(fam.GetMetric()); total != 1 {
				t.Errorf("errors_total = %v, want 1", total)
			}
		}
	}

	if !foundRequests {
		t.Error("goctap_ctap2_requests_total not registered")
	}
	if !foundErrors {
		t.Error("goctap_ctap2_errors_total not registered")
	}
}

func sumCounters(metrics []*dto.Metric) float64 {
	var total float64
	for _, m := range metrics {
		if c := m.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}

var errSentinel = &sentinelErr{}

type sentinelErr struct{}

func (*sentinelErr) Error() string { return "sentinel" }
