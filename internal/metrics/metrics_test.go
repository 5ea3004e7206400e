package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_RegisterAndCount(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunsTotal.WithLabelValues("PASS").Inc()
	m.RunsTotal.WithLabelValues("PASS").Inc()
	m.ToolCallsTotal.WithLabelValues("run_pytest", "SUCCESS").Inc()
	m.BlockedCallsTotal.WithLabelValues("policy_block").Inc()
	m.ToolDurationSeconds.WithLabelValues("run_pytest").Observe(1.5)

	if got := counterValue(t, m.RunsTotal.WithLabelValues("PASS")); got != 2 {
		t.Errorf("runs_total{PASS} = %v, want 2", got)
	}
	if got := counterValue(t, m.ToolCallsTotal.WithLabelValues("run_pytest", "SUCCESS")); got != 1 {
		t.Errorf("tool_calls_total = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"proofgate_runs_total",
		"proofgate_tool_calls_total",
		"proofgate_blocked_calls_total",
		"proofgate_tool_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	New(reg)
}
