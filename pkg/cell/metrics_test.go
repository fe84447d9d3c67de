package cell

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// metricValue returns the value of the counter or gauge name with labels.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	th := newTestHost(t, HostConfig{Metrics: m})

	c, set := Attach[any](th.Host, "count", 0)
	set(1)
	set("bad")
	setItemAs(t, th.persistent, th.ID(), "count", "5")
	th.step(2)

	persistent := map[string]string{"scope": "persistent"}
	if got := metricValue(t, reg, "test_cell_writes_total", persistent); got != 2 {
		t.Errorf("writes: expected 2 (seed and set), got %v", got)
	}
	if got := metricValue(t, reg, "test_cell_reverts_total", map[string]string{"scope": "persistent", "reason": "type_mismatch"}); got != 1 {
		t.Errorf("reverts: expected 1, got %v", got)
	}
	if got := metricValue(t, reg, "test_cell_adopts_total", map[string]string{"scope": "persistent", "source": "poll"}); got != 1 {
		t.Errorf("poll adopts: expected 1, got %v", got)
	}
	if got := metricValue(t, reg, "test_cell_poll_frames_total", nil); got != 2 {
		t.Errorf("poll frames: expected 2, got %v", got)
	}
	if got := metricValue(t, reg, "test_cell_attached", persistent); got != 1 {
		t.Errorf("attached: expected 1, got %v", got)
	}

	c.Detach()
	if got := metricValue(t, reg, "test_cell_attached", persistent); got != 0 {
		t.Errorf("attached after detach: expected 0, got %v", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.recordWrite(0)
	m.recordRevert(0, "parse")
	m.recordAdopt(0, sourcePoll)
	m.recordPoll()
	m.recordAttached(0, 1)
}
