package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定メトリクスのラベル一致する値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
					break
				}
			}
			if matched {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordFetchSuccess_IncrementsCounter はフェッチ成功カウンタが
// プラットフォームラベル付きで増加することを検証する。
func TestRecordFetchSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess("codeforces")
	c.RecordFetchSuccess("codeforces")
	c.RecordFetchSuccess("github")

	val := counterValue(t, reg, "statly_fetch_success_total", map[string]string{"platform": "codeforces"})
	if val != 2 {
		t.Errorf("fetch_success_total{codeforces} = %v, want 2", val)
	}
}

// TestRecordFetchFailure_IncrementsCounter はフェッチ失敗カウンタが増加することを検証する。
func TestRecordFetchFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchFailure("codechef")

	val := counterValue(t, reg, "statly_fetch_fail_total", map[string]string{"platform": "codechef"})
	if val != 1 {
		t.Errorf("fetch_fail_total{codechef} = %v, want 1", val)
	}
}

// TestRecordVerification_IncrementsCounterWithResultLabel は検証カウンタが
// 結果ラベル別に増加することを検証する。
func TestRecordVerification_IncrementsCounterWithResultLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerification("github", VerificationResultSuccess)
	c.RecordVerification("github", VerificationResultMismatch)
	c.RecordVerification("github", VerificationResultMismatch)

	success := counterValue(t, reg, "statly_verification_total",
		map[string]string{"platform": "github", "result": "success"})
	if success != 1 {
		t.Errorf("verification_total{success} = %v, want 1", success)
	}

	mismatch := counterValue(t, reg, "statly_verification_total",
		map[string]string{"platform": "github", "result": "mismatch"})
	if mismatch != 2 {
		t.Errorf("verification_total{mismatch} = %v, want 2", mismatch)
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシヒストグラムが記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency(150 * time.Millisecond)
	c.RecordUpstreamLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "statly_upstream_latency_seconds" {
			found = true
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 2 {
				t.Errorf("histogram sample count = %d, want 2", count)
			}
		}
	}
	if !found {
		t.Error("statly_upstream_latency_seconds metric not found")
	}
}
