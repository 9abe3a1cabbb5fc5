package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordersAreNoOpsBeforeEnable(t *testing.T) {
	// No Enable call in this test binary path yet; recorders must not panic.
	RecordMirrorOperation("repo", "success")
	RecordEviction("repo")
	RecordRetry("repo")
	ObserveSubmoduleFetchDuration("repo", time.Now())
	RecordCacheHit()
	RecordCacheMiss()
}

func TestEnableRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	Enable("git_fastclone_test", reg)

	RecordMirrorOperation("git.com-org-proj.git", "success")
	RecordCacheHit()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var sawOps, sawHits bool
	for _, fam := range families {
		switch fam.GetName() {
		case "git_fastclone_test_mirror_operations_total":
			sawOps = true
			if got := totalCounterValue(fam); got != 1 {
				t.Errorf("mirror_operations_total = %v, want 1", got)
			}
		case "git_fastclone_test_cache_hit_total":
			sawHits = true
			if got := totalCounterValue(fam); got != 1 {
				t.Errorf("cache_hit_total = %v, want 1", got)
			}
		}
	}
	if !sawOps || !sawHits {
		t.Fatalf("expected both mirror_operations_total and cache_hit_total to be registered, got families=%v", families)
	}
}

func totalCounterValue(fam *dto.MetricFamily) float64 {
	var total float64
	for _, m := range fam.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}
