package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJobStartEnd(t *testing.T) {
	jobsActive.Set(0)
	jobsTotal.Reset()
	jobDuration.Reset()

	RecordJobStart()
	RecordJobStart()
	if active := testutil.ToFloat64(jobsActive); active != 2 {
		t.Errorf("jobsActive = %f, want 2", active)
	}

	RecordJobEnd(StatusDone, 3*time.Second)
	RecordJobEnd(StatusFailed, time.Second)
	if active := testutil.ToFloat64(jobsActive); active != 0 {
		t.Errorf("jobsActive after ends = %f, want 0", active)
	}
	if done := testutil.ToFloat64(jobsTotal.WithLabelValues(StatusDone)); done != 1 {
		t.Errorf("jobsTotal{done} = %f, want 1", done)
	}
	if failed := testutil.ToFloat64(jobsTotal.WithLabelValues(StatusFailed)); failed != 1 {
		t.Errorf("jobsTotal{failed} = %f, want 1", failed)
	}
	if count := testutil.CollectAndCount(jobDuration); count == 0 {
		t.Error("jobDuration recorded no observations")
	}
}

func TestRecordStageEvent(t *testing.T) {
	stageEvents.Reset()

	RecordStageEvent("story")
	RecordStageEvent("story")
	RecordStageEvent("render")

	if got := testutil.ToFloat64(stageEvents.WithLabelValues("story")); got != 2 {
		t.Errorf("stageEvents{story} = %f, want 2", got)
	}
	if got := testutil.ToFloat64(stageEvents.WithLabelValues("render")); got != 1 {
		t.Errorf("stageEvents{render} = %f, want 1", got)
	}
}

func TestRecordCacheBytes(t *testing.T) {
	cacheBytes.Reset()

	RecordCacheBytes(1024, 4096)

	if got := testutil.ToFloat64(cacheBytes.WithLabelValues("memory")); got != 1024 {
		t.Errorf("cacheBytes{memory} = %f, want 1024", got)
	}
	if got := testutil.ToFloat64(cacheBytes.WithLabelValues("disk")); got != 4096 {
		t.Errorf("cacheBytes{disk} = %f, want 4096", got)
	}

	// Gauges track the latest sizes, not a running total.
	RecordCacheBytes(0, 2048)
	if got := testutil.ToFloat64(cacheBytes.WithLabelValues("memory")); got != 0 {
		t.Errorf("cacheBytes{memory} after shrink = %f, want 0", got)
	}
}
