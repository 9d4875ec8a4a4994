package storage

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"xfer-bench/sweep"
)

func TestExporterRecord(t *testing.T) {
	e := NewPrometheusExporter()

	e.Record(sweep.TrialRecord{Phase: "upload", OK: true, DurationMs: 5, SizeBytes: 1024})
	e.Record(sweep.TrialRecord{Phase: "upload", OK: true, DurationMs: 7, SizeBytes: 2048})
	e.Record(sweep.TrialRecord{Phase: "upload", OK: false, SizeBytes: 2048})

	if got := testutil.ToFloat64(e.trialsTotal.WithLabelValues("upload", "true")); got != 2 {
		t.Errorf("ok trials = %v, want 2", got)
	}
	if got := testutil.ToFloat64(e.trialsTotal.WithLabelValues("upload", "false")); got != 1 {
		t.Errorf("failed trials = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.currentSize); got != 2048 {
		t.Errorf("current size = %v, want 2048", got)
	}
}

func TestExporterEmitSkipsNonFinite(t *testing.T) {
	e := NewPrometheusExporter()

	e.Emit(sweep.PhaseUpload, sweep.Row{BandwidthMBps: math.Inf(1)})
	if got := testutil.ToFloat64(e.bandwidth.WithLabelValues("upload")); got != 0 {
		t.Errorf("infinite bandwidth leaked into the gauge: %v", got)
	}

	e.Emit(sweep.PhaseUpload, sweep.Row{BandwidthMBps: 123.5})
	if got := testutil.ToFloat64(e.bandwidth.WithLabelValues("upload")); got != 123.5 {
		t.Errorf("bandwidth gauge = %v, want 123.5", got)
	}
}

func TestExporterHostStats(t *testing.T) {
	e := NewPrometheusExporter()

	e.UpdateHostStats(42.5, 120.0, 61.0)
	if got := testutil.ToFloat64(e.cpuUtil); got != 42.5 {
		t.Errorf("cpu gauge = %v, want 42.5", got)
	}
	if got := testutil.ToFloat64(e.irqRate); got != 120.0 {
		t.Errorf("irq gauge = %v, want 120.0", got)
	}
	if got := testutil.ToFloat64(e.memUtil); got != 61.0 {
		t.Errorf("memory gauge = %v, want 61.0", got)
	}

	e.UpdateNetworkStats(12.0, 3.5)
	if got := testutil.ToFloat64(e.networkRate.WithLabelValues("rx")); got != 12.0 {
		t.Errorf("rx gauge = %v, want 12.0", got)
	}
	if got := testutil.ToFloat64(e.networkRate.WithLabelValues("tx")); got != 3.5 {
		t.Errorf("tx gauge = %v, want 3.5", got)
	}
}

func TestExportersDoNotCollide(t *testing.T) {
	// Each exporter owns its registry, so building two in one process must
	// not panic on duplicate registration.
	_ = NewPrometheusExporter()
	_ = NewPrometheusExporter()
}
