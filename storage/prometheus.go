package storage

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xfer-bench/sweep"
)

// PrometheusExporter publishes trial metrics for scraping. It implements
// both sweep sinks: raw trials feed the counters and histograms, aggregated
// rows feed the bandwidth gauge.
type PrometheusExporter struct {
	registry     *prometheus.Registry
	trialsTotal  *prometheus.CounterVec
	trialLatency *prometheus.HistogramVec
	bandwidth    *prometheus.GaugeVec
	currentSize  prometheus.Gauge
	cpuUtil      prometheus.Gauge
	irqRate      prometheus.Gauge
	memUtil      prometheus.Gauge
	networkRate  *prometheus.GaugeVec
}

// NewPrometheusExporter builds the exporter on its own registry, so
// repeated construction in one process never collides.
func NewPrometheusExporter() *PrometheusExporter {
	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		trialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xfer_bench_trials_total",
			Help: "Total number of trials",
		}, []string{"phase", "ok"}),
		trialLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xfer_bench_trial_latency_ms",
			Help:    "Trial latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 16), // 1us to ~18min
		}, []string{"phase"}),
		bandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xfer_bench_bandwidth_mbps",
			Help: "Bandwidth of the last aggregated size in MB/s",
		}, []string{"phase"}),
		currentSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xfer_bench_current_size_bytes",
			Help: "Buffer size currently under measurement",
		}),
		cpuUtil: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xfer_bench_cpu_utilization",
			Help: "CPU utilization percentage",
		}),
		irqRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xfer_bench_irq_rate",
			Help: "Host interrupts per second",
		}),
		memUtil: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xfer_bench_memory_usage",
			Help: "Memory usage percentage",
		}),
		networkRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xfer_bench_network_rate_mbps",
			Help: "Host network rate in MB/s",
		}, []string{"direction"}),
	}
	e.registry.MustRegister(
		e.trialsTotal,
		e.trialLatency,
		e.bandwidth,
		e.currentSize,
		e.cpuUtil,
		e.irqRate,
		e.memUtil,
		e.networkRate,
	)
	return e
}

// Record implements sweep.TrialSink.
func (e *PrometheusExporter) Record(rec sweep.TrialRecord) {
	ok := "true"
	if !rec.OK {
		ok = "false"
	}
	e.trialsTotal.WithLabelValues(rec.Phase, ok).Inc()
	if rec.OK {
		e.trialLatency.WithLabelValues(rec.Phase).Observe(rec.DurationMs)
	}
	e.currentSize.Set(float64(rec.SizeBytes))
}

// Emit implements sweep.ReportSink.
func (e *PrometheusExporter) Emit(phase sweep.Phase, row sweep.Row) {
	if math.IsInf(row.BandwidthMBps, 0) || math.IsNaN(row.BandwidthMBps) {
		return
	}
	e.bandwidth.WithLabelValues(phase.String()).Set(row.BandwidthMBps)
}

// UpdateHostStats records one host monitor sample.
func (e *PrometheusExporter) UpdateHostStats(cpuPct, irqRate, memPct float64) {
	e.cpuUtil.Set(cpuPct)
	e.irqRate.Set(irqRate)
	e.memUtil.Set(memPct)
}

// UpdateNetworkStats records host network rates.
func (e *PrometheusExporter) UpdateNetworkStats(rxMBps, txMBps float64) {
	e.networkRate.WithLabelValues("rx").Set(rxMBps)
	e.networkRate.WithLabelValues("tx").Set(txMBps)
}

// Serve exposes /metrics on addr until ctx is canceled.
func (e *PrometheusExporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
