package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"xfer-bench/device"
	"xfer-bench/hostmon"
	"xfer-bench/storage"
	"xfer-bench/sweep"
)

var (
	endPower       = flag.Int("n", 25, "Largest exponent for the pow2 size schedule")
	tries          = flag.Int("tries", 50, "Trials per size")
	verify         = flag.Bool("verify", false, "Verify downloaded data after each trial")
	sizePolicy     = flag.String("sizes", "default", "Size schedule policy: default or pow2")
	maxBytes       = flag.Int("max-bytes", sweep.DefaultCeiling, "Size ceiling for the default schedule")
	backend        = flag.String("device", "cpu", "Transfer backend: cpu, s3 or r2")
	region         = flag.String("region", "us-east-1", "AWS region for the s3 backend")
	bucketName     = flag.String("bucket", "", "Bucket name for the s3 and r2 backends")
	objectKey      = flag.String("object", "xfer-bench", "Object key prefix for the s3 and r2 backends")
	outputDir      = flag.String("output", "./output", "Output directory for parquet trial records (empty disables)")
	prometheusAddr = flag.String("prometheus-addr", ":9100", "Prometheus metrics server address (empty disables)")
	logFile        = flag.String("log-file", "", "Also write log output to this file")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	cfg, err := sweepConfig()
	if err != nil {
		log.Fatal(err)
	}
	sizes := cfg.Sizes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	xfer, err := newTransport(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize transfer backend: %v", err)
	}
	defer xfer.Close()

	log.Printf("Using device: %s", xfer.Label())
	log.Printf("Sweeping %d sizes, %d tries per size, verify=%v", len(sizes), cfg.Tries, cfg.Verify)

	tables := &phaseTables{}
	reportSinks := multiReportSink{tables}
	var trialSinks multiTrialSink

	if *outputDir != "" {
		pq, err := storage.NewParquetWriter(*outputDir, 1000)
		if err != nil {
			log.Fatalf("Failed to create parquet writer: %v", err)
		}
		defer func() {
			if err := pq.Close(); err != nil {
				log.Printf("Error closing parquet file: %v", err)
				return
			}
			log.Printf("Raw trial records written to %s", pq.GetFilePath())
		}()
		trialSinks = append(trialSinks, pq)
	}

	g, gctx := errgroup.WithContext(ctx)
	if *prometheusAddr != "" {
		exporter := storage.NewPrometheusExporter()
		reportSinks = append(reportSinks, exporter)
		trialSinks = append(trialSinks, exporter)

		g.Go(func() error {
			log.Printf("Starting Prometheus server on %s", *prometheusAddr)
			return exporter.Serve(gctx, *prometheusAddr)
		})

		if mon, err := hostmon.New(10 * time.Second); err != nil {
			log.Printf("Warning: host monitor unavailable: %v", err)
		} else {
			g.Go(func() error {
				mon.Run(gctx, func(s hostmon.SystemStats) {
					exporter.UpdateHostStats(s.CPUUtilization, s.IRQRate, s.MemoryUsage)
					exporter.UpdateNetworkStats(s.RxMBps, s.TxMBps)
				})
				return nil
			})
		}
	}

	// Stops between trials; a mid-trial transfer is never interrupted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Received shutdown signal, stopping benchmark...")
		cancel()
	}()

	bar := progressbar.Default(int64(len(sizes)), "sweep")
	run := &sweep.Sweep{
		Config:    cfg,
		Transport: xfer,
		Report:    reportSinks,
		Trials:    trialSinks,
		Progress:  func(int) { bar.Add(1) },
	}

	res, err := run.Run(ctx)
	bar.Finish()
	cancel()
	if werr := g.Wait(); werr != nil {
		log.Printf("Warning: metrics server error: %v", werr)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Printf("Benchmark stopped early, reporting %d completed sizes", len(res.Rows[sweep.PhaseUpload]))
	default:
		log.Fatalf("Benchmark failed: %v", err)
	}

	tables.Print(os.Stdout)
	log.Printf("Benchmark completed successfully")
}

func sweepConfig() (sweep.Config, error) {
	cfg := sweep.Config{
		Tries:  *tries,
		Verify: *verify,
	}
	switch *sizePolicy {
	case "default":
		cfg.Policy = sweep.PolicyPiecewise
		cfg.Ceiling = *maxBytes
	case "pow2":
		cfg.Policy = sweep.PolicyPowerOfTwo
		cfg.MinPower = 2
		cfg.MaxPower = *endPower
	default:
		return sweep.Config{}, fmt.Errorf("unknown size policy %q (want default or pow2)", *sizePolicy)
	}
	return cfg, nil
}

func newTransport(ctx context.Context) (device.Transport, error) {
	switch *backend {
	case "cpu":
		return device.NewCPU(0), nil
	case "s3":
		if *bucketName == "" {
			return nil, fmt.Errorf("bucket name is required for the s3 backend")
		}
		return device.NewS3(ctx, *region, *bucketName, *objectKey)
	case "r2":
		if *bucketName == "" {
			return nil, fmt.Errorf("bucket name is required for the r2 backend")
		}
		accountID := os.Getenv("R2_ACCOUNT_ID")
		accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
		secretAccessKey := os.Getenv("R2_SECRET_ACCESS_KEY")
		if accountID == "" || accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("R2 credentials not found in environment variables")
		}
		return device.NewR2(ctx, accountID, accessKeyID, secretAccessKey, *bucketName, *objectKey)
	}
	return nil, fmt.Errorf("unknown device %q (want cpu, s3 or r2)", *backend)
}

// multiReportSink fans aggregated rows out to every attached sink.
type multiReportSink []sweep.ReportSink

func (m multiReportSink) Emit(p sweep.Phase, row sweep.Row) {
	for _, s := range m {
		s.Emit(p, row)
	}
}

// multiTrialSink fans raw trial records out to every attached sink.
type multiTrialSink []sweep.TrialSink

func (m multiTrialSink) Record(rec sweep.TrialRecord) {
	for _, s := range m {
		s.Record(rec)
	}
}
