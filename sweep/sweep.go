package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"xfer-bench/device"
)

// Policy selects how the size schedule is generated.
type Policy int

const (
	PolicyPiecewise  Policy = iota // staged-growth ladder, the default
	PolicyPowerOfTwo               // 2^k for k in [MinPower, MaxPower]
)

// Config holds the sweep configuration, immutable for the duration of a run.
type Config struct {
	Policy   Policy
	Ceiling  int // piecewise bound; DefaultCeiling when zero
	MinPower int // power-of-two low exponent, inclusive
	MaxPower int // power-of-two high exponent, inclusive
	Tries    int // trials per size
	Verify   bool
}

// Sizes resolves the size schedule for the configured policy.
func (c Config) Sizes() []int {
	switch c.Policy {
	case PolicyPowerOfTwo:
		return PowerOfTwoSizes(c.MinPower, c.MaxPower)
	default:
		bound := c.Ceiling
		if bound == 0 {
			bound = DefaultCeiling
		}
		return PiecewiseSizes(bound)
	}
}

// ConfigError reports an unusable sweep configuration. It surfaces before
// any trial runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "sweep config: " + e.Reason }

// Row is one reported table line: the aggregate of all trials for one phase
// at one size.
type Row struct {
	Iteration     int
	SizeBytes     int
	SizeMiB       float64
	MinMs         float64
	MaxMs         float64
	AvgMs         float64
	BandwidthMBps float64
}

// TrialRecord is the raw per-trial sample streamed to the trial sink.
type TrialRecord struct {
	TimestampMs int64   `parquet:"name=ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Iteration   int32   `parquet:"name=iteration, type=INT32"`
	Phase       string  `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8"`
	SizeBytes   int64   `parquet:"name=size_bytes, type=INT64"`
	DurationMs  float64 `parquet:"name=duration_ms, type=DOUBLE"`
	OK          bool    `parquet:"name=ok, type=BOOLEAN"`
	ErrMsg      string  `parquet:"name=err_msg, type=BYTE_ARRAY, convertedtype=UTF8"`
	Device      string  `parquet:"name=device, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ReportSink receives one aggregated row per phase per size.
type ReportSink interface {
	Emit(phase Phase, row Row)
}

// TrialSink receives every raw trial sample.
type TrialSink interface {
	Record(rec TrialRecord)
}

// Results holds the aggregated rows of a run, one table per phase.
type Results struct {
	Rows [NumPhases][]Row
}

// Sweep drives the benchmark: for each scheduled size it runs the
// configured number of trials through the transport, aggregates each
// phase's durations, and emits rows to the sinks. The whole sweep executes
// on the calling goroutine with at most one transfer outstanding; the only
// suspension point is the wait for a completion signal.
type Sweep struct {
	Config    Config
	Transport device.Transport
	Report    ReportSink    // optional
	Trials    TrialSink     // optional
	Progress  func(size int) // optional, called once per finished size
}

// Run executes the sweep. It stops early on a verification mismatch, a
// non-recoverable backend failure, or context cancellation between trials;
// the returned Results hold whatever was aggregated up to that point.
// Failed trials count toward the statistics as zero durations, since
// dropping them would bias the mean.
func (s *Sweep) Run(ctx context.Context) (*Results, error) {
	sizes := s.Config.Sizes()
	if len(sizes) == 0 {
		return nil, &ConfigError{Reason: "empty size schedule"}
	}
	if s.Config.Tries <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("trial count %d, want > 0", s.Config.Tries)}
	}

	r := &runner{xfer: s.Transport, verify: s.Config.Verify}
	res := &Results{}

	for iteration, size := range sizes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.Transport.Prepare(ctx, size); err != nil {
			if device.IsExhausted(err) {
				// Exhaustion is not necessarily monotonic in size
				// (remote backends throttle), so skip this size and
				// keep sweeping.
				log.Printf("Warning: skipping size %d: %v", size, err)
				s.tick(size)
				continue
			}
			return res, err
		}

		upload := make([]byte, size)
		download := make([]byte, size)
		for i := range upload {
			upload[i] = byte(iteration)
		}

		var samples [NumPhases][]time.Duration
		for t := 0; t < s.Config.Tries; t++ {
			if err := ctx.Err(); err != nil {
				s.Transport.Release()
				return res, err
			}
			outcomes, err := r.runTrial(ctx, iteration, size, upload, download)
			if err != nil {
				s.Transport.Release()
				return res, err
			}
			now := time.Now().UnixMilli()
			for p := PhaseUpload; p <= PhaseDownload; p++ {
				samples[p] = append(samples[p], outcomes[p].Duration)
				s.record(TrialRecord{
					TimestampMs: now,
					Iteration:   int32(iteration),
					Phase:       p.String(),
					SizeBytes:   int64(size),
					DurationMs:  outcomes[p].Duration.Seconds() * 1000,
					OK:          outcomes[p].ErrMsg == "",
					ErrMsg:      outcomes[p].ErrMsg,
					Device:      s.Transport.Label(),
				})
			}
		}
		s.Transport.Release()

		for p := PhaseUpload; p <= PhaseDownload; p++ {
			st := Reduce(samples[p])
			row := Row{
				Iteration:     iteration,
				SizeBytes:     size,
				SizeMiB:       float64(size) / (1024 * 1024),
				MinMs:         st.MinMs,
				MaxMs:         st.MaxMs,
				AvgMs:         st.MeanMs,
				BandwidthMBps: st.BandwidthMBps(size),
			}
			res.Rows[p] = append(res.Rows[p], row)
			s.emit(p, row)
		}
		s.tick(size)
	}
	return res, nil
}

func (s *Sweep) emit(p Phase, row Row) {
	if s.Report != nil {
		s.Report.Emit(p, row)
	}
}

func (s *Sweep) record(rec TrialRecord) {
	if s.Trials != nil {
		s.Trials.Record(rec)
	}
}

func (s *Sweep) tick(size int) {
	if s.Progress != nil {
		s.Progress(size)
	}
}
