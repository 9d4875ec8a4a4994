package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"xfer-bench/device"
)

// Phase identifies one leg of a transfer trial. Phases always run in
// declaration order within a trial.
type Phase int

const (
	PhaseUpload   Phase = iota // host to device
	PhaseTransfer              // device to device
	PhaseDownload              // device to host
)

// NumPhases is the number of phases measured per trial.
const NumPhases = 3

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseTransfer:
		return "transfer"
	case PhaseDownload:
		return "download"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Direction maps the phase onto the transport direction.
func (p Phase) Direction() device.Direction {
	switch p {
	case PhaseUpload:
		return device.HostToDevice
	case PhaseTransfer:
		return device.DeviceToDevice
	default:
		return device.DeviceToHost
	}
}

// VerifyError reports a checksum mismatch on downloaded data. It is fatal:
// the transferred bytes are wrong, so the measurement is untrustworthy.
type VerifyError struct {
	Phase     Phase
	Size      int
	Iteration int
	Got       uint64
	Want      uint64
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed after %s at size %d (iteration %d): byte sum %d, want %d",
		e.Phase, e.Size, e.Iteration, e.Got, e.Want)
}

// runner executes timed trials against one transport.
type runner struct {
	xfer   device.Transport
	verify bool
}

// phaseResult is one phase's measurement within a trial. A failed phase
// carries a zero Duration and the failure message.
type phaseResult struct {
	Duration time.Duration
	ErrMsg   string
}

// runTrial executes the three phases in order at one size. Each phase's
// timer starts right before the asynchronous submission and stops when the
// completion signal is observed, so the measured duration covers submission
// through confirmed completion. Buffer preparation never falls inside the
// timed interval. A failed completion leaves that phase's duration at zero
// and the trial goes on; only a verification mismatch aborts.
func (r *runner) runTrial(ctx context.Context, iteration, size int, upload, download []byte) ([NumPhases]phaseResult, error) {
	var outcomes [NumPhases]phaseResult
	downloaded := false

	for p := PhaseUpload; p <= PhaseDownload; p++ {
		var host []byte
		switch p {
		case PhaseUpload:
			host = upload
		case PhaseDownload:
			host = download
		}

		start := time.Now()
		pending, err := r.xfer.Begin(ctx, p.Direction(), host)
		if err == nil {
			_, err = pending.Await()
		}
		elapsed := time.Since(start)

		if err != nil {
			log.Printf("Warning: %s failed at size %d: %v", p, size, err)
			outcomes[p].ErrMsg = err.Error()
			continue
		}
		outcomes[p].Duration = elapsed
		if p == PhaseDownload {
			downloaded = true
		}
	}

	if r.verify && downloaded {
		if err := verifyPattern(download, iteration); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// verifyPattern checks a downloaded buffer against the fill pattern for this
// iteration. The upload buffer was filled with byte(iteration), so the sum
// of the downloaded bytes must equal byte(iteration) * len.
func verifyPattern(buf []byte, iteration int) error {
	var sum uint64
	for _, b := range buf {
		sum += uint64(b)
	}
	want := uint64(byte(iteration)) * uint64(len(buf))
	if sum != want {
		return &VerifyError{
			Phase:     PhaseDownload,
			Size:      len(buf),
			Iteration: iteration,
			Got:       sum,
			Want:      want,
		}
	}
	return nil
}
