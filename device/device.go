// Package device provides the transfer backends the benchmark drives.
//
// A backend implements the narrow Transport contract: prepare per-size
// resources, begin an asynchronous transfer in one of three directions, and
// deliver the completion signal through a Pending handle. Nothing
// backend-specific leaks past this surface.
package device

import (
	"context"
	"errors"
	"fmt"
)

// Direction identifies one leg of a transfer.
type Direction int

const (
	HostToDevice Direction = iota
	DeviceToDevice
	DeviceToHost
)

func (d Direction) String() string {
	switch d {
	case HostToDevice:
		return "host-to-device"
	case DeviceToDevice:
		return "device-to-device"
	case DeviceToHost:
		return "device-to-host"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Pending is the completion signal for one in-flight transfer. Await blocks
// until the backend resolves the operation and returns the downloaded bytes
// for DeviceToHost, nil otherwise. There is no timeout: a hung backend
// stalls the caller, so bounded runs need an external deadline around the
// whole sweep.
type Pending interface {
	Await() ([]byte, error)
}

// Transport is the transfer capability consumed by the benchmark core.
//
// Prepare acquires destination resources for one buffer size; its cost is
// never part of a timed interval. Begin submits a transfer asynchronously
// and must not block on the transfer itself. The host buffer is the source
// for HostToDevice, the destination for DeviceToHost, and ignored for
// DeviceToDevice. Callers submit at most one transfer at a time and observe
// its completion before the next Begin.
type Transport interface {
	Label() string
	Prepare(ctx context.Context, size int) error
	Begin(ctx context.Context, dir Direction, host []byte) (Pending, error)
	Release()
	Close() error
}

// completion resolves a Pending through a one-shot channel.
type completion struct {
	ch chan outcome
}

type outcome struct {
	data []byte
	err  error
}

func newCompletion() *completion {
	return &completion{ch: make(chan outcome, 1)}
}

func (c *completion) resolve(data []byte, err error) {
	c.ch <- outcome{data: data, err: err}
}

func (c *completion) Await() ([]byte, error) {
	o := <-c.ch
	return o.data, o.err
}

// Kind classifies backend errors.
type Kind int

const (
	KindInternal Kind = iota
	KindExhausted
	KindInvalid
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindExhausted:
		return "exhausted"
	case KindInvalid:
		return "invalid"
	case KindClosed:
		return "closed"
	}
	return "internal"
}

// Error is the error type returned by transfer backends.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("device: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(op string, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsExhausted reports whether err marks a resource-exhaustion failure, the
// one backend condition the sweep recovers from per size.
func IsExhausted(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == KindExhausted
}
