package device

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// CPU is an in-process backend. Device memory is a pair of heap slabs and
// the command queue is a single worker goroutine that executes copies in
// submission order, so the completion signal carries the same queuing
// latency a real device queue would.
type CPU struct {
	queue chan func()
	done  chan struct{}
	pool  *slabPool
	limit int64

	mu     sync.Mutex
	src    []byte
	dst    []byte
	closed bool
}

// NewCPU returns a CPU backend. limit caps the total device-side bytes held
// at once; 0 means unbounded.
func NewCPU(limit int64) *CPU {
	c := &CPU{
		queue: make(chan func(), 1),
		done:  make(chan struct{}),
		pool:  newSlabPool(),
		limit: limit,
	}
	go func() {
		for fn := range c.queue {
			fn()
		}
		close(c.done)
	}()
	return c
}

func (c *CPU) Label() string {
	return fmt.Sprintf("cpu (%s/%s, %d cores%s)", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), cpuFeatures())
}

// Prepare allocates the device-side source and destination slabs for one
// buffer size.
func (c *CPU) Prepare(ctx context.Context, size int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errorf("prepare", KindClosed, "device closed")
	}
	if size <= 0 {
		return errorf("prepare", KindInvalid, "size %d", size)
	}
	if c.limit > 0 && 2*int64(size) > c.limit {
		return errorf("prepare", KindExhausted, "size %d exceeds device capacity %d", size, c.limit)
	}
	c.releaseLocked()
	c.src = c.pool.get(size)
	c.dst = c.pool.get(size)
	return nil
}

// Begin enqueues one copy on the command queue and returns its completion
// handle. The copy direction decides which side of the device slabs is
// touched.
func (c *CPU) Begin(ctx context.Context, dir Direction, host []byte) (Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errorf("begin", KindClosed, "device closed")
	}
	if c.src == nil || c.dst == nil {
		return nil, errorf("begin", KindInvalid, "no device buffers, Prepare not called")
	}
	switch dir {
	case HostToDevice, DeviceToHost:
		if len(host) != len(c.src) {
			return nil, errorf("begin", KindInvalid, "%s host buffer is %d bytes, device holds %d", dir, len(host), len(c.src))
		}
	case DeviceToDevice:
	default:
		return nil, errorf("begin", KindInvalid, "unknown direction %d", int(dir))
	}

	p := newCompletion()
	src, dst := c.src, c.dst
	c.queue <- func() {
		switch dir {
		case HostToDevice:
			copy(src, host)
			p.resolve(nil, nil)
		case DeviceToDevice:
			copy(dst, src)
			p.resolve(nil, nil)
		case DeviceToHost:
			copy(host, dst)
			p.resolve(host, nil)
		}
	}
	return p, nil
}

// Release returns the current slabs to the pool.
func (c *CPU) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

func (c *CPU) releaseLocked() {
	c.pool.put(c.src)
	c.pool.put(c.dst)
	c.src, c.dst = nil, nil
}

// Close stops the command queue worker. Safe to call more than once.
func (c *CPU) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.releaseLocked()
	c.mu.Unlock()
	close(c.queue)
	<-c.done
	return nil
}

func cpuFeatures() string {
	var feats []string
	switch {
	case cpu.X86.HasAVX512F:
		feats = append(feats, "avx512")
	case cpu.X86.HasAVX2:
		feats = append(feats, "avx2")
	case cpu.X86.HasSSE42:
		feats = append(feats, "sse4.2")
	}
	if cpu.ARM64.HasASIMD {
		feats = append(feats, "asimd")
	}
	if len(feats) == 0 {
		return ""
	}
	return ", " + strings.Join(feats, " ")
}

// slabPool recycles device-side slabs across sweep sizes. Sizes grow
// monotonically during a sweep, so reuse only pays off when a backend is
// driven repeatedly, but the free list keeps the steady-state allocation
// count flat either way.
type slabPool struct {
	mu   sync.Mutex
	free [][]byte
	hits int
}

func newSlabPool() *slabPool {
	return &slabPool{}
}

// get returns a slab of exactly size bytes, reusing the smallest free slab
// with sufficient capacity.
func (p *slabPool) get(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	best := -1
	for i, b := range p.free {
		if cap(b) < size {
			continue
		}
		if best < 0 || cap(b) < cap(p.free[best]) {
			best = i
		}
	}
	if best >= 0 {
		b := p.free[best]
		p.free = append(p.free[:best], p.free[best+1:]...)
		p.hits++
		b = b[:size]
		for i := range b {
			b[i] = 0
		}
		return b
	}
	return make([]byte, size)
}

func (p *slabPool) put(b []byte) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, b[:cap(b)])
	p.mu.Unlock()
}
