// Package hostmon samples host CPU, memory and network utilization during a
// run so the exporter can correlate transfer numbers with host load.
package hostmon

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
)

// SystemStats holds one sample of host-level utilization.
type SystemStats struct {
	CPUUtilization float64 // percent, non-idle share since the previous sample
	IRQRate        float64 // interrupts per second since the previous sample
	MemoryUsage    float64 // percent of memory in use
	RxMBps         float64
	TxMBps         float64
	Timestamp      time.Time
}

// Monitor samples the host from procfs on a fixed interval.
type Monitor struct {
	fs       procfs.FS
	interval time.Duration
	prev     procfs.CPUStat
	prevIRQ  uint64
	prevRx   uint64
	prevTx   uint64
	prevAt   time.Time
	primed   bool
}

// New returns a Monitor, or an error where procfs is unavailable.
func New(interval time.Duration) (*Monitor, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Monitor{fs: fs, interval: interval}, nil
}

// Run samples until ctx is canceled, delivering each sample to fn. The
// first tick only primes the counters, so fn sees deltas.
func (m *Monitor) Run(ctx context.Context, fn func(SystemStats)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-ticker.C:
			s, ok := m.sample()
			if !ok {
				continue
			}
			s.Timestamp = ts
			fn(s)
		}
	}
}

func (m *Monitor) sample() (SystemStats, bool) {
	stat, err := m.fs.Stat()
	if err != nil {
		return SystemStats{}, false
	}
	now := time.Now()
	cur := stat.CPUTotal
	rx, tx := m.netTotals()

	if !m.primed {
		m.prev = cur
		m.prevIRQ = stat.IRQTotal
		m.prevRx, m.prevTx = rx, tx
		m.prevAt = now
		m.primed = true
		return SystemStats{}, false
	}

	elapsed := now.Sub(m.prevAt)
	out := SystemStats{
		CPUUtilization: cpuPercent(m.prev, cur),
		IRQRate:        ratePerSec(m.prevIRQ, stat.IRQTotal, elapsed),
		RxMBps:         rateMBps(m.prevRx, rx, elapsed),
		TxMBps:         rateMBps(m.prevTx, tx, elapsed),
	}
	m.prev = cur
	m.prevIRQ = stat.IRQTotal
	m.prevRx, m.prevTx = rx, tx
	m.prevAt = now

	if mem, err := m.fs.Meminfo(); err == nil {
		out.MemoryUsage = memPercent(mem)
	}
	return out, true
}

// netTotals sums traffic over all interfaces except loopback.
func (m *Monitor) netTotals() (rx, tx uint64) {
	dev, err := m.fs.NetDev()
	if err != nil {
		return 0, 0
	}
	for name, line := range dev {
		if name == "lo" {
			continue
		}
		rx += line.RxBytes
		tx += line.TxBytes
	}
	return rx, tx
}

// cpuPercent computes the non-idle share of CPU time elapsed between two
// cumulative readings.
func cpuPercent(prev, cur procfs.CPUStat) float64 {
	idle := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	total := cpuTotal(cur) - cpuTotal(prev)
	if total <= 0 {
		return 0
	}
	return 100 * (1 - idle/total)
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

func memPercent(mem procfs.Meminfo) float64 {
	if mem.MemTotal == nil || mem.MemAvailable == nil || *mem.MemTotal == 0 {
		return 0
	}
	return 100 * (1 - float64(*mem.MemAvailable)/float64(*mem.MemTotal))
}

// ratePerSec turns two cumulative counter readings into a per-second rate.
// A counter reset reads as zero.
func ratePerSec(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev || elapsed <= 0 {
		return 0
	}
	return float64(cur-prev) / elapsed.Seconds()
}

func rateMBps(prev, cur uint64, elapsed time.Duration) float64 {
	return ratePerSec(prev, cur, elapsed) / (1024 * 1024)
}
