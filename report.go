package main

import (
	"fmt"
	"io"

	"xfer-bench/sweep"
)

// phaseTables collects aggregated rows and renders one table per phase at
// the end of the run.
type phaseTables struct {
	rows [sweep.NumPhases][]sweep.Row
}

var phaseTitles = [sweep.NumPhases]string{
	"host to device (upload)",
	"device to device (copy)",
	"device to host (download)",
}

// Emit implements sweep.ReportSink.
func (t *phaseTables) Emit(phase sweep.Phase, row sweep.Row) {
	t.rows[phase] = append(t.rows[phase], row)
}

func (t *phaseTables) Print(w io.Writer) {
	for p := sweep.PhaseUpload; p <= sweep.PhaseDownload; p++ {
		fmt.Fprintf(w, "\n%s\n", phaseTitles[p])
		fmt.Fprintf(w, "%-10s %16s %14s %14s %14s %14s %17s\n",
			"Iteration", "Datasize (bytes)", "Datasize (MB)", "min Time (ms)", "max (ms)", "avg Time (ms)", "Bandwidth (MB/s)")
		for _, r := range t.rows[p] {
			fmt.Fprintf(w, "%-10d %16d %14.6f %14.6f %14.6f %14.6f %17.2f\n",
				r.Iteration, r.SizeBytes, r.SizeMiB, r.MinMs, r.MaxMs, r.AvgMs, r.BandwidthMBps)
		}
	}
}
