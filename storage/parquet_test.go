package storage

import (
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"xfer-bench/sweep"
)

func TestParquetWriteReadCycle(t *testing.T) {
	dir := t.TempDir()
	w, err := NewParquetWriter(dir, 10)
	if err != nil {
		t.Fatalf("NewParquetWriter: %v", err)
	}

	now := time.Now().UnixMilli()
	for i := 0; i < 25; i++ {
		rec := sweep.TrialRecord{
			TimestampMs: now,
			Iteration:   int32(i),
			Phase:       "upload",
			SizeBytes:   1024,
			DurationMs:  float64(i) / 2,
			OK:          true,
			Device:      "stub",
		}
		if i == 7 {
			rec.OK = false
			rec.ErrMsg = "queue stall"
		}
		w.Record(rec)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fr, err := local.NewLocalFileReader(w.GetFilePath())
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(sweep.TrialRecord), 2)
	if err != nil {
		t.Fatalf("NewParquetReader: %v", err)
	}
	defer pr.ReadStop()

	if n := pr.GetNumRows(); n != 25 {
		t.Fatalf("file holds %d rows, want 25", n)
	}
	recs := make([]sweep.TrialRecord, 25)
	if err := pr.Read(&recs); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if recs[3].Iteration != 3 || recs[3].Phase != "upload" || recs[3].SizeBytes != 1024 {
		t.Errorf("row 3 = %+v, round trip mangled fields", recs[3])
	}
	if recs[7].OK || recs[7].ErrMsg != "queue stall" {
		t.Errorf("row 7 = %+v, lost its failure flag or message", recs[7])
	}
}
