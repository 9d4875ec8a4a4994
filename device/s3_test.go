package device

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestS3BeginValidation(t *testing.T) {
	// Validation happens before any request is issued, so no client is
	// needed.
	d := &S3{bucketName: "b", stageKey: "k-stage", copyKey: "k-copy"}
	ctx := context.Background()

	if _, err := d.Begin(ctx, HostToDevice, nil); err == nil {
		t.Fatal("upload without a host buffer accepted")
	}
	if _, err := d.Begin(ctx, DeviceToHost, nil); err == nil {
		t.Fatal("download without a host buffer accepted")
	}
	_, err := d.Begin(ctx, Direction(42), nil)
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindInvalid {
		t.Fatalf("unknown direction: err = %v, want KindInvalid", err)
	}
}

func TestNewR2Layout(t *testing.T) {
	d, err := NewR2(context.Background(), "acct", "key", "secret", "bench-bucket", "bench")
	if err != nil {
		t.Fatalf("NewR2: %v", err)
	}
	if want := "https://acct.r2.cloudflarestorage.com"; d.GetEndpoint() != want {
		t.Errorf("endpoint = %q, want %q", d.GetEndpoint(), want)
	}
	if d.stageKey != "bench-stage" || d.copyKey != "bench-copy" {
		t.Errorf("keys = %q/%q, want prefix-derived stage and copy keys", d.stageKey, d.copyKey)
	}
	if label := d.Label(); !strings.Contains(label, "bench-bucket") {
		t.Errorf("label = %q, want bucket name", label)
	}
}
