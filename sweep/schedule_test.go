package sweep

import (
	"reflect"
	"testing"
)

func TestPiecewiseSizesBound25000(t *testing.T) {
	var want []int
	for s := 1024; s <= 20480; s += 1024 {
		want = append(want, s)
	}
	want = append(want, 22528, 24576)

	got := PiecewiseSizes(25000)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PiecewiseSizes(25000) = %v, want %v", got, want)
	}
}

func TestPiecewiseSizesStrictlyIncreasingWithinBound(t *testing.T) {
	bounds := []int{1024, 4096, 25000, 51200, 102400, 1126400, 16855040, DefaultCeiling}
	for _, bound := range bounds {
		sizes := PiecewiseSizes(bound)
		if len(sizes) == 0 {
			t.Fatalf("bound %d: empty schedule", bound)
		}
		if sizes[0] != MinSize {
			t.Errorf("bound %d: first size = %d, want %d", bound, sizes[0], MinSize)
		}
		for i, s := range sizes {
			if s > bound {
				t.Errorf("bound %d: size %d exceeds bound", bound, s)
			}
			if i > 0 && s <= sizes[i-1] {
				t.Errorf("bound %d: sizes[%d] = %d not greater than sizes[%d] = %d", bound, i, s, i-1, sizes[i-1])
			}
		}
	}
}

func TestPiecewiseSizesSmallBound(t *testing.T) {
	if got := PiecewiseSizes(MinSize - 1); got != nil {
		t.Errorf("PiecewiseSizes(%d) = %v, want nil", MinSize-1, got)
	}
	if got := PiecewiseSizes(0); got != nil {
		t.Errorf("PiecewiseSizes(0) = %v, want nil", got)
	}
	got := PiecewiseSizes(MinSize)
	if len(got) != 1 || got[0] != MinSize {
		t.Errorf("PiecewiseSizes(%d) = %v, want [%d]", MinSize, got, MinSize)
	}
}

func TestPiecewiseSizesDeterministic(t *testing.T) {
	a := PiecewiseSizes(DefaultCeiling)
	b := PiecewiseSizes(DefaultCeiling)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two generations of the same schedule differ")
	}
}

func TestPowerOfTwoSizes(t *testing.T) {
	tests := []struct {
		min, max int
		want     []int
	}{
		{2, 4, []int{4, 8, 16}},
		{0, 0, []int{1}},
		{2, 2, []int{4}},
		{10, 12, []int{1024, 2048, 4096}},
		{5, 4, nil},
	}
	for _, tt := range tests {
		got := PowerOfTwoSizes(tt.min, tt.max)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PowerOfTwoSizes(%d, %d) = %v, want %v", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestPowerOfTwoSizesClampsLargeExponents(t *testing.T) {
	sizes := PowerOfTwoSizes(2, 200)
	if want := MaxSizePower - 1; len(sizes) != want {
		t.Fatalf("clamped schedule has %d sizes, want %d", len(sizes), want)
	}
	for i, s := range sizes {
		if s <= 0 {
			t.Fatalf("sizes[%d] = %d, not positive", i, s)
		}
		if i > 0 && s <= sizes[i-1] {
			t.Fatalf("sizes[%d] = %d not greater than sizes[%d] = %d", i, s, i-1, sizes[i-1])
		}
	}
	if last := sizes[len(sizes)-1]; last != 1<<MaxSizePower {
		t.Errorf("largest size = %d, want 2^%d", last, MaxSizePower)
	}
}

func TestConfigSizes(t *testing.T) {
	pow2 := Config{Policy: PolicyPowerOfTwo, MinPower: 2, MaxPower: 4}
	if got, want := pow2.Sizes(), []int{4, 8, 16}; !reflect.DeepEqual(got, want) {
		t.Errorf("pow2 config sizes = %v, want %v", got, want)
	}

	def := Config{Policy: PolicyPiecewise, Ceiling: 25000}
	got := def.Sizes()
	if len(got) != 22 {
		t.Errorf("piecewise config with ceiling 25000 produced %d sizes, want 22", len(got))
	}

	unbounded := Config{Policy: PolicyPiecewise}
	sizes := unbounded.Sizes()
	if last := sizes[len(sizes)-1]; last > DefaultCeiling {
		t.Errorf("default schedule ends at %d, above ceiling %d", last, DefaultCeiling)
	}
}
