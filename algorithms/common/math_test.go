package common

import (
	"math"
	"testing"
)

func TestMinMaxNormalize(t *testing.T) {
	got := MinMaxNormalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	for _, v := range MinMaxNormalize([]float64{3, 3, 3}) {
		if v != 0 {
			t.Fatalf("constant data should normalize to zeros")
		}
	}
	if len(MinMaxNormalize(nil)) != 0 {
		t.Fatalf("expected empty output")
	}
}

func TestFloorZero(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{5, 5}, {0, 0}, {-3, 0}, {math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := FloorZero(tt.in); got != tt.want {
			t.Fatalf("FloorZero(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAllFinite(t *testing.T) {
	if _, ok := AllFinite([]float64{0, 1, -1}); !ok {
		t.Fatalf("finite data reported as non-finite")
	}
	if idx, ok := AllFinite([]float64{0, math.Inf(-1), math.NaN()}); ok || idx != 1 {
		t.Fatalf("expected first offender at 1, got %d %v", idx, ok)
	}
}

func TestMeanColumns(t *testing.T) {
	got := MeanColumns([][]float64{{1, 2}, {3, 6}}, 2)
	if got[0] != 2 || got[1] != 4 {
		t.Fatalf("got %v", got)
	}
	if got := MeanColumns(nil, 3); len(got) != 3 || got[0] != 0 {
		t.Fatalf("expected zero vector, got %v", got)
	}
}
