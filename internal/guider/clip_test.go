package guider

import (
	"math"
	"testing"
)

func TestClipByValueNilSigmaKeepsAll(t *testing.T) {
	values := []float64{1, 2, 3, 1000, math.NaN()}
	keep := ClipByValue(values, nil)
	if len(keep) != len(values) {
		t.Fatalf("mask length = %d, want %d", len(keep), len(values))
	}
	for i, k := range keep {
		if !k {
			t.Errorf("keep[%d] = false with nil sigma", i)
		}
	}
}

func TestClipByValueTinySamples(t *testing.T) {
	for _, values := range [][]float64{nil, {42}} {
		keep := ClipByValue(values, Sigma(2.5))
		if len(keep) != len(values) {
			t.Fatalf("mask length = %d, want %d", len(keep), len(values))
		}
		for i, k := range keep {
			if !k {
				t.Errorf("keep[%d] = false for sample of size %d", i, len(values))
			}
		}
	}
}

func TestClipByValueRejectsOutlier(t *testing.T) {
	values := []float64{10, 10.1, 9.9, 10.05, 9.95, 10, 500}
	keep := ClipByValue(values, Sigma(2.5))
	if keep[len(keep)-1] {
		t.Error("outlier 500 survived clipping")
	}
	for i := 0; i < len(keep)-1; i++ {
		if !keep[i] {
			t.Errorf("inlier values[%d]=%v rejected", i, values[i])
		}
	}
}

func TestClipByValueDropsNonFinite(t *testing.T) {
	values := []float64{1, 2, math.NaN(), 3, math.Inf(1), 2}
	keep := ClipByValue(values, Sigma(3))
	if keep[2] || keep[4] {
		t.Error("non-finite value kept")
	}
}

func TestClipByDistanceRejectsOutlierPoint(t *testing.T) {
	points := []Point{
		{10, 10}, {10.1, 9.9}, {9.9, 10.1}, {10, 10.05}, {10.05, 10},
		{80, 80},
	}
	keep := ClipByDistance(points, Sigma(2.5))
	if keep[5] {
		t.Error("outlier point survived distance clipping")
	}
	for i := 0; i < 5; i++ {
		if !keep[i] {
			t.Errorf("inlier point %d rejected", i)
		}
	}
}

func TestClipByDistanceNilSigmaAndTinySamples(t *testing.T) {
	points := []Point{{0, 0}, {100, 100}}
	for i, k := range ClipByDistance(points, nil) {
		if !k {
			t.Errorf("keep[%d] = false with nil sigma", i)
		}
	}
	one := []Point{{math.NaN(), 3}}
	if keep := ClipByDistance(one, Sigma(2)); !keep[0] {
		t.Error("single point rejected")
	}
}

func TestMedian(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7}, 7},
	}
	for _, c := range cases {
		if got := median(c.in); got != c.want {
			t.Errorf("median(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if !math.IsNaN(median(nil)) {
		t.Error("median of empty sample should be NaN")
	}
}
