package timeseries

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRestructure_DropAndBreak(t *testing.T) {
	raw := map[int]float64{1990: 5, 1991: 0, 1992: 0, 1993: 0, 1994: 3}
	r := Range{Earliest: 1989, Latest: 1995}

	got := Restructure(raw, r)
	want := []Point{
		At(1989, 0),
		At(1990, 5),
		At(1991, 0),
		Gap(1992),
		At(1993, 0),
		At(1994, 3),
		At(1995, 0),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restructured sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRestructure_TwoYearGapStaysAtZero(t *testing.T) {
	// Both gap years touch a non-zero neighbour, so neither becomes null.
	raw := map[int]float64{1990: 5, 1991: 0, 1992: 0, 1993: 3}
	got := Restructure(raw, Range{Earliest: 1989, Latest: 1994})
	want := []Point{
		At(1989, 0),
		At(1990, 5),
		At(1991, 0),
		At(1992, 0),
		At(1993, 3),
		At(1994, 0),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restructured sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRestructure_Empty(t *testing.T) {
	r := Range{Earliest: 1900, Latest: 1910}
	cases := map[string]map[int]float64{
		"nil":      nil,
		"empty":    {},
		"all zero": {1900: 0, 1901: 0, 1905: 0},
		"outside":  {1850: 4, 1999: 2},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Restructure(raw, r)
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil sequence, got %#v", got)
			}
		})
	}
}

func TestRestructure_SingleYear(t *testing.T) {
	tests := []struct {
		name string
		year int
		want []Point
	}{
		{"middle", 1905, []Point{At(1904, 0), At(1905, 2), At(1906, 0)}},
		{"at earliest", 1900, []Point{At(1900, 2), At(1901, 0)}},
		{"at latest", 1910, []Point{At(1909, 0), At(1910, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Restructure(map[int]float64{tt.year: 2}, Range{Earliest: 1900, Latest: 1910})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	got := Restructure(map[int]float64{1900: 1}, Range{Earliest: 1900, Latest: 1900})
	if diff := cmp.Diff([]Point{At(1900, 1)}, got); diff != "" {
		t.Fatalf("one-year range mismatch (-want +got):\n%s", diff)
	}
}

func TestRestructure_Properties(t *testing.T) {
	r := Range{Earliest: 1850, Latest: 1950}
	raw := map[int]float64{}
	for y := r.Earliest; y <= r.Latest; y++ {
		switch {
		case y%7 == 0:
			raw[y] = float64(y % 13)
		case y%11 == 0:
			raw[y] = 0.5
		default:
			raw[y] = 0
		}
	}

	got := Restructure(raw, r)
	if len(got) == 0 {
		t.Fatal("expected points")
	}
	for i, p := range got {
		if i > 0 && p.Year <= got[i-1].Year {
			t.Fatalf("years not strictly ascending at %d: %d after %d", i, p.Year, got[i-1].Year)
		}
		if p.IsGap() {
			if raw[p.Year] != 0 {
				t.Fatalf("gap at %d hides raw value %v", p.Year, raw[p.Year])
			}
			continue
		}
		if *p.Count != raw[p.Year] {
			t.Fatalf("year %d: count %v differs from raw %v", p.Year, *p.Count, raw[p.Year])
		}
	}

	// every non-zero raw year in range must survive
	seen := make(map[int]bool, len(got))
	for _, p := range got {
		seen[p.Year] = true
	}
	for y, v := range raw {
		if v != 0 && !seen[y] {
			t.Fatalf("non-zero year %d dropped", y)
		}
	}
}

func TestExtent(t *testing.T) {
	r, ok := Extent(
		map[int]float64{1901: 1, 1899: 0},
		nil,
		map[int]float64{1920: 3},
	)
	if !ok {
		t.Fatal("expected extent")
	}
	if r != (Range{Earliest: 1899, Latest: 1920}) {
		t.Fatalf("unexpected extent %s", r)
	}

	if _, ok := Extent(nil, map[int]float64{}); ok {
		t.Fatal("expected no extent for empty input")
	}
}

func TestEarliestActivity(t *testing.T) {
	points := []Point{At(1899, 0), At(1900, 4), At(1901, 0), Gap(1902)}
	year, ok := EarliestActivity(points)
	if !ok || year != 1900 {
		t.Fatalf("expected 1900, got %d (ok=%v)", year, ok)
	}

	// leading pad omitted at the range boundary
	year, ok = EarliestActivity([]Point{At(1850, 2), At(1851, 1)})
	if !ok || year != 1850 {
		t.Fatalf("expected 1850, got %d (ok=%v)", year, ok)
	}

	if _, ok := EarliestActivity(nil); ok {
		t.Fatal("expected no activity for empty sequence")
	}
}

func TestPointValue(t *testing.T) {
	if !math.IsNaN(Gap(1900).Value()) {
		t.Fatal("gap value should be NaN")
	}
	if At(1900, 3).Value() != 3 {
		t.Fatal("unexpected value")
	}
}

func TestRangeValidate(t *testing.T) {
	if err := (Range{Earliest: 1900, Latest: 1899}).Validate(); err == nil {
		t.Fatal("expected inverted range to fail")
	}
	if err := (Range{Earliest: 1900, Latest: 1900}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
