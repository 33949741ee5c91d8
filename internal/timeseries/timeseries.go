// Package timeseries repairs per-year holdings counts into the gap-aware
// sequences a line renderer draws.
//
// A restructured sequence covers only the span in which a title has holdings,
// bracketed by a zero-count year on each side. Inside that span a zero year
// next to real data stays a visible drop to zero; a zero year surrounded by
// other zeros becomes a null point so the line breaks instead of claiming
// continuous publication.
package timeseries

import (
	"fmt"
	"math"
	"sort"
)

// Range is the inclusive global year range shared by every title in a build.
type Range struct {
	Earliest int `json:"earliest"`
	Latest   int `json:"latest"`
}

// Contains reports whether year falls inside the range.
func (r Range) Contains(year int) bool {
	return year >= r.Earliest && year <= r.Latest
}

// Years returns the number of years covered by the range.
func (r Range) Years() int {
	if r.Latest < r.Earliest {
		return 0
	}
	return r.Latest - r.Earliest + 1
}

// Validate rejects an inverted range.
func (r Range) Validate() error {
	if r.Latest < r.Earliest {
		return fmt.Errorf("invalid year range [%d, %d]: latest before earliest", r.Earliest, r.Latest)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Earliest, r.Latest)
}

// Point is one year of a restructured sequence. A nil Count marks a gap.
type Point struct {
	Year  int      `json:"date"`
	Count *float64 `json:"count"`
}

// IsGap reports whether the point breaks the line.
func (p Point) IsGap() bool { return p.Count == nil }

// Value returns the count, or NaN for a gap.
func (p Point) Value() float64 {
	if p.Count == nil {
		return math.NaN()
	}
	return *p.Count
}

// At builds a point holding count.
func At(year int, count float64) Point {
	return Point{Year: year, Count: &count}
}

// Gap builds a null point.
func Gap(year int) Point {
	return Point{Year: year}
}

// Extent returns the smallest range covering every year key of every series.
// ok is false when no series has any year.
func Extent(series ...map[int]float64) (r Range, ok bool) {
	for _, s := range series {
		for year := range s {
			if !ok {
				r = Range{Earliest: year, Latest: year}
				ok = true
				continue
			}
			if year < r.Earliest {
				r.Earliest = year
			}
			if year > r.Latest {
				r.Latest = year
			}
		}
	}
	return r, ok
}

// Restructure turns a raw year→count series into an ascending, duplicate-free
// sequence padded by zero years and with null points inside multi-year gaps.
// Years missing from raw count as zero.
func Restructure(raw map[int]float64, r Range) []Point {
	if len(raw) == 0 {
		return []Point{}
	}

	points := make([]Point, 0, r.Years()+2)
	for year := r.Earliest; year <= r.Latest; year++ {
		if v := raw[year]; v != 0 {
			points = append(points, At(year, v))
		}
	}
	if len(points) == 0 {
		return points
	}

	lo := points[0].Year - 1
	hi := points[len(points)-1].Year + 1
	if lo != r.Earliest-1 {
		points = append(points, At(lo, 0))
	}
	if hi != r.Latest+1 {
		points = append(points, At(hi, 0))
	}

	for year := lo + 1; year < hi; year++ {
		if raw[year] != 0 {
			continue
		}
		if raw[year-1] != 0 || raw[year+1] != 0 {
			points = append(points, At(year, 0))
		} else {
			points = append(points, Gap(year))
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
	return points
}

// EarliestActivity returns the year of the first real data point, skipping
// the synthetic leading pad and any zero or null points.
func EarliestActivity(points []Point) (int, bool) {
	for _, p := range points {
		if p.Count != nil && *p.Count != 0 {
			return p.Year, true
		}
	}
	return 0, false
}
