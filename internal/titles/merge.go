package titles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/hurttlocker/holdings/internal/timeseries"
)

var (
	// ErrMissingID is returned for a metadata record without a title ID.
	ErrMissingID = errors.New("title record has no ID")
	// ErrDuplicateID is returned when two metadata records share an ID.
	ErrDuplicateID = errors.New("duplicate title ID")
	// ErrNoYears is returned when titles survive the merge but no series
	// carries a single year and no range was configured.
	ErrNoYears = errors.New("no year keys in any holdings series")
)

// MergeOptions configures Merge.
type MergeOptions struct {
	// Range overrides the global year range otherwise derived from the series.
	Range *timeseries.Range
}

// MergeResult is the working set of titles and the range they were
// restructured against.
type MergeResult struct {
	Titles  []*Title
	Range   timeseries.Range
	Dropped []string // IDs of titles without any holdings series
}

// Merge joins title metadata with both holdings datasets. Titles with neither
// series are dropped. Input order is preserved.
func Merge(records []Record, hc, mf RawSeriesSet, opts MergeOptions) (*MergeResult, error) {
	out := &MergeResult{Titles: make([]*Title, 0, len(records))}
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		id := RecordID(rec)
		if id == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrMissingID)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("records %d and %d: %w %q", prev, i, ErrDuplicateID, id)
		}
		seen[id] = i

		t := newTitle(id, rec)
		t.HardCopy, _ = parseSeries(hc[id])
		var below *float64
		t.Microfilm, below = parseSeries(mf[id])
		if t.Microfilm != nil {
			t.BelowThreshold = below
		}

		if !t.HasData() {
			out.Dropped = append(out.Dropped, id)
			continue
		}

		t.SumHC = t.HardCopy.Sum()
		t.SumMF = t.Microfilm.Sum()
		t.RatioMFToTotal = RatioOf(t.SumHC, t.SumMF)
		out.Titles = append(out.Titles, t)
	}

	if opts.Range != nil {
		if err := opts.Range.Validate(); err != nil {
			return nil, err
		}
		out.Range = *opts.Range
	} else if len(out.Titles) > 0 {
		r, ok := timeseries.Extent(yearMaps(out.Titles)...)
		if !ok {
			return nil, ErrNoYears
		}
		out.Range = r
	}

	for _, t := range out.Titles {
		t.RestructuredHC = restructure(t.HardCopy, out.Range)
		t.RestructuredMF = restructure(t.Microfilm, out.Range)
	}
	return out, nil
}

// RecordID returns the title ID of a metadata record as text.
func RecordID(rec Record) string {
	return stringOf(rec[FieldID])
}

func newTitle(id string, rec Record) *Title {
	t := &Title{
		ID:           id,
		Name:         stringOf(rec[FieldName]),
		Coverage:     stringOf(rec[FieldCoverage]),
		Link:         stringOf(rec[FieldLink]),
		Preceding:    optionalString(rec, FieldPreceding),
		Succeeding:   optionalString(rec, FieldSucceeding),
		Connectivity: ParseConnectivity(rec[FieldConnectivity]),
	}
	for k, v := range rec {
		switch k {
		case FieldID, FieldName, FieldCoverage, FieldLink, FieldPreceding, FieldSucceeding, FieldConnectivity:
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil || s == "" {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]string)
		}
		t.Extra[k] = s
	}
	return t
}

// parseSeries converts one raw series. The below-threshold field is split
// off and returned separately; it never counts toward the total. A nil raw
// map means the title has no entry in that dataset.
func parseSeries(raw map[string]any) (*Series, *float64) {
	if raw == nil {
		return nil, nil
	}
	s := &Series{Years: make(map[int]float64, len(raw))}
	var below *float64
	for key, v := range raw {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			continue
		}
		if key == FieldBelowThreshold {
			below = &f
			continue
		}
		s.Total += f
		if year, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
			s.Years[year] = f
		}
	}
	return s, below
}

func restructure(s *Series, r timeseries.Range) []timeseries.Point {
	if s == nil {
		return []timeseries.Point{}
	}
	return timeseries.Restructure(s.Years, r)
}

func yearMaps(ts []*Title) []map[int]float64 {
	maps := make([]map[int]float64, 0, 2*len(ts))
	for _, t := range ts {
		if t.HardCopy != nil {
			maps = append(maps, t.HardCopy.Years)
		}
		if t.Microfilm != nil {
			maps = append(maps, t.Microfilm.Years)
		}
	}
	return maps
}

func optionalString(rec Record, key string) *string {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	s := stringOf(v)
	return &s
}

// stringOf renders scalar metadata values, including numeric IDs, as text.
func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(cast.ToString(v))
}
