// Package titles merges newspaper title metadata with the hard-copy and
// microfilm holdings series into one record per title.
package titles

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/hurttlocker/holdings/internal/timeseries"
)

// Metadata keys of the title records.
const (
	FieldID           = "Title.ID"
	FieldConnectivity = "connectivity"
	FieldName         = "Publication title"
	FieldCoverage     = "General area of coverage"
	FieldLink         = "Explore link"
	FieldPreceding    = "Preceding titles"
	FieldSucceeding   = "Succeeding titles"
)

// FieldBelowThreshold is the non-year microfilm field holding the number of
// reels with canister numbers below 4000.
const FieldBelowThreshold = "Total_canNos_below_4000"

// DegradedThreshold is the below-threshold count above which a title is
// flagged as likely held on degrading acetate film.
const DegradedThreshold = 1

// Record is one parsed entry of the title metadata dataset.
type Record map[string]any

// RawSeriesSet maps a title ID to its raw field→count series.
type RawSeriesSet map[string]map[string]any

// Series is a raw holdings series with its year keys parsed.
type Series struct {
	Years map[int]float64
	Total float64
}

// Sum returns the rounded total of the series, or 0 for a nil series.
func (s *Series) Sum() int {
	if s == nil {
		return 0
	}
	return int(math.Round(s.Total))
}

// Title is one newspaper publication with its derived holdings data.
type Title struct {
	ID         string            `json:"id"`
	Name       string            `json:"publication_title"`
	Coverage   string            `json:"coverage"`
	Link       string            `json:"explore_link,omitempty"`
	Preceding  *string           `json:"preceding_titles"`
	Succeeding *string           `json:"succeeding_titles"`
	Extra      map[string]string `json:"extra,omitempty"`

	Connectivity Connectivity `json:"connectivity"`

	HardCopy  *Series `json:"-"`
	Microfilm *Series `json:"-"`

	RestructuredHC []timeseries.Point `json:"timeseries_hc"`
	RestructuredMF []timeseries.Point `json:"timeseries_mf"`

	SumHC          int      `json:"hc_sum"`
	SumMF          int      `json:"mf_sum"`
	RatioMFToTotal Ratio    `json:"mf_ratio"`
	BelowThreshold *float64 `json:"mf_below_threshold"`
}

// HasData reports whether the title carries at least one raw series.
func (t *Title) HasData() bool {
	return t.HardCopy != nil || t.Microfilm != nil
}

// LikelyDegraded reports whether enough microfilm records sit below the
// canister threshold to warn about acetate film.
func (t *Title) LikelyDegraded() bool {
	return t.Microfilm != nil && t.BelowThreshold != nil && *t.BelowThreshold > DegradedThreshold
}

// EarliestYear is the first year with real holdings across both restructured
// series. ok is false when neither sequence has any.
func (t *Title) EarliestYear() (year int, ok bool) {
	hc, hcOK := timeseries.EarliestActivity(t.RestructuredHC)
	mf, mfOK := timeseries.EarliestActivity(t.RestructuredMF)
	switch {
	case hcOK && mfOK:
		return min(hc, mf), true
	case hcOK:
		return hc, true
	case mfOK:
		return mf, true
	}
	return 0, false
}

// MarshalJSON adds the derived degraded flag for the renderer.
func (t *Title) MarshalJSON() ([]byte, error) {
	type plain Title
	return json.Marshal(struct {
		*plain
		LikelyDegraded bool `json:"likely_degraded"`
	}{plain: (*plain)(t), LikelyDegraded: t.LikelyDegraded()})
}

// Ratio is the microfilm share of a title's holdings. It is NaN when the
// title has no holdings in either format.
type Ratio float64

// RatioOf computes mf / (hc + mf).
func RatioOf(hc, mf int) Ratio {
	if hc+mf == 0 {
		return Ratio(math.NaN())
	}
	return Ratio(float64(mf) / float64(hc+mf))
}

// Valid reports whether the ratio carries data.
func (r Ratio) Valid() bool {
	return !math.IsNaN(float64(r)) && !math.IsInf(float64(r), 0)
}

// MarshalJSON writes null for the no-data case.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

// Connectivity lists the titles a title declares itself continuous with.
// Declared is false when the record had no connectivity at all, which is
// distinct from a declared but empty list.
type Connectivity struct {
	Declared bool
	IDs      []string
}

// NoConnectivity is the marker for records without a connectivity field.
var NoConnectivity = Connectivity{}

// HasEdges reports whether the title points at any other title.
func (c Connectivity) HasEdges() bool {
	return len(c.IDs) > 0
}

// MarshalJSON writes null for undeclared connectivity and a list otherwise.
func (c Connectivity) MarshalJSON() ([]byte, error) {
	if !c.Declared {
		return []byte("null"), nil
	}
	ids := c.IDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// ParseConnectivity reads the connectivity field of a record. A string is
// split on commas; a list is taken element-wise. Missing, null, false and
// empty values yield NoConnectivity.
func ParseConnectivity(v any) Connectivity {
	switch val := v.(type) {
	case nil, bool:
		return NoConnectivity
	case string:
		if val == "" {
			return NoConnectivity
		}
		return Connectivity{Declared: true, IDs: splitIDs(strings.Split(val, ","))}
	case []string:
		return Connectivity{Declared: true, IDs: splitIDs(val)}
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringOf(item))
		}
		return Connectivity{Declared: true, IDs: splitIDs(parts)}
	default:
		s := stringOf(val)
		if s == "" {
			return NoConnectivity
		}
		return Connectivity{Declared: true, IDs: []string{s}}
	}
}

func splitIDs(parts []string) []string {
	ids := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
