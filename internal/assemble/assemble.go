// Package assemble orders clusters and standalone titles into the nested
// sequence handed to the renderer.
package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hurttlocker/holdings/internal/cluster"
	"github.com/hurttlocker/holdings/internal/titles"
)

var (
	// ErrTitleMissing means a working-set title is absent from the output.
	ErrTitleMissing = errors.New("title missing from output")
	// ErrTitleDuplicated means a title appears in more than one entry.
	ErrTitleDuplicated = errors.New("title appears in more than one entry")
	// ErrUnknownTitle means an entry holds a title outside the working set.
	ErrUnknownTitle = errors.New("title not in working set")
)

// Kind tells a cluster entry from a standalone title entry.
type Kind string

const (
	KindCluster Kind = "cluster"
	KindTitle   Kind = "title"
)

// Cluster is two or more connected titles ordered by earliest holdings.
type Cluster struct {
	Titles []*titles.Title `json:"connected_titles"`
	SumMF  int             `json:"mf_sum"`
}

// Entry is one top-level row: exactly one of Cluster and Title is set.
type Entry struct {
	Cluster *Cluster
	Title   *titles.Title
}

// Kind reports which of the two the entry holds.
func (e Entry) Kind() Kind {
	if e.Cluster != nil {
		return KindCluster
	}
	return KindTitle
}

// SumMF is the cluster aggregate or the standalone title's own total.
func (e Entry) SumMF() int {
	if e.Cluster != nil {
		return e.Cluster.SumMF
	}
	if e.Title != nil {
		return e.Title.SumMF
	}
	return 0
}

// Members returns the titles the entry covers.
func (e Entry) Members() []*titles.Title {
	if e.Cluster != nil {
		return e.Cluster.Titles
	}
	if e.Title != nil {
		return []*titles.Title{e.Title}
	}
	return nil
}

// MarshalJSON flattens the entry into a tagged object.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Cluster != nil:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			*Cluster
		}{Kind: KindCluster, Cluster: e.Cluster})
	case e.Title != nil:
		return json.Marshal(struct {
			Kind  Kind          `json:"kind"`
			Title *titles.Title `json:"title"`
		}{Kind: KindTitle, Title: e.Title})
	default:
		return nil, errors.New("empty entry")
	}
}

// Output is the assembled dataset.
type Output struct {
	// Entries is sorted by descending microfilm total; ties keep group order.
	Entries []Entry
	// ByHardCopy is the working set sorted by descending hard-copy total.
	ByHardCopy []*titles.Title
	// TitleCount is the number of titles across all entries.
	TitleCount int
}

// Stats summarizes an Output.
type Stats struct {
	Entries        int `json:"entries"`
	Clusters       int `json:"clusters"`
	Standalone     int `json:"standalone"`
	Titles         int `json:"titles"`
	LargestCluster int `json:"largest_cluster"`
	SumHC          int `json:"hc_sum"`
	SumMF          int `json:"mf_sum"`
	Degraded       int `json:"likely_degraded"`
}

// Assemble turns clustering groups into ordered entries.
func Assemble(groups []cluster.Group, working []*titles.Title) Output {
	entries := make([]Entry, 0, len(groups))
	count := 0
	for _, g := range groups {
		switch len(g.Titles) {
		case 0:
			continue
		case 1:
			entries = append(entries, Entry{Title: g.Titles[0]})
		default:
			entries = append(entries, Entry{Cluster: &Cluster{Titles: g.Titles, SumMF: g.SumMF()}})
		}
		count += len(g.Titles)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SumMF() > entries[j].SumMF()
	})

	byHC := append([]*titles.Title(nil), working...)
	sort.SliceStable(byHC, func(i, j int) bool {
		return byHC[i].SumHC > byHC[j].SumHC
	})

	return Output{Entries: entries, ByHardCopy: byHC, TitleCount: count}
}

// Verify checks that every working-set title appears in exactly one entry.
func Verify(out Output, working []*titles.Title) error {
	seen := make(map[string]int, len(working))
	for _, e := range out.Entries {
		for _, t := range e.Members() {
			seen[t.ID]++
			if seen[t.ID] > 1 {
				return fmt.Errorf("%w: %s", ErrTitleDuplicated, t.ID)
			}
		}
	}
	for _, t := range working {
		if seen[t.ID] == 0 {
			return fmt.Errorf("%w: %s", ErrTitleMissing, t.ID)
		}
	}
	if len(seen) != len(working) {
		return fmt.Errorf("%w: %d titles in output, %d in working set", ErrUnknownTitle, len(seen), len(working))
	}
	return nil
}

// Summarize counts clusters, titles and totals.
func Summarize(out Output) Stats {
	var s Stats
	s.Entries = len(out.Entries)
	for _, e := range out.Entries {
		members := e.Members()
		if e.Cluster != nil {
			s.Clusters++
			s.LargestCluster = max(s.LargestCluster, len(members))
		} else {
			s.Standalone++
		}
		for _, t := range members {
			s.Titles++
			s.SumHC += t.SumHC
			s.SumMF += t.SumMF
			if t.LikelyDegraded() {
				s.Degraded++
			}
		}
	}
	return s
}

// Locate finds the entry holding the title with the given ID.
func Locate(out Output, id string) (Entry, bool) {
	for _, e := range out.Entries {
		for _, t := range e.Members() {
			if t.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}
