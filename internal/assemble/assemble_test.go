package assemble

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/holdings/internal/cluster"
	"github.com/hurttlocker/holdings/internal/timeseries"
	"github.com/hurttlocker/holdings/internal/titles"
)

func mk(id string, hc, mf int, edges ...string) *titles.Title {
	t := &titles.Title{ID: id, SumHC: hc, SumMF: mf, RatioMFToTotal: titles.RatioOf(hc, mf)}
	if len(edges) > 0 {
		t.Connectivity = titles.Connectivity{Declared: true, IDs: edges}
	}
	t.RestructuredMF = []timeseries.Point{timeseries.At(1900, float64(mf))}
	t.RestructuredHC = []timeseries.Point{}
	return t
}

func entryKeys(out Output) []string {
	keys := make([]string, 0, len(out.Entries))
	for _, e := range out.Entries {
		ids := make([]string, 0)
		for _, t := range e.Members() {
			ids = append(ids, t.ID)
		}
		keys = append(keys, string(e.Kind())+":"+strings.Join(ids, "+"))
	}
	return keys
}

func TestAssemble_SortsByMicrofilmDescending(t *testing.T) {
	working := []*titles.Title{
		mk("A", 10, 4, "B"),
		mk("B", 1, 4),
		mk("C", 50, 8),
		mk("D", 0, 3),
		mk("E", 7, 8),
	}
	out := Assemble(cluster.Partition(working), working)

	want := []string{"cluster:A+B", "title:C", "title:E", "title:D"}
	if diff := cmp.Diff(want, entryKeys(out)); diff != "" {
		t.Fatalf("entry order mismatch (-want +got):\n%s", diff)
	}
	if out.Entries[0].SumMF() != 8 {
		t.Fatalf("cluster aggregate mf: %d", out.Entries[0].SumMF())
	}
	if out.TitleCount != 5 {
		t.Fatalf("title count: %d", out.TitleCount)
	}

	hc := make([]string, 0, len(out.ByHardCopy))
	for _, ti := range out.ByHardCopy {
		hc = append(hc, ti.ID)
	}
	if diff := cmp.Diff([]string{"C", "A", "E", "B", "D"}, hc); diff != "" {
		t.Fatalf("hard-copy order mismatch (-want +got):\n%s", diff)
	}
	if err := Verify(out, working); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAssemble_DescendingAndStable(t *testing.T) {
	working := make([]*titles.Title, 0)
	for i, mf := range []int{3, 9, 3, 0, 9, 3} {
		working = append(working, mk(string(rune('a'+i)), 0, mf))
	}
	out := Assemble(cluster.Partition(working), working)
	want := []string{"title:b", "title:e", "title:a", "title:c", "title:f", "title:d"}
	if diff := cmp.Diff(want, entryKeys(out)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(out.Entries); i++ {
		if out.Entries[i].SumMF() > out.Entries[i-1].SumMF() {
			t.Fatalf("entries not descending at %d", i)
		}
	}
}

func TestVerify(t *testing.T) {
	a, b := mk("A", 0, 1), mk("B", 0, 1)

	missing := Output{Entries: []Entry{{Title: a}}, TitleCount: 1}
	if err := Verify(missing, []*titles.Title{a, b}); !errors.Is(err, ErrTitleMissing) {
		t.Fatalf("expected ErrTitleMissing, got %v", err)
	}

	dup := Output{Entries: []Entry{{Title: a}, {Cluster: &Cluster{Titles: []*titles.Title{a, b}}}}, TitleCount: 3}
	if err := Verify(dup, []*titles.Title{a, b}); !errors.Is(err, ErrTitleDuplicated) {
		t.Fatalf("expected ErrTitleDuplicated, got %v", err)
	}

	extra := Output{Entries: []Entry{{Title: a}, {Title: b}}, TitleCount: 2}
	if err := Verify(extra, []*titles.Title{a}); !errors.Is(err, ErrUnknownTitle) {
		t.Fatalf("expected ErrUnknownTitle, got %v", err)
	}
}

func TestEntryJSON(t *testing.T) {
	a, b := mk("A", 1, 2, "B"), mk("B", 0, 0)
	out := Assemble(cluster.Partition([]*titles.Title{a, b, mk("C", 0, 0)}), nil)

	data, err := json.Marshal(out.Entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if decoded[0]["kind"] != "cluster" || decoded[0]["mf_sum"] != float64(2) {
		t.Fatalf("unexpected cluster entry: %v", decoded[0])
	}
	members, ok := decoded[0]["connected_titles"].([]any)
	if !ok || len(members) != 2 {
		t.Fatalf("expected 2 connected titles, got %v", decoded[0]["connected_titles"])
	}
	if decoded[1]["kind"] != "title" {
		t.Fatalf("unexpected title entry: %v", decoded[1])
	}
	if _, err := json.Marshal(Entry{}); err == nil {
		t.Fatal("empty entry should not marshal")
	}
}

func TestSummarizeAndLocate(t *testing.T) {
	below := 4.0
	d := mk("D", 2, 5)
	d.Microfilm = &titles.Series{}
	d.BelowThreshold = &below

	working := []*titles.Title{mk("A", 1, 1, "B"), mk("B", 1, 1, "C"), mk("C", 1, 1), d}
	out := Assemble(cluster.Partition(working), working)
	s := Summarize(out)
	want := Stats{Entries: 2, Clusters: 1, Standalone: 1, Titles: 4, LargestCluster: 3, SumHC: 5, SumMF: 8, Degraded: 1}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	e, ok := Locate(out, "C")
	if !ok || e.Kind() != KindCluster {
		t.Fatalf("expected C inside a cluster, got %v", e.Kind())
	}
	if _, ok := Locate(out, "nope"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestSelection(t *testing.T) {
	s := ParseSelection("B, A,,B")
	if s.String() != "A,B" || s.Len() != 2 {
		t.Fatalf("unexpected selection %q", s.String())
	}
	if s.Toggle("A") {
		t.Fatal("toggling a selected ID should deselect it")
	}
	if !s.Toggle("C") || !s.Has("C") {
		t.Fatal("toggling an unselected ID should select it")
	}
	if s.Toggle(" ") {
		t.Fatal("blank IDs are never selected")
	}

	out := Output{Entries: []Entry{{Title: mk("B", 0, 0)}}, TitleCount: 1}
	if diff := cmp.Diff([]string{"C"}, s.Unknown(out)); diff != "" {
		t.Fatalf("unknown mismatch (-want +got):\n%s", diff)
	}

	var zero Selection
	zero.Add("X")
	if !zero.Has("X") {
		t.Fatal("zero selection should accept IDs")
	}
}
