// Package cluster groups titles that are connected through the declared
// connectivity relation (renamed, merged or split publications).
//
// Edges are treated as undirected: a title that points into a group joins it
// even when nothing in the group points back, and two titles that both point
// at the same ID join each other even when that ID has no record.
package cluster

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/hurttlocker/holdings/internal/titles"
)

// Group is one connected set of titles. A group with a single title is a
// standalone title rather than a cluster.
type Group struct {
	Titles []*titles.Title
}

// Standalone reports whether the group resolved to exactly one title.
func (g Group) Standalone() bool { return len(g.Titles) == 1 }

// SumMF is the microfilm total across members.
func (g Group) SumMF() int {
	total := 0
	for _, t := range g.Titles {
		total += t.SumMF
	}
	return total
}

// IDs returns member IDs in member order.
func (g Group) IDs() []string {
	ids := make([]string, len(g.Titles))
	for i, t := range g.Titles {
		ids[i] = t.ID
	}
	return ids
}

// ProcessingOrder returns the titles with outgoing connectivity first,
// keeping relative order inside both halves.
func ProcessingOrder(ts []*titles.Title) []*titles.Title {
	ordered := make([]*titles.Title, 0, len(ts))
	for _, t := range ts {
		if t.Connectivity.HasEdges() {
			ordered = append(ordered, t)
		}
	}
	for _, t := range ts {
		if !t.Connectivity.HasEdges() {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// Partition splits the working set into connected groups. Groups appear in
// processing order of their first member; members are ordered by earliest
// holdings year.
func Partition(ts []*titles.Title) []Group {
	ordered := ProcessingOrder(ts)
	component := components(ordered)

	groups := make([]Group, 0, len(ordered))
	slot := make(map[int]int, len(ordered))
	for _, t := range ordered {
		c := component[t.ID]
		if i, ok := slot[c]; ok {
			groups[i].Titles = append(groups[i].Titles, t)
			continue
		}
		slot[c] = len(groups)
		groups = append(groups, Group{Titles: []*titles.Title{t}})
	}

	for i := range groups {
		SortByEarliest(groups[i].Titles)
	}
	return groups
}

// components maps every title ID to the index of its connected component.
// Referenced IDs without a record are graph nodes too, so they can bridge
// titles, but they never show up in a group.
func components(ts []*titles.Title) map[string]int {
	g := simple.NewUndirectedGraph()
	nodes := make(map[string]graph.Node, len(ts))
	node := func(id string) graph.Node {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := g.NewNode()
		g.AddNode(n)
		nodes[id] = n
		return n
	}

	for _, t := range ts {
		node(t.ID)
	}
	for _, t := range ts {
		from := node(t.ID)
		for _, id := range t.Connectivity.IDs {
			if id == t.ID {
				continue
			}
			g.SetEdge(g.NewEdge(from, node(id)))
		}
	}

	byNode := make(map[int64]int, len(nodes))
	for i, comp := range topo.ConnectedComponents(g) {
		for _, n := range comp {
			byNode[n.ID()] = i
		}
	}

	out := make(map[string]int, len(ts))
	for _, t := range ts {
		out[t.ID] = byNode[nodes[t.ID].ID()]
	}
	return out
}

// SortByEarliest orders titles by their first year of real holdings. Titles
// without any keep their relative order after all dated titles.
func SortByEarliest(ts []*titles.Title) {
	type keyed struct {
		year int
		ok   bool
	}
	keys := make(map[*titles.Title]keyed, len(ts))
	for _, t := range ts {
		y, ok := t.EarliestYear()
		keys[t] = keyed{year: y, ok: ok}
	}
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := keys[ts[i]], keys[ts[j]]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ok && a.year < b.year
	})
}
