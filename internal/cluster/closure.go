package cluster

import "github.com/hurttlocker/holdings/internal/titles"

// Closure grows seed until it stops changing: each round adds the
// connectivity of every member that has a record, then every title in all
// whose connectivity touches the group. The result may contain IDs without a
// record. Closure of a closed group returns the same group.
func Closure(seed []string, all []*titles.Title) []string {
	index := make(map[string]*titles.Title, len(all))
	for _, t := range all {
		index[t.ID] = t
	}

	group := dedupe(seed)
	for {
		size := len(group)
		next := append([]string(nil), group...)
		for _, id := range group {
			if t, ok := index[id]; ok {
				next = append(next, t.Connectivity.IDs...)
			}
		}

		members := make(map[string]struct{}, len(next))
		for _, id := range next {
			members[id] = struct{}{}
		}
		for _, t := range all {
			for _, id := range t.Connectivity.IDs {
				if _, ok := members[id]; ok {
					next = append(next, t.ID)
					break
				}
			}
		}

		group = dedupe(next)
		if len(group) <= size {
			return group
		}
	}
}

// Of returns the group containing the title with the given ID, resolved
// through Closure. ok is false when no title has that ID.
func Of(id string, all []*titles.Title) (Group, bool) {
	var start *titles.Title
	for _, t := range all {
		if t.ID == id {
			start = t
			break
		}
	}
	if start == nil {
		return Group{}, false
	}

	seed := append([]string{start.ID}, start.Connectivity.IDs...)
	ids := make(map[string]struct{})
	for _, member := range Closure(seed, all) {
		ids[member] = struct{}{}
	}

	var g Group
	for _, t := range ProcessingOrder(all) {
		if _, ok := ids[t.ID]; ok {
			g.Titles = append(g.Titles, t)
		}
	}
	SortByEarliest(g.Titles)
	return g, true
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
