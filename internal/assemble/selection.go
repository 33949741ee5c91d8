package assemble

import (
	"sort"
	"strings"
)

// Selection is the set of title IDs a reader ticked in the rendered view.
// It is plain data; handing it to a notebook or any other host is left to
// the caller.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) *Selection {
	s := &Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseSelection reads a comma-joined ID list.
func ParseSelection(list string) *Selection {
	return NewSelection(strings.Split(list, ",")...)
}

// Add selects id. Blank IDs are ignored.
func (s *Selection) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Remove deselects id.
func (s *Selection) Remove(id string) {
	delete(s.ids, strings.TrimSpace(id))
}

// Toggle flips id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return s.Has(id)
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[strings.TrimSpace(id)]
	return ok
}

// Len returns the number of selected IDs.
func (s *Selection) Len() int { return len(s.ids) }

// IDs returns the selected IDs sorted.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// String joins the sorted IDs with commas.
func (s *Selection) String() string {
	return strings.Join(s.IDs(), ",")
}

// Unknown returns the selected IDs that no entry in out holds.
func (s *Selection) Unknown(out Output) []string {
	known := make(map[string]struct{}, out.TitleCount)
	for _, e := range out.Entries {
		for _, t := range e.Members() {
			known[t.ID] = struct{}{}
		}
	}
	var missing []string
	for _, id := range s.IDs() {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
