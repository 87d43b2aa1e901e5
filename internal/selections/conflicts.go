package selections

import "strings"

// ConflictTable is a symmetric set of extras that cannot be booked together
type ConflictTable struct {
	pairs map[string]map[string]string
}

// DefaultConflicts is the stock hotel table
var DefaultConflicts = map[string][]string{
	"Early Check-in":      {"Late Check-out"},
	"Private Spa Session": {"Group Spa Package"},
}

// NewConflictTable builds the table from name -> conflicting names. Every
// entry is mirrored so lookups work in both directions.
func NewConflictTable(conflicts map[string][]string) *ConflictTable {
	t := &ConflictTable{pairs: make(map[string]map[string]string)}
	for name, others := range conflicts {
		for _, other := range others {
			t.link(name, other)
			t.link(other, name)
		}
	}
	return t
}

func (t *ConflictTable) link(a, b string) {
	key := strings.ToLower(strings.TrimSpace(a))
	if t.pairs[key] == nil {
		t.pairs[key] = make(map[string]string)
	}
	t.pairs[key][strings.ToLower(strings.TrimSpace(b))] = strings.TrimSpace(b)
}

// Conflict returns the first selected name that clashes with name
func (t *ConflictTable) Conflict(name string, selected []string) (string, bool) {
	clashes := t.pairs[strings.ToLower(strings.TrimSpace(name))]
	if len(clashes) == 0 {
		return "", false
	}
	for _, s := range selected {
		if _, ok := clashes[strings.ToLower(strings.TrimSpace(s))]; ok {
			return s, true
		}
	}
	return "", false
}
