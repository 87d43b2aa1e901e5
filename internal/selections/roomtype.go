package selections

import "strings"

// RoomTypeRule maps every name containing Match to Type
type RoomTypeRule struct {
	Match string
	Type  RoomType
}

// DefaultRoomTypeRules are ordered most specific first. A name is matched
// against the first rule whose Match it contains.
var DefaultRoomTypeRules = []RoomTypeRule{
	{Match: "rock suite diamond", Type: RoomTypeRockSuiteDiamond},
	{Match: "rock suite platinum", Type: RoomTypeRockSuitePlatinum},
	{Match: "rock suite", Type: RoomTypeRockSuite},
	{Match: "junior suite", Type: RoomTypeJuniorSuite},
	{Match: "deluxe gold", Type: RoomTypeDeluxeGold},
	{Match: "deluxe silver", Type: RoomTypeDeluxeSilver},
	{Match: "suite", Type: RoomTypeSuite},
	{Match: "deluxe", Type: RoomTypeDeluxe},
}

// RoomTypeNormalizer canonicalizes free-text catalog names. An explicit
// catalog mapping wins over the substring rules.
type RoomTypeNormalizer struct {
	catalog  map[string]RoomType
	rules    []RoomTypeRule
	fallback RoomType
}

func NewRoomTypeNormalizer(catalog map[string]RoomType, rules []RoomTypeRule) *RoomTypeNormalizer {
	if rules == nil {
		rules = DefaultRoomTypeRules
	}
	n := &RoomTypeNormalizer{
		catalog:  make(map[string]RoomType, len(catalog)),
		rules:    rules,
		fallback: RoomTypeDeluxe,
	}
	for name, t := range catalog {
		n.catalog[canonicalName(name)] = t
	}
	return n
}

// Normalize returns the canonical type for a catalog name
func (n *RoomTypeNormalizer) Normalize(name string) RoomType {
	key := canonicalName(name)
	if key == "" {
		return n.fallback
	}
	if t, ok := n.catalog[key]; ok {
		return t
	}
	for _, t := range AllRoomTypes() {
		if key == canonicalName(string(t)) {
			return t
		}
	}
	for _, rule := range n.rules {
		if strings.Contains(key, rule.Match) {
			return rule.Type
		}
	}
	return n.fallback
}

// canonicalName lowercases and collapses separators so that
// "ROCK_SUITE" and "Rock  Suite" compare equal
func canonicalName(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.Join(strings.Fields(s), " ")
}
