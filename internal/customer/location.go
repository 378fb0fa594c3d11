package customer

import (
	"sort"
	"strings"
)

type Location struct {
	ID         string
	City       string
	Province   string
	PostalCode string
}

// LocationTable is a lookup over the locations known at the time one
// customer was loaded. It is built per call and never shared.
type LocationTable struct {
	byID   map[string]Location
	byCity map[string]Location
	// longest city names first so "Kota Bandung" wins over "Bandung"
	ordered []Location
}

func NewLocationTable(locs []Location) *LocationTable {
	t := &LocationTable{
		byID:    make(map[string]Location, len(locs)),
		byCity:  make(map[string]Location, len(locs)),
		ordered: make([]Location, 0, len(locs)),
	}
	for _, l := range locs {
		if l.ID == "" || strings.TrimSpace(l.City) == "" {
			continue
		}
		t.byID[l.ID] = l
		key := strings.ToLower(strings.TrimSpace(l.City))
		if _, dup := t.byCity[key]; !dup {
			t.byCity[key] = l
		}
		t.ordered = append(t.ordered, l)
	}
	sort.SliceStable(t.ordered, func(i, j int) bool {
		return len(t.ordered[i].City) > len(t.ordered[j].City)
	})
	return t
}

func (t *LocationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byID)
}

func (t *LocationTable) ByID(id string) (Location, bool) {
	if t == nil {
		return Location{}, false
	}
	l, ok := t.byID[id]
	return l, ok
}

// ByCity matches a city name case-insensitively.
func (t *LocationTable) ByCity(city string) (Location, bool) {
	if t == nil {
		return Location{}, false
	}
	l, ok := t.byCity[strings.ToLower(strings.TrimSpace(city))]
	return l, ok
}

// MatchText finds the longest known city name contained in text.
func (t *LocationTable) MatchText(text string) (Location, bool) {
	if t == nil {
		return Location{}, false
	}
	lower := strings.ToLower(text)
	for _, l := range t.ordered {
		if strings.Contains(lower, strings.ToLower(l.City)) {
			return l, true
		}
	}
	return Location{}, false
}
