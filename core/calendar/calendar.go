// Package calendar stores the known calendar entries of every user. The book
// is loaded once at startup and only read afterwards.
package calendar

import (
	"sort"

	"github.com/kilianp07/parkadvisor/core/model"
)

// Entry is a recurring weekly appointment at a place.
type Entry struct {
	Label      model.TargetLabel `json:"place" yaml:"place"`
	TimeOfWeek float64           `json:"time_of_week" yaml:"time_of_week"`
}

// Book maps user identifiers to their calendar entries.
type Book struct {
	entries map[int][]Entry
}

// NewBook copies the entries and orders each user's calendar by time of week.
func NewBook(entries map[int][]Entry) *Book {
	b := &Book{entries: make(map[int][]Entry, len(entries))}
	for uid, es := range entries {
		cp := append([]Entry(nil), es...)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].TimeOfWeek < cp[j].TimeOfWeek })
		b.entries[uid] = cp
	}
	return b
}

// Entries returns the user's entries. A missing user yields an empty
// calendar and ok=false.
func (b *Book) Entries(userID int) ([]Entry, bool) {
	if b == nil {
		return nil, false
	}
	es, ok := b.entries[userID]
	return es, ok
}

// Users returns the number of users with a calendar.
func (b *Book) Users() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
