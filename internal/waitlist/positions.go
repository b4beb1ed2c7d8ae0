package waitlist

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SortQueue orders entries by position, then join date, then id.
func SortQueue(entries []WaitEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.JoinDate.Equal(b.JoinDate) {
			return a.JoinDate.Before(b.JoinDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

func sortByJoinOrder(entries []WaitEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.JoinDate.Equal(b.JoinDate) {
			return a.JoinDate.Before(b.JoinDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

// SortListing orders active entries by position, followed by closed entries
// in join order.
func SortListing(entries []WaitEntry) {
	active := make([]WaitEntry, 0, len(entries))
	closed := make([]WaitEntry, 0)
	for _, e := range entries {
		if e.IsActive() {
			active = append(active, e)
		} else {
			closed = append(closed, e)
		}
	}
	SortQueue(active)
	sortByJoinOrder(closed)
	copy(entries, append(active, closed...))
}

func activeEntries(entries []WaitEntry) []WaitEntry {
	active := make([]WaitEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive() {
			active = append(active, e)
		}
	}
	SortQueue(active)
	return active
}

// nextPosition is the tail position for a new entry.
func nextPosition(entries []WaitEntry) int {
	last := 0
	for _, e := range entries {
		if e.IsActive() && e.Position > last {
			last = e.Position
		}
	}
	return last + 1
}

// renumber assigns 1..N to the active entries in their current relative order
// and returns only the entries whose position changed.
func renumber(entries []WaitEntry) []WaitEntry {
	active := activeEntries(entries)
	changed := make([]WaitEntry, 0)
	for i := range active {
		if active[i].Position != i+1 {
			active[i].Position = i + 1
			changed = append(changed, active[i])
		}
	}
	return changed
}

// applyOrder assigns positions following order, which must contain every
// active entry id exactly once and nothing else.
func applyOrder(entries []WaitEntry, order []uuid.UUID) ([]WaitEntry, error) {
	active := activeEntries(entries)
	if len(order) != len(active) {
		return nil, fmt.Errorf("%w: got %d ids, event has %d active entries", ErrInvalidReorder, len(order), len(active))
	}

	byID := make(map[uuid.UUID]WaitEntry, len(active))
	for _, e := range active {
		byID[e.ID] = e
	}

	seen := make(map[uuid.UUID]struct{}, len(order))
	ordered := make([]WaitEntry, 0, len(order))
	for i, id := range order {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: entry %s listed twice", ErrInvalidReorder, id)
		}
		seen[id] = struct{}{}

		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: entry %s is not active on this event", ErrInvalidReorder, id)
		}
		e.Position = i + 1
		ordered = append(ordered, e)
	}
	return ordered, nil
}

// checkPositions verifies the active entries hold exactly the positions 1..N.
func checkPositions(entries []WaitEntry) error {
	active := activeEntries(entries)
	for i, e := range active {
		if e.Position != i+1 {
			return fmt.Errorf("position invariant broken: entry %s at %d, expected %d", e.ID, e.Position, i+1)
		}
	}
	return nil
}
