package scheduler

import (
	"sort"
	"sync"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// Entry is one committed range on a provider timeline.
type Entry struct {
	BookingID string
	Range     TimeRange
}

// Timeline keeps one provider's committed ranges sorted by start. Stored ranges
// never overlap, so they are also sorted by end and a single neighbour decides
// any overlap query. Timeline is not safe for concurrent use.
type Timeline struct {
	entries []Entry
	ids     map[string]TimeRange
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[string]TimeRange)}
}

// Len returns the number of stored entries.
func (t *Timeline) Len() int { return len(t.entries) }

// firstEndingAfter returns the index of the first entry with End > at.
func (t *Timeline) firstEndingAfter(at TimeRange) int {
	return sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Range.End.After(at.Start)
	})
}

// Overlaps reports whether r intersects any stored range.
func (t *Timeline) Overlaps(r TimeRange) bool {
	_, found := t.FirstOverlap(r)
	return found
}

// FirstOverlap returns the earliest stored entry intersecting r.
func (t *Timeline) FirstOverlap(r TimeRange) (Entry, bool) {
	i := t.firstEndingAfter(r)
	if i < len(t.entries) && t.entries[i].Range.Start.Before(r.End) {
		return t.entries[i], true
	}
	return Entry{}, false
}

// Overlapping returns every stored entry intersecting r in start order.
func (t *Timeline) Overlapping(r TimeRange) []Entry {
	var out []Entry
	for i := t.firstEndingAfter(r); i < len(t.entries); i++ {
		if !t.entries[i].Range.Start.Before(r.End) {
			break
		}
		out = append(out, t.entries[i])
	}
	return out
}

// Insert stores r for bookingID. Overlapping ranges and reused ids are rejected.
func (t *Timeline) Insert(bookingID string, r TimeRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, exists := t.ids[bookingID]; exists {
		return appErrors.Clonef(appErrors.ErrConflict, "booking %s is already on the timeline", bookingID)
	}
	if hit, found := t.FirstOverlap(r); found {
		return appErrors.Clonef(appErrors.ErrConflict, "range %s overlaps booking %s", r, hit.BookingID)
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Range.Start.Before(r.Start)
	})
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = Entry{BookingID: bookingID, Range: r}
	t.ids[bookingID] = r
	return nil
}

// Remove drops bookingID and returns the range it held.
func (t *Timeline) Remove(bookingID string) (TimeRange, error) {
	r, ok := t.ids[bookingID]
	if !ok {
		return TimeRange{}, appErrors.Clonef(appErrors.ErrNotFound, "booking %s is not on the timeline", bookingID)
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Range.Start.Before(r.Start)
	})
	for ; i < len(t.entries); i++ {
		if t.entries[i].BookingID == bookingID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	delete(t.ids, bookingID)
	return r, nil
}

// Replace moves the entry of oldID to newID at r. On failure the timeline is
// left unchanged; a failed restore is an invariant violation.
func (t *Timeline) Replace(oldID, newID string, r TimeRange) error {
	old, err := t.Remove(oldID)
	if err != nil {
		return err
	}
	if err := t.Insert(newID, r); err != nil {
		if restoreErr := t.Insert(oldID, old); restoreErr != nil {
			return appErrors.Wrap(restoreErr, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
				"failed to restore booking "+oldID)
		}
		return err
	}
	return nil
}

// Lookup returns the range held by bookingID.
func (t *Timeline) Lookup(bookingID string) (TimeRange, bool) {
	r, ok := t.ids[bookingID]
	return r, ok
}

// CountWithin counts entries starting inside window.
func (t *Timeline) CountWithin(window TimeRange) int {
	lo := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Range.Start.Before(window.Start)
	})
	hi := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Range.Start.Before(window.End)
	})
	return hi - lo
}

// Entries returns a copy of the stored entries in start order.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Ranges returns a copy of the stored ranges in start order.
func (t *Timeline) Ranges() []TimeRange {
	out := make([]TimeRange, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Range
	}
	return out
}

// Clone returns an independent copy, used as a scratch index.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{entries: t.Entries(), ids: make(map[string]TimeRange, len(t.ids))}
	for id, r := range t.ids {
		c.ids[id] = r
	}
	return c
}

type guardedTimeline struct {
	mu sync.RWMutex
	tl *Timeline
}

// ConflictIndex owns the authoritative overlap state for every provider.
// Each provider has its own guard; providers never contend with each other.
type ConflictIndex struct {
	mu        sync.RWMutex
	providers map[string]*guardedTimeline
}

// NewConflictIndex returns an empty index.
func NewConflictIndex() *ConflictIndex {
	return &ConflictIndex{providers: make(map[string]*guardedTimeline)}
}

func (c *ConflictIndex) get(providerID string) *guardedTimeline {
	c.mu.RLock()
	g := c.providers[providerID]
	c.mu.RUnlock()
	return g
}

func (c *ConflictIndex) getOrCreate(providerID string) *guardedTimeline {
	if g := c.get(providerID); g != nil {
		return g
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.providers[providerID]; ok {
		return g
	}
	g := &guardedTimeline{tl: NewTimeline()}
	c.providers[providerID] = g
	return g
}

// Overlaps reports whether r intersects a committed range of the provider.
func (c *ConflictIndex) Overlaps(providerID string, r TimeRange) bool {
	g := c.get(providerID)
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tl.Overlaps(r)
}

// Insert commits r for bookingID; an overlap yields a conflict error.
func (c *ConflictIndex) Insert(providerID, bookingID string, r TimeRange) error {
	g := c.getOrCreate(providerID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tl.Insert(bookingID, r)
}

// Remove drops bookingID from the provider's timeline.
func (c *ConflictIndex) Remove(providerID, bookingID string) error {
	g := c.get(providerID)
	if g == nil {
		return appErrors.Clonef(appErrors.ErrNotFound, "booking %s is not on the timeline", bookingID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.tl.Remove(bookingID)
	return err
}

// Lookup returns the committed range of bookingID.
func (c *ConflictIndex) Lookup(providerID, bookingID string) (TimeRange, bool) {
	g := c.get(providerID)
	if g == nil {
		return TimeRange{}, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tl.Lookup(bookingID)
}

// CountWithin counts the provider's committed ranges starting inside window.
func (c *ConflictIndex) CountWithin(providerID string, window TimeRange) int {
	g := c.get(providerID)
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tl.CountWithin(window)
}

// Snapshot returns an immutable copy of the provider's timeline for readers.
func (c *ConflictIndex) Snapshot(providerID string) *Timeline {
	g := c.get(providerID)
	if g == nil {
		return NewTimeline()
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tl.Clone()
}

// Providers lists providers with at least one committed range.
func (c *ConflictIndex) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.providers))
	for id, g := range c.providers {
		g.mu.RLock()
		n := g.tl.Len()
		g.mu.RUnlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Reset replaces a provider's timeline wholesale; entries must not overlap.
func (c *ConflictIndex) Reset(providerID string, entries []Entry) error {
	fresh := NewTimeline()
	for _, e := range entries {
		if err := fresh.Insert(e.BookingID, e.Range); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
				"persisted bookings overlap for provider "+providerID)
		}
	}
	g := c.getOrCreate(providerID)
	g.mu.Lock()
	g.tl = fresh
	g.mu.Unlock()
	return nil
}

// View runs fn with read access to the provider's live timeline.
func (c *ConflictIndex) View(providerID string, fn func(*Timeline) error) error {
	g := c.getOrCreate(providerID)
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.tl)
}

// Replace moves a provider's entry from oldID to newID at r in one step.
// On failure the timeline is left unchanged.
func (c *ConflictIndex) Replace(providerID, oldID, newID string, r TimeRange) error {
	g := c.getOrCreate(providerID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tl.Replace(oldID, newID, r)
}
