// Package snapshot captures point-in-time views of the work-item store.
// The loop takes a snapshot before and after each iteration and reconciles
// the two; snapshots are immutable once captured so the comparison is
// unaffected by whatever the store does in the meantime.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weilyn/cadence/internal/store"
)

// Lister is the slice of the store client a capture needs.
type Lister interface {
	ListReady(ctx context.Context) ([]store.WorkItem, error)
	ListInProgress(ctx context.Context) ([]store.WorkItem, error)
	ListBlocked(ctx context.Context) ([]store.WorkItem, error)
}

// Snapshot is an immutable view of the store's open work at a point in time.
// The ID index is built lazily on first lookup and is invisible to String
// and to Equal; two snapshots with the same items compare equal whether or
// not either has been indexed.
type Snapshot struct {
	items      []store.WorkItem
	capturedAt time.Time

	indexOnce sync.Once
	index     map[string]int
}

// New builds a snapshot over items. The slice is copied so later mutation by
// the caller cannot leak in.
func New(items []store.WorkItem, capturedAt time.Time) *Snapshot {
	copied := make([]store.WorkItem, len(items))
	copy(copied, items)
	return &Snapshot{items: copied, capturedAt: capturedAt}
}

// Capture lists ready, in-progress, and blocked work and freezes the result.
// Closed items are deliberately absent: the loop only reasons about work that
// can still move.
func Capture(ctx context.Context, lister Lister) (*Snapshot, error) {
	ready, err := lister.ListReady(ctx)
	if err != nil {
		return nil, err
	}
	inProgress, err := lister.ListInProgress(ctx)
	if err != nil {
		return nil, err
	}
	blocked, err := lister.ListBlocked(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]store.WorkItem, 0, len(ready)+len(inProgress)+len(blocked))
	items = append(items, ready...)
	items = append(items, inProgress...)
	items = append(items, blocked...)

	return New(items, time.Now()), nil
}

// buildIndex materializes the ID index exactly once.
func (s *Snapshot) buildIndex() {
	s.indexOnce.Do(func() {
		s.index = make(map[string]int, len(s.items))
		for i := range s.items {
			s.index[s.items[i].ID] = i
		}
	})
}

// Get returns the item with the given ID, or false if the snapshot does not
// contain it. The first call pays for index construction; later calls are
// map lookups. An empty snapshot resolves every ID to not-found.
func (s *Snapshot) Get(id string) (store.WorkItem, bool) {
	s.buildIndex()
	i, ok := s.index[id]
	if !ok {
		return store.WorkItem{}, false
	}
	return s.items[i], true
}

// Items returns a copy of the snapshot's items.
func (s *Snapshot) Items() []store.WorkItem {
	copied := make([]store.WorkItem, len(s.items))
	copy(copied, s.items)
	return copied
}

// Len returns the number of items in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// Empty reports whether the snapshot holds no items.
func (s *Snapshot) Empty() bool {
	return len(s.items) == 0
}

// CapturedAt returns when the snapshot was taken.
func (s *Snapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// String renders a short human summary. Index state never appears here.
func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot[%d items @ %s]", len(s.items), s.capturedAt.Format(time.RFC3339))
}

// Equal reports whether two snapshots hold the same items in the same order
// at the same capture time. Lookup index state is excluded: an indexed
// snapshot equals its unindexed twin.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if !s.capturedAt.Equal(other.capturedAt) || len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// ChangedSince compares this snapshot against an earlier one and returns the
// set of item IDs whose status changed plus IDs that are new, along with the
// IDs present before but absent now (typically closed in between).
func (s *Snapshot) ChangedSince(prev *Snapshot) (changed map[string]struct{}, gone []string) {
	changed = make(map[string]struct{})

	for i := range s.items {
		item := &s.items[i]
		before, ok := prev.Get(item.ID)
		if !ok {
			changed[item.ID] = struct{}{}
			continue
		}
		if before.Status != item.Status {
			changed[item.ID] = struct{}{}
		}
	}

	for i := range prev.items {
		id := prev.items[i].ID
		if _, ok := s.Get(id); !ok {
			changed[id] = struct{}{}
			gone = append(gone, id)
		}
	}

	return changed, gone
}
