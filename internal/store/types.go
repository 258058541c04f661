// Package store is the boundary to the external work-item store.
// Items live in a bd-compatible issue database reached through its CLI;
// everything cadence knows about outstanding work flows through this package.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/weilyn/cadence/internal/errors"
)

// Kind classifies a work item. The set is closed: anything else coming back
// from the store is rejected at decode time.
type Kind string

const (
	KindTask    Kind = "task"
	KindFeature Kind = "feature"
	KindEpic    Kind = "epic"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindFeature, KindEpic:
		return true
	}
	return false
}

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// WorkItem is a single unit of work in the store. IDs are hierarchical:
// "cd-12" is a root item and "cd-12.3.1" extends it, with each "." adding
// one level of depth.
type WorkItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Kind        Kind      `json:"issue_type"`
	Status      Status    `json:"status"`
	Parent      string    `json:"parent,omitempty"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Depth returns the hierarchy depth of the item's ID: the number of "."
// separated extensions. A root ID has depth 0.
func (w *WorkItem) Depth() int {
	return strings.Count(w.ID, ".")
}

// Validate checks the invariants every item must satisfy when it crosses the
// store boundary. Violations are malformed-item errors and are not retryable.
func (w *WorkItem) Validate() error {
	if w.ID == "" {
		return errors.NewStoreError("decoding item", fmt.Errorf("%w: missing id", errors.ErrMalformedItem)).WithFatal()
	}
	if !w.Kind.Valid() {
		return errors.NewStoreError("decoding item",
			fmt.Errorf("%w: unknown kind %q", errors.ErrMalformedItem, w.Kind)).WithItemID(w.ID).WithFatal()
	}
	if !w.Status.Valid() {
		return errors.NewStoreError("decoding item",
			fmt.Errorf("%w: unknown status %q", errors.ErrMalformedItem, w.Status)).WithItemID(w.ID).WithFatal()
	}
	return nil
}

// CreateOptions describes a new work item to file in the store.
type CreateOptions struct {
	Title       string
	Description string
	Kind        Kind
	Parent      string
	Priority    int
}
