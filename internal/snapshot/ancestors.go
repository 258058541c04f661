package snapshot

import (
	"context"

	"github.com/weilyn/cadence/internal/store"
)

// LookupFunc resolves a single item ID that the snapshot does not contain,
// typically a closed parent still present in the store. Returning false
// means the ID does not resolve at all.
type LookupFunc func(ctx context.Context, id string) (store.WorkItem, bool)

// AncestorMap maps each snapshot item ID to its nearest enclosing epic.
// Enclosing means strictly above: an epic is never its own enclosing epic,
// so epics and standalone items map to the empty string unless a further
// epic sits above them. Only IDs that were in the snapshot get entries;
// parents discovered mid-walk do not.
type AncestorMap map[string]string

// Epic returns the nearest enclosing epic for id and whether id was part of
// the snapshot the map was built from.
func (m AncestorMap) Epic(id string) (string, bool) {
	epic, ok := m[id]
	return epic, ok
}

// BuildAncestors walks each item's parent chain to the nearest epic above
// it. The walk is memoized within the call, so a shared ancestor chain is
// traversed once no matter how many items hang off it. Parents absent from
// the snapshot are resolved through lookup; an unresolvable or cyclic chain
// yields no epic rather than an error. The result depends only on the
// snapshot contents and what lookup returns, never on call order.
func BuildAncestors(ctx context.Context, snap *Snapshot, lookup LookupFunc) AncestorMap {
	result := make(AncestorMap, snap.Len())

	// memo holds the resolved epic for every ancestor visited during any
	// walk, including intermediate parents that are not snapshot items.
	memo := make(map[string]string)

	items := snap.Items()
	for i := range items {
		result[items[i].ID] = enclosingEpic(ctx, &items[i], snap, lookup, memo)
	}
	return result
}

// enclosingEpic returns the nearest epic strictly above item. The item's own
// kind never matters here: a nested epic resolves to the epic above it, and
// a top-level epic resolves to nothing.
func enclosingEpic(ctx context.Context, item *store.WorkItem, snap *Snapshot, lookup LookupFunc, memo map[string]string) string {
	if item.Parent == "" {
		return ""
	}
	parent, ok := snap.Get(item.Parent)
	if !ok && lookup != nil {
		parent, ok = lookup(ctx, item.Parent)
	}
	if !ok {
		return ""
	}
	return resolveEpic(ctx, &parent, snap, lookup, memo, map[string]bool{item.ID: true})
}

// resolveEpic returns the nearest epic at or above item, walking parents.
// visiting guards against parent cycles in malformed stores.
func resolveEpic(ctx context.Context, item *store.WorkItem, snap *Snapshot, lookup LookupFunc, memo map[string]string, visiting map[string]bool) string {
	if epic, ok := memo[item.ID]; ok {
		return epic
	}
	if visiting[item.ID] {
		return ""
	}
	visiting[item.ID] = true

	var epic string
	switch {
	case item.Kind == store.KindEpic:
		epic = item.ID
	case item.Parent == "":
		epic = ""
	default:
		parent, ok := snap.Get(item.Parent)
		if !ok && lookup != nil {
			parent, ok = lookup(ctx, item.Parent)
		}
		if ok {
			epic = resolveEpic(ctx, &parent, snap, lookup, memo, visiting)
		}
	}

	memo[item.ID] = epic
	return epic
}
