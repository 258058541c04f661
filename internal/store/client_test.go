package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/weilyn/cadence/internal/errors"
	"github.com/weilyn/cadence/internal/logging"
)

// fakeRunner returns canned responses per invocation, in order.
type fakeRunner struct {
	calls     [][]string
	responses []fakeResponse
}

type fakeResponse struct {
	out []byte
	err error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("unexpected call: %s %v", name, args)
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp.out, resp.err
}

func newTestClient(f *fakeRunner, retries int) *Client {
	c := NewClient("bd", retries, time.Millisecond, logging.NopLogger())
	c.runner = f.run
	return c
}

func TestListReadyDecodesAndValidates(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{out: []byte(`[
			{"id":"cd-1","title":"Wire config","issue_type":"task","status":"open","priority":1},
			{"id":"cd-2","title":"Store layer","issue_type":"epic","status":"open","priority":0}
		]`)},
	}}
	c := newTestClient(f, 0)

	items, err := c.ListReady(context.Background())
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "cd-1" || items[0].Kind != KindTask {
		t.Errorf("unexpected first item: %+v", items[0])
	}

	wantArgs := []string{"bd", "ready", "--json"}
	if len(f.calls) != 1 || fmt.Sprint(f.calls[0]) != fmt.Sprint(wantArgs) {
		t.Errorf("expected call %v, got %v", wantArgs, f.calls)
	}
}

func TestListRejectsUnknownKind(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{out: []byte(`[{"id":"cd-1","title":"x","issue_type":"saga","status":"open"}]`)},
	}}
	c := newTestClient(f, 0)

	_, err := c.ListReady(context.Background())
	if !errors.Is(err, errors.ErrMalformedItem) {
		t.Fatalf("expected ErrMalformedItem, got %v", err)
	}
	if errors.IsRetryable(err) {
		t.Error("malformed items must not be retryable")
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{out: []byte(`[{"id":"cd-1","title":"x","issue_type":"task","status":"paused"}]`)},
	}}
	c := newTestClient(f, 0)

	if _, err := c.ListReady(context.Background()); !errors.Is(err, errors.ErrMalformedItem) {
		t.Fatalf("expected ErrMalformedItem, got %v", err)
	}
}

func TestListEmptyOutput(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{{out: []byte("\n")}}}
	c := newTestClient(f, 0)

	items, err := c.ListReady(context.Background())
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestRunRetryTransientThenSuccess(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{err: fmt.Errorf("connection refused")},
		{err: fmt.Errorf("connection refused")},
		{out: []byte(`[]`)},
	}}
	c := newTestClient(f, 3)

	if _, err := c.ListReady(context.Background()); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(f.calls))
	}
}

func TestRunRetryExhaustedIsFatal(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
	}}
	c := newTestClient(f, 2)

	_, err := c.ListReady(context.Background())
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("exhausted retries should be fatal")
	}
	if len(f.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(f.calls))
	}
}

func TestShowNotFoundNotRetried(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{err: fmt.Errorf("exit status 1: issue cd-99 not found")},
	}}
	c := newTestClient(f, 3)

	_, err := c.Show(context.Background(), "cd-99")
	if !errors.Is(err, errors.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("not-found should not be retried, got %d attempts", len(f.calls))
	}
}

func TestCreateBuildsArgs(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{out: []byte(`{"id":"cd-3.1","title":"Follow up","issue_type":"task","status":"open","parent":"cd-3"}`)},
	}}
	c := newTestClient(f, 0)

	item, err := c.Create(context.Background(), CreateOptions{
		Title:    "Follow up",
		Parent:   "cd-3",
		Priority: 2,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.ID != "cd-3.1" || item.Parent != "cd-3" {
		t.Errorf("unexpected created item: %+v", item)
	}

	want := []string{"bd", "create", "Follow up", "--type", "task", "--json", "--parent", "cd-3", "-p", "2"}
	if fmt.Sprint(f.calls[0]) != fmt.Sprint(want) {
		t.Errorf("expected args %v, got %v", want, f.calls[0])
	}
}

func TestSyncFailureIsSyncError(t *testing.T) {
	f := &fakeRunner{responses: []fakeResponse{
		{err: fmt.Errorf("remote unreachable")},
	}}
	c := newTestClient(f, 0)

	err := c.Sync(context.Background())
	if !errors.Is(err, errors.ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
}

func TestWorkItemDepth(t *testing.T) {
	tests := []struct {
		id    string
		depth int
	}{
		{"cd-1", 0},
		{"cd-1.2", 1},
		{"cd-1.2.3", 2},
	}

	for _, tt := range tests {
		item := WorkItem{ID: tt.id}
		if got := item.Depth(); got != tt.depth {
			t.Errorf("Depth(%q) = %d, want %d", tt.id, got, tt.depth)
		}
	}
}
