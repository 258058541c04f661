package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/weilyn/cadence/internal/errors"
	"github.com/weilyn/cadence/internal/logging"
)

// commandRunner executes a store CLI invocation and returns its stdout.
// Swapped out in tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Client talks to the work-item store through its CLI, requesting JSON
// output and decoding it into WorkItems. Transient failures are retried
// with doubling backoff before surfacing.
type Client struct {
	command string
	runner  commandRunner
	retries int
	backoff time.Duration
	logger  *logging.Logger

	// retryCount accumulates transient retries across the client's
	// lifetime; the loop records per-iteration deltas.
	retryCount atomic.Int64
}

// NewClient creates a store client that shells out to command.
func NewClient(command string, retries int, backoff time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{
		command: command,
		runner:  execRunner,
		retries: retries,
		backoff: backoff,
		logger:  logger,
	}
}

// ListReady returns items that are open with no unresolved blockers,
// ordered by the store's priority ranking.
func (c *Client) ListReady(ctx context.Context) ([]WorkItem, error) {
	return c.list(ctx, "listing ready items", "ready", "--json")
}

// ListInProgress returns items currently marked in_progress.
func (c *Client) ListInProgress(ctx context.Context) ([]WorkItem, error) {
	return c.list(ctx, "listing in-progress items", "list", "--status", "in_progress", "--json")
}

// ListBlocked returns items waiting on unresolved dependencies.
func (c *Client) ListBlocked(ctx context.Context) ([]WorkItem, error) {
	return c.list(ctx, "listing blocked items", "list", "--status", "blocked", "--json")
}

// Show fetches a single item by ID. A missing item is ErrItemNotFound
// and is not retried.
func (c *Client) Show(ctx context.Context, id string) (*WorkItem, error) {
	out, err := c.runRetry(ctx, "showing item", "show", id, "--json")
	if err != nil {
		if isNotFoundOutput(err) {
			return nil, errors.NewStoreError("showing item", errors.ErrItemNotFound).WithItemID(id).WithFatal()
		}
		return nil, err
	}

	var item WorkItem
	if err := json.Unmarshal(out, &item); err != nil {
		return nil, errors.NewStoreError("decoding item",
			fmt.Errorf("%w: %v", errors.ErrMalformedItem, err)).WithItemID(id).WithFatal()
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create files a new item and returns it as the store recorded it.
func (c *Client) Create(ctx context.Context, opts CreateOptions) (*WorkItem, error) {
	kind := opts.Kind
	if kind == "" {
		kind = KindTask
	}

	args := []string{"create", opts.Title, "--type", string(kind), "--json"}
	if opts.Description != "" {
		args = append(args, "-d", opts.Description)
	}
	if opts.Parent != "" {
		args = append(args, "--parent", opts.Parent)
	}
	if opts.Priority > 0 {
		args = append(args, "-p", strconv.Itoa(opts.Priority))
	}

	out, err := c.runRetry(ctx, "creating item", args...)
	if err != nil {
		return nil, err
	}

	var item WorkItem
	if err := json.Unmarshal(out, &item); err != nil {
		return nil, errors.NewStoreError("decoding created item",
			fmt.Errorf("%w: %v", errors.ErrMalformedItem, err)).WithFatal()
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return &item, nil
}

// Close marks an item closed with the given reason.
func (c *Client) Close(ctx context.Context, id, reason string) error {
	args := []string{"close", id}
	if reason != "" {
		args = append(args, "-r", reason)
	}

	_, err := c.runRetry(ctx, "closing item", args...)
	if err != nil {
		if isNotFoundOutput(err) {
			return errors.NewStoreError("closing item", errors.ErrItemNotFound).WithItemID(id).WithFatal()
		}
		return err
	}
	return nil
}

// Sync pushes and pulls store state against its upstream. The caller is
// expected to bound ctx; sync failures are reported as ErrSyncFailed and
// left to the caller to treat as non-fatal.
func (c *Client) Sync(ctx context.Context) error {
	if _, err := c.runRetry(ctx, "syncing store", "sync"); err != nil {
		return errors.NewStoreError("syncing store", fmt.Errorf("%w: %v", errors.ErrSyncFailed, err))
	}
	return nil
}

// list runs a listing subcommand and decodes the JSON array, validating
// every item at the boundary.
func (c *Client) list(ctx context.Context, op string, args ...string) ([]WorkItem, error) {
	out, err := c.runRetry(ctx, op, args...)
	if err != nil {
		return nil, err
	}

	// An empty result may be an empty array or no output at all.
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}

	var items []WorkItem
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, errors.NewStoreError(op,
			fmt.Errorf("%w: %v", errors.ErrMalformedItem, err)).WithFatal()
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// runRetry invokes the store CLI, retrying transient failures with doubling
// backoff. Context cancellation stops retries immediately.
func (c *Client) runRetry(ctx context.Context, op string, args ...string) ([]byte, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.retryCount.Add(1)
			c.logger.Debug("retrying store command",
				"op", op, "attempt", attempt, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return nil, errors.NewStoreError(op, errors.ErrCanceled).WithFatal()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		out, err := c.runner(ctx, c.command, args...)
		if err == nil {
			return out, nil
		}

		if ctx.Err() != nil {
			return nil, errors.NewStoreError(op, errors.ErrCanceled).WithFatal()
		}
		if isNotFoundOutput(err) {
			// Missing items won't appear on retry.
			return nil, err
		}
		lastErr = err
	}

	return nil, errors.NewStoreError(op,
		fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, lastErr)).WithFatal()
}

// RetryCount returns the total transient retries spent so far.
func (c *Client) RetryCount() int64 {
	return c.retryCount.Load()
}

// isNotFoundOutput sniffs the CLI's stderr for a missing-item report.
func isNotFoundOutput(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no such issue")
}
