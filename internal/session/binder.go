// Package session resolves the repl id that scopes every evaluation request.
//
// A Binder resolves at most one id per process. It first looks for an id left
// behind by an earlier run; only when none exists does it ask the session
// service for a new one, and it persists that id exactly once. A failed
// creation is terminal for the process: nothing is retried and callers must
// treat the session as unavailable.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// StorageKey is the persisted-state key holding the repl id.
const StorageKey = "replId"

// ErrUnavailable is returned once resolution has failed.
var ErrUnavailable = errors.New("session unavailable")

// ID identifies a repl on the evaluator.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// State is where a Binder is in its lifecycle.
type State int

const (
	Unresolved State = iota
	Resolving
	Resolved
	Failed // unresolved for good
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Store is the durable string-keyed state the id lives in.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Creator asks the session service for a new repl.
type Creator interface {
	CreateSession(ctx context.Context) (int64, error)
}

// Binder resolves and holds the session id.
type Binder struct {
	store   Store
	creator Creator
	logger  *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
	id    ID
	err   error
}

// NewBinder returns a Binder in the Unresolved state.
func NewBinder(store Store, creator Creator, logger *slog.Logger) *Binder {
	return &Binder{store: store, creator: creator, logger: logger}
}

// State reports the current state.
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ID returns the resolved id. The bool is false until resolution succeeds.
func (b *Binder) ID() (ID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id, b.state == Resolved
}

// Resolve returns the session id, resolving it on first use. Concurrent
// callers share a single attempt. After a failure every call returns an error
// wrapping ErrUnavailable without touching storage or the network.
func (b *Binder) Resolve(ctx context.Context) (ID, error) {
	b.mu.Lock()
	switch b.state {
	case Resolved:
		id := b.id
		b.mu.Unlock()
		return id, nil
	case Failed:
		err := b.err
		b.mu.Unlock()
		return 0, err
	}
	b.state = Resolving
	b.mu.Unlock()

	v, err, _ := b.group.Do(StorageKey, func() (any, error) {
		return b.resolve(ctx)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if b.state != Resolved {
			b.state = Failed
			b.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return 0, b.err
	}
	b.id = v.(ID)
	b.state = Resolved
	return b.id, nil
}

func (b *Binder) resolve(ctx context.Context) (ID, error) {
	raw, ok, err := b.store.Get(ctx, StorageKey)
	if err != nil {
		return 0, fmt.Errorf("read persisted session: %w", err)
	}
	if ok && raw != "" {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr == nil {
			b.logger.Debug("session restored", "repl_id", n)
			return ID(n), nil
		}
		b.logger.Warn("ignoring unparsable persisted session id", "value", raw, "error", perr)
	}

	n, err := b.creator.CreateSession(ctx)
	if err != nil {
		b.logger.Warn("session creation failed", "error", err)
		return 0, fmt.Errorf("create session: %w", err)
	}

	if err := b.store.Set(ctx, StorageKey, strconv.FormatInt(n, 10)); err != nil {
		return 0, fmt.Errorf("persist session: %w", err)
	}
	b.logger.Info("session created", "repl_id", n)
	return ID(n), nil
}
