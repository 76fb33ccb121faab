package evalclient

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Dispatcher sends one evaluation request. *Client satisfies it; wrappers can
// add admission control without the notebook knowing.
type Dispatcher interface {
	Eval(ctx context.Context, sessionID int64, text string) (string, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, sessionID int64, text string) (string, error)

func (f DispatcherFunc) Eval(ctx context.Context, sessionID int64, text string) (string, error) {
	return f(ctx, sessionID, text)
}

// Limit caps the number of concurrent requests sent through d. A limit of 0
// or less returns d unchanged.
func Limit(d Dispatcher, n int) Dispatcher {
	if n <= 0 {
		return d
	}
	return &limited{next: d, sem: semaphore.NewWeighted(int64(n))}
}

type limited struct {
	next Dispatcher
	sem  *semaphore.Weighted
}

func (l *limited) Eval(ctx context.Context, sessionID int64, text string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.next.Eval(ctx, sessionID, text)
}
