package client

import (
	"context"
	"errors"
	"sync"

	"hrms/internal/apperror"
	"hrms/internal/attendance"
)

// ErrSuperseded is returned by a refresh whose response arrived after a newer
// refresh of the same view was started. Its result is discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// view holds the last accepted server response for one screen. Only the most
// recently started load may replace it.
type view[T any] struct {
	session *Session
	deps    []attendance.Entity

	mu       sync.Mutex
	latest   uint64
	data     T
	loaded   bool
	loadedAt RefreshTokens
	err      error
}

func newView[T any](session *Session, deps ...attendance.Entity) *view[T] {
	return &view[T]{session: session, deps: deps}
}

// load fetches and stores a new value. On failure the previously shown value
// stays in place and only the error is recorded.
func (v *view[T]) load(ctx context.Context, fetch func(context.Context) (T, error)) error {
	v.mu.Lock()
	v.latest++
	ticket := v.latest
	v.mu.Unlock()

	tokens := v.session.Tokens()
	data, err := readWithRetry(ctx, fetch)

	v.mu.Lock()
	defer v.mu.Unlock()

	if ticket != v.latest {
		return ErrSuperseded
	}
	if err != nil {
		v.err = err
		return err
	}
	v.data, v.loaded, v.loadedAt, v.err = data, true, tokens, nil
	return nil
}

// invalidate discards the shown value and any load still in flight, used when
// the view's parameters change.
func (v *view[T]) invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.latest++
	v.data, v.loaded, v.err = zero, false, nil
}

func (v *view[T]) stale() bool {
	current := v.session.Tokens()

	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.loaded || current.newerThan(v.loadedAt, v.deps)
}

func (v *view[T]) snapshot() (T, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data, v.loaded, v.err
}

// readWithRetry retries a read once when the server reported a transient
// store failure. Mutations never go through here.
func readWithRetry[T any](ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	data, err := fetch(ctx)
	if err == nil || !apperror.Retryable(err) || ctx.Err() != nil {
		return data, err
	}
	return fetch(ctx)
}
