package web

// limiter.go bounds how many uploads are parsed and processed at once.
//
// Each upload holds a slot for the whole request. When all slots are taken
// a request waits up to maxWait and then fails with errBusy. Drain lets
// shutdown wait for in-flight uploads.

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

var errBusy = errors.New("too many concurrent uploads")

type limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

func newLimiter(maxConcurrent int, maxWait time.Duration) *limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &limiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// acquire takes a slot. The caller must release it.
func (l *limiter) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errBusy
	}
}

func (l *limiter) release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of uploads holding a slot.
func (l *limiter) Active() int {
	return int(l.active.Load())
}

// drain blocks until no upload holds a slot or ctx ends.
func (l *limiter) drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// middleware rejects an upload that cannot get a slot in time.
func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := l.acquire(r.Context()); err != nil {
			w.Header().Set("Retry-After", "5")
			respondError(w, r, err)
			return
		}
		defer l.release()
		next.ServeHTTP(w, r)
	})
}
