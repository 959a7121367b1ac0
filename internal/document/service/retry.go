package service

import (
	"context"
	"time"

	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"
)

const (
	readAttempts = 3
	readBackoff  = 50 * time.Millisecond
	writeTimeout = 10 * time.Second
)

// retryRead retries a read while the store reports itself unavailable,
// doubling the wait each time. Writes never go through here: a retried write
// could apply twice.
func retryRead[T any](ctx context.Context, what string, fn func(context.Context) (T, error)) (T, error) {
	wait := readBackoff
	var (
		out T
		err error
	)
	for attempt := 1; attempt <= readAttempts; attempt++ {
		out, err = fn(ctx)
		if err == nil || !apperr.Retryable(err) || attempt == readAttempts {
			return out, err
		}
		logger.Sugar.Warnf("Read %s failed (attempt %d/%d), retrying in %s: %v", what, attempt, readAttempts, wait, err)
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return out, err
}

// commitContext detaches a write from the caller's cancellation once it has
// been accepted, so a disconnecting session cannot abort it halfway.
func commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}
