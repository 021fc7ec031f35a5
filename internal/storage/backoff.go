package storage

import (
	"time"
)

// retryBackoff computes the exponential backoff delay for a Google Drive
// retry attempt (1-indexed), capped at maxDelay.
type retryBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryBackoff() retryBackoff {
	return retryBackoff{
		baseDelay: 1 * time.Second,
		maxDelay:  60 * time.Second,
	}
}

func (b retryBackoff) delay(attempt int) time.Duration {
	d := b.baseDelay * time.Duration(1<<uint(attempt-1))
	if d > b.maxDelay {
		d = b.maxDelay
	}
	return d
}
