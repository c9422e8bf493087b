// Package retry runs fallible operations with bounded exponential backoff.
//
// It is shared by the storage layer (file reads and atomic writes) and the
// Telegram transport (startup connection checks). Callers decide which
// errors are worth retrying; anything else is returned after the first
// attempt.
package retry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts uint
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// MaxInterval caps a single delay.
	MaxInterval time.Duration
}

// DefaultPolicy is three attempts starting at 100ms and doubling.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:    3,
		Initial:     100 * time.Millisecond,
		Multiplier:  2,
		MaxInterval: 2 * time.Second,
	}
}

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, next time.Duration)

// Do runs op until it succeeds, returns an error that retryable rejects, the
// policy runs out of attempts, or ctx is done. The last error is returned.
// A nil retryable treats every error as retryable.
func Do(ctx context.Context, p Policy, op func() error, retryable func(error) bool, notify Notify) error {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Initial
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	if eb.Multiplier < 1 {
		eb.Multiplier = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.Attempts),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && retryable != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

// IsFilesystemError reports whether err came from the filesystem and may be
// transient (permissions being fixed, a busy device, a full disk being
// cleaned). A missing file is not transient.
func IsFilesystemError(err error) bool {
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return false
	}
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	var sysErr *os.SyscallError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr) || errors.As(err, &sysErr)
}
