package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/hashicorp/go-multierror"
)

// ErrExecSequential executes every function and accumulates all errors
func ErrExecSequential(functions ...func() error) error {
	var multErr error

	for _, one := range functions {
		if err := one(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}

	return multErr
}

// ErrExecFormat formats the error returned from a function according to the provided format string.
func ErrExecFormat(format string, function func() error) func() error {
	return func() error {
		if err := function(); err != nil {
			return fmt.Errorf(format, err)
		}
		return nil
	}
}

// RetryOnBackoff retries fn up to attempts times with exponential backoff starting
// at sleep; errors wrapping constants.ErrNonRetryable stop immediately
func RetryOnBackoff(ctx context.Context, attempts int, sleep time.Duration, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = sleep
	policy.MaxElapsedTime = 0

	var bo backoff.BackOff = backoff.WithContext(policy, ctx)
	if attempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(attempts-1))
	}

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && errors.Is(err, constants.ErrNonRetryable) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
