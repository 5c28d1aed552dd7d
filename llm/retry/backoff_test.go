package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryerSucceedsEventually(t *testing.T) {
	t.Parallel()

	calls := 0
	r := New(fastPolicy(), nil)
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerExhausts(t *testing.T) {
	t.Parallel()

	calls := 0
	r := New(fastPolicy(), nil)
	err := r.Do(context.Background(), func() error {
		calls++
		return errors.New("always")
	})
	assert.Error(t, err)
	assert.Equal(t, 4, calls, "initial call plus MaxRetries")
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetryerPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	base := errors.New("bad api key")
	r := New(fastPolicy(), nil)
	err := r.Do(context.Background(), func() error {
		calls++
		return Permanent(base)
	})
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 1, calls)
}

func TestRetryerContextCancel(t *testing.T) {
	t.Parallel()

	policy := fastPolicy()
	policy.InitialDelay = time.Minute
	policy.MaxDelay = time.Minute
	r := New(policy, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}
