package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := pingWithRetry(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond)

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := pingWithRetry(context.Background(), func(context.Context) error {
			calls++
			return errors.New("connection refused")
		}, 3, time.Millisecond)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 3, calls)
	})
}

func TestOpen_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{URL: "postgres://%zz"})
	require.Error(t, err)
}
