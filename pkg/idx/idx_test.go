package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewIDUnique(t *testing.T) {
	t.Parallel()

	const n = 1000
	seen := make(map[int64]struct{}, n)
	for range n {
		id := idx.NewID()
		_, dup := seen[id]
		require.False(t, dup, "snowflake IDs must not collide")
		seen[id] = struct{}{}
	}
}

func TestNewIDConcurrent(t *testing.T) {
	t.Parallel()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id := idx.NewID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}

func TestHandlesSortByTime(t *testing.T) {
	t.Parallel()

	earlier := idx.NewHandleAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := idx.NewHandleAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Less(t, earlier, later)
}

func TestParseHandle(t *testing.T) {
	t.Parallel()

	h := idx.NewHandle()
	parsed, err := idx.ParseHandle("  " + h + " ")
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = idx.ParseHandle("")
	require.ErrorIs(t, err, idx.ErrInvalid)

	_, err = idx.ParseHandle("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}

func TestHandleTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	h := idx.NewHandleAt(at)
	require.WithinDuration(t, at, idx.HandleTime(h), time.Millisecond)

	require.True(t, idx.HandleTime("garbage").IsZero())
}
