package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_HistoryIsBoundedAndChronological(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(func(o *Options) { o.MaxInteractions = 50 })

	for _, n := range []int{1, 10, 50, 51, 120} {
		sid := fmt.Sprintf("s-%d", n)
		for i := 0; i < n; i++ {
			require.NoError(t, store.StoreInteraction(ctx, sid, core.Interaction{Query: fmt.Sprintf("q%d", i)}))
		}
		history, err := store.GetHistory(ctx, sid, 0)
		require.NoError(t, err)

		want := min(n, 50)
		require.Len(t, history, want)
		assert.Equal(t, fmt.Sprintf("q%d", n-want), history[0].Query)
		assert.Equal(t, fmt.Sprintf("q%d", n-1), history[want-1].Query)
	}
}

func TestInMemoryStore_GetHistoryLimit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	for i := 0; i < 12; i++ {
		require.NoError(t, store.StoreInteraction(ctx, "s", core.Interaction{Query: fmt.Sprintf("q%d", i)}))
	}

	history, err := store.GetHistory(ctx, "s", 10)
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, "q2", history[0].Query)
	assert.Equal(t, "q11", history[9].Query)
}

func TestInMemoryStore_UnknownSession(t *testing.T) {
	store := NewInMemoryStore()
	history, err := store.GetHistory(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestInMemoryStore_ClearHistory(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.StoreInteraction(ctx, "s", core.Interaction{Query: "q"}))

	cleared, err := store.ClearHistory(ctx, "s")
	require.NoError(t, err)
	assert.True(t, cleared)

	history, _ := store.GetHistory(ctx, "s", 10)
	assert.Empty(t, history)

	cleared, err = store.ClearHistory(ctx, "s")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestInMemoryStore_StoreRacingClear(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(func(o *Options) { o.MaxInteractions = 500 })

	const n = 300
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_, _ = store.ClearHistory(ctx, "s")
			}
		}
	}()

	for i := 0; i < n; i++ {
		require.NoError(t, store.StoreInteraction(ctx, "s", core.Interaction{Query: fmt.Sprintf("q%d", i)}))
	}
	close(done)
	wg.Wait()

	// whatever survived the last clear is a contiguous tail of the writes
	history, err := store.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	for i, in := range history {
		assert.Equal(t, fmt.Sprintf("q%d", n-len(history)+i), in.Query)
	}

	require.NoError(t, store.StoreInteraction(ctx, "s", core.Interaction{Query: "after"}))
	history, err = store.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "after", history[len(history)-1].Query)
}

func TestInMemoryStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for _, sid := range []string{"a", "b"} {
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				_ = store.StoreInteraction(ctx, sid, core.Interaction{Query: sid})
			}
		}(sid)
	}
	wg.Wait()

	for _, sid := range []string{"a", "b"} {
		history, err := store.GetHistory(ctx, sid, 0)
		require.NoError(t, err)
		require.Len(t, history, 30)
		for _, in := range history {
			assert.Equal(t, sid, in.Query)
		}
	}
}

func TestInMemoryStore_SnapshotAndHealth(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.StoreInteraction(ctx, "s", core.Interaction{Query: "q"}))

	snap, ok := store.Session("s")
	require.True(t, ok)
	assert.Equal(t, 1, snap.Len())
	_, ok = store.Session("missing")
	assert.False(t, ok)

	status, err := store.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusHealthy, status.Status)
	assert.Equal(t, 1, status.Details["active_sessions"])
}
