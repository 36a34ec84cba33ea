package txn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
)

func TestCommitPublishesRecords(t *testing.T) {
	mem := journal.NewMemory()
	rt := New(mem)

	state := 0
	recs, err := rt.Do(context.Background(), "set", func(ctx context.Context, tx *Tx) error {
		prev := state
		state = 1
		tx.OnRollback(func() { state = prev })
		tx.Emit(journal.KindMemoryUpdated, 7, map[string]string{"a": "b"})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(1), recs[0].Seq)
	assert.Equal(t, 1, state)
	assert.Equal(t, 1, mem.Len())
}

func TestFailureRollsBackAndDropsRecords(t *testing.T) {
	mem := journal.NewMemory()
	rt := New(mem)

	state := []int{1}
	boom := model.NewError(model.KindInvalidInput, "T-1", "boom")
	_, err := rt.Do(context.Background(), "append", func(ctx context.Context, tx *Tx) error {
		state = append(state, 2)
		tx.OnRollback(func() { state = state[:len(state)-1] })
		state = append(state, 3)
		tx.OnRollback(func() { state = state[:len(state)-1] })
		tx.Emit(journal.KindMemoryUpdated, 1, nil)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, state)
	assert.Equal(t, 0, mem.Len())
}

func TestReentrantCallJoinsFrame(t *testing.T) {
	mem := journal.NewMemory()
	rt := New(mem)

	var order []string
	_, err := rt.Do(context.Background(), "outer", func(ctx context.Context, tx *Tx) error {
		order = append(order, "outer")
		tx.Emit(journal.KindExecuted, 1, nil)

		// A failing nested frame unwinds only itself.
		_, nerr := rt.Do(ctx, "inner-fail", func(ctx context.Context, inner *Tx) error {
			require.True(t, inner.Nested())
			order = append(order, "inner-fail")
			inner.OnRollback(func() { order = order[:len(order)-1] })
			inner.Emit(journal.KindFundsDeposited, 1, nil)
			return errors.New("nope")
		})
		require.Error(t, nerr)

		_, nerr = rt.Do(ctx, "inner-ok", func(ctx context.Context, inner *Tx) error {
			order = append(order, "inner-ok")
			inner.Emit(journal.KindFundsDeposited, 1, nil)
			return nil
		})
		return nerr
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner-ok"}, order)

	recs := mem.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, journal.KindExecuted, recs[0].Kind)
	assert.Equal(t, journal.KindFundsDeposited, recs[1].Kind)
}

func TestParentFailureUnwindsCommittedChild(t *testing.T) {
	rt := New(nil)
	state := 0
	_, err := rt.Do(context.Background(), "outer", func(ctx context.Context, tx *Tx) error {
		_, _ = rt.Do(ctx, "inner", func(ctx context.Context, inner *Tx) error {
			state = 5
			inner.OnRollback(func() { state = 0 })
			return nil
		})
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Equal(t, 0, state)
}

type failingSink struct{}

func (failingSink) Append(context.Context, []journal.Record) ([]journal.Record, error) {
	return nil, errors.New("disk full")
}

func TestJournalFailureRollsBack(t *testing.T) {
	rt := New(failingSink{})
	state := 0
	_, err := rt.Do(context.Background(), "op", func(ctx context.Context, tx *Tx) error {
		state = 1
		tx.OnRollback(func() { state = 0 })
		tx.Emit(journal.KindExecuted, 1, nil)
		return nil
	})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindInternal))
	assert.Equal(t, 0, state)
}

func TestTopLevelOperationsAreSerialized(t *testing.T) {
	rt := New(nil)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rt.Do(context.Background(), "inc", func(ctx context.Context, tx *Tx) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, counter)
}

func TestKeptContextRunsAsTopLevel(t *testing.T) {
	mem := journal.NewMemory()
	rt := New(mem)

	var kept, keptInner context.Context
	_, err := rt.Do(context.Background(), "outer", func(ctx context.Context, tx *Tx) error {
		kept = ctx
		_, err := rt.Do(ctx, "inner", func(ctx context.Context, inner *Tx) error {
			keptInner = ctx
			return nil
		})
		return err
	})
	require.NoError(t, err)

	for _, ctx := range []context.Context{kept, keptInner} {
		recs, err := rt.Do(ctx, "late", func(ctx context.Context, tx *Tx) error {
			assert.False(t, tx.Nested())
			assert.False(t, rt.mu.TryLock(), "late operation must hold the writer lock")
			tx.Emit(journal.KindFundsDeposited, 1, nil)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, recs, 1)
	}
	assert.Equal(t, 2, mem.Len())
}

func TestKeptContextFromGoroutineWaitsForWriter(t *testing.T) {
	rt := New(nil)

	var kept context.Context
	_, err := rt.Do(context.Background(), "first", func(ctx context.Context, tx *Tx) error {
		kept = ctx
		return nil
	})
	require.NoError(t, err)

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_, _ = rt.Do(context.Background(), "holder", func(ctx context.Context, tx *Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	done := make(chan struct{})
	go func() {
		_, _ = rt.Do(kept, "late", func(ctx context.Context, tx *Tx) error { return nil })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("late operation ran while another writer held the runtime")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
}
