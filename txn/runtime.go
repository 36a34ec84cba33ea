// Package txn serializes state-mutating operations across components.
//
// A Runtime admits one top-level operation at a time. Each operation runs in a
// Tx that collects an undo log and the change records it emits. When the
// operation returns an error the undo log is replayed in reverse and its
// records are dropped; when it succeeds the records are published to the
// journal as one batch.
//
// External calls made during an operation may re-enter any component sharing
// the Runtime. Re-entrant work must use the context handed to the call: the
// Runtime finds the running Tx on that context and opens a nested frame
// instead of blocking on its own lock. A nested frame that fails unwinds only
// its own writes; one that succeeds folds into its parent.
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
)

type frameKey struct{}

// Runtime is the single writer shared by the registry and its extensions.
type Runtime struct {
	mu     sync.Mutex
	sink   journal.Sink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for commit and rollback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the wall clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Runtime publishing to sink. A nil sink discards records.
func New(sink journal.Sink, opts ...Option) *Runtime {
	if sink == nil {
		sink = &journal.Discard{}
	}
	r := &Runtime{sink: sink, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the runtime clock reading.
func (r *Runtime) Now() time.Time { return r.now() }

// Tx is the frame of one running operation.
type Tx struct {
	rt      *Runtime
	parent  *Tx
	undo    []func()
	records []journal.Record
	// done is set once the frame's Do returns. A context still carrying a
	// done frame no longer grants nested access.
	done atomic.Bool
}

// OnRollback registers fn to run if the operation fails.
// Callbacks run in reverse registration order.
func (tx *Tx) OnRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// Emit buffers a change record for publication on commit.
func (tx *Tx) Emit(kind journal.Kind, identity uint64, fields map[string]string) {
	tx.records = append(tx.records, journal.Record{
		Kind:     kind,
		Identity: identity,
		Fields:   fields,
		At:       tx.rt.now().UTC(),
	})
}

// Nested reports whether tx runs inside another operation.
func (tx *Tx) Nested() bool { return tx.parent != nil }

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.records = nil
}

// Do runs fn as one atomic operation.
//
// The returned records are the ones published by a top-level commit; nested
// frames return nil records because their parent publishes them. A context
// kept past the end of its operation runs as a new top-level operation.
func (r *Runtime) Do(ctx context.Context, op string, fn func(ctx context.Context, tx *Tx) error) ([]journal.Record, error) {
	if parent, ok := ctx.Value(frameKey{}).(*Tx); ok && parent.rt == r && !parent.done.Load() {
		child := &Tx{rt: r, parent: parent}
		defer child.done.Store(true)
		if err := fn(context.WithValue(ctx, frameKey{}, child), child); err != nil {
			child.rollback()
			r.logger.Debug("nested operation rolled back", "op", op, "kind", model.KindOf(err), "rule", model.RuleID(err))
			return nil, err
		}
		parent.undo = append(parent.undo, child.undo...)
		parent.records = append(parent.records, child.records...)
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Tx{rt: r}
	defer tx.done.Store(true)
	if err := fn(context.WithValue(ctx, frameKey{}, tx), tx); err != nil {
		tx.rollback()
		r.logger.Debug("operation rolled back", "op", op, "kind", model.KindOf(err), "rule", model.RuleID(err), "error", err)
		return nil, err
	}
	if len(tx.records) == 0 {
		return nil, nil
	}
	published, err := r.sink.Append(ctx, tx.records)
	if err != nil {
		tx.rollback()
		r.logger.Error("journal append failed; operation rolled back", "op", op, "error", err)
		return nil, model.WrapError(model.KindInternal, "AGENT-JOURNAL-001", fmt.Sprintf("%s: journal append failed", op), err)
	}
	return published, nil
}
