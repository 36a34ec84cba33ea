// Package journal holds the durable audit trail of change records.
//
// Every successful mutation publishes exactly one Record. Records are
// appended atomically per operation and never rewritten; Seq is assigned by
// the sink and is gap-free from 1.
package journal

import (
	"context"
	"errors"
	"time"
)

// Kind names the change a record describes.
type Kind string

const (
	KindIdentityCreated     Kind = "IdentityCreated"
	KindAgentReproduced     Kind = "AgentReproduced"
	KindMemoryUpdated       Kind = "MemoryUpdated"
	KindReproductionToggled Kind = "ReproductionToggled"
	KindCertificationSet    Kind = "CertificationSet"
	KindCustodyTransferred  Kind = "CustodyTransferred"
	KindAssetBound          Kind = "AssetBound"
	KindAssetUnbound        Kind = "AssetUnbound"
	KindCapabilityAdded     Kind = "CapabilityAdded"
	KindCapabilityRevoked   Kind = "CapabilityRevoked"
	KindFundsDeposited      Kind = "FundsDeposited"
	KindExecuted            Kind = "Executed"
	KindBatchExecuted       Kind = "BatchExecuted"
)

// Record is one change record.
//
// Fields carries the affected identifiers and before/after values in their
// canonical text form (0x-prefixed hex for hashes and addresses, base-10 for
// integers).
type Record struct {
	Seq      uint64            `json:"seq"`
	Kind     Kind              `json:"kind"`
	Identity uint64            `json:"identity"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}

// Sink persists records. Append must be all-or-nothing for the batch.
type Sink interface {
	Append(ctx context.Context, recs []Record) ([]Record, error)
}

// Reader replays persisted records.
type Reader interface {
	// Since returns records with Seq > after, in order.
	Since(ctx context.Context, after uint64) ([]Record, error)
}

var (
	ErrClosed      = errors.New("journal: closed")
	ErrSequenceGap = errors.New("journal: sequence gap")
)

// Discard is a Sink that numbers records and keeps nothing.
type Discard struct{ seq uint64 }

func (d *Discard) Append(_ context.Context, recs []Record) ([]Record, error) {
	out := make([]Record, len(recs))
	for i, r := range recs {
		d.seq++
		r.Seq = d.seq
		out[i] = r
	}
	return out, nil
}
