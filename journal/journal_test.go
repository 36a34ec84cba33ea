package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(kind Kind, id uint64) Record {
	return Record{
		Kind:     kind,
		Identity: id,
		Fields:   map[string]string{"k": "v"},
		At:       time.Unix(1700000000, 0).UTC(),
	}
}

func runJournalSuite(t *testing.T, sink Sink, reader Reader) {
	t.Helper()
	ctx := context.Background()

	out, err := sink.Append(ctx, []Record{sample(KindIdentityCreated, 1), sample(KindAgentReproduced, 2)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(1), out[0].Seq)
	assert.Equal(t, uint64(2), out[1].Seq)

	out, err = sink.Append(ctx, []Record{sample(KindMemoryUpdated, 1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), out[0].Seq)

	all, err := reader.Since(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, KindIdentityCreated, all[0].Kind)
	assert.Equal(t, KindMemoryUpdated, all[2].Kind)
	assert.Equal(t, "v", all[2].Fields["k"])

	tail, err := reader.Since(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Seq)

	none, err := reader.Since(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryJournal(t *testing.T) {
	m := NewMemory()
	runJournalSuite(t, m, m)
	assert.Equal(t, 3, m.Len())

	// Records returned to callers are copies.
	recs := m.Records()
	recs[0].Fields["k"] = "mutated"
	assert.Equal(t, "v", m.Records()[0].Fields["k"])
}

func TestBadgerJournalInMemory(t *testing.T) {
	j, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer j.Close()
	runJournalSuite(t, j, j)
	assert.Equal(t, uint64(3), j.LastSeq())
}

func TestBadgerJournalRecoversSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	_, err = j.Append(ctx, []Record{sample(KindIdentityCreated, 1), sample(KindFundsDeposited, 1)})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = j.Append(ctx, []Record{sample(KindExecuted, 1)})
	require.ErrorIs(t, err, ErrClosed)

	j2, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer j2.Close()
	assert.Equal(t, uint64(2), j2.LastSeq())

	out, err := j2.Append(ctx, []Record{sample(KindExecuted, 1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), out[0].Seq)

	all, err := j2.Since(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	require.Error(t, err)
}

func TestDiscardNumbers(t *testing.T) {
	var d Discard
	out, err := d.Append(context.Background(), []Record{sample(KindExecuted, 1), sample(KindExecuted, 1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out[1].Seq)
}
