// Package remote is an archive.Store backed by another agentseedd's
// PutSnapshot/GetSnapshot RPCs.
package remote

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"

	"github.com/blockchainsuperheroes/agentseed/agentrpc"
	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/model"
)

// Store implements archive.Store over the Agents service.
type Store struct {
	client *agentrpc.Client
	cc     *grpc.ClientConn
}

type DialOptions struct {
	// Timeout applies per RPC when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial connects to the daemon at target.
func Dial(target string, opts DialOptions) (*Store, error) {
	client, cc, err := agentrpc.Dial(target, agentrpc.DialOptions{MaxMsgBytes: opts.MaxMsgBytes})
	if err != nil {
		return nil, err
	}
	client.Timeout = opts.Timeout
	return &Store{client: client, cc: cc}, nil
}

// New wraps an existing client. Close is then a no-op.
func New(client *agentrpc.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	if s == nil || s.cc == nil {
		return nil
	}
	return s.cc.Close()
}

func (s *Store) Put(data []byte) (cid.Cid, error) {
	expected, err := archive.ContentID(data)
	if err != nil {
		return cid.Undef, err
	}
	resp, err := s.client.PutSnapshot(context.Background(), data)
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	id, err := archive.ParseLocator(resp.URI)
	if err != nil {
		return cid.Undef, archive.ErrInvalidCID
	}
	if id != expected {
		return cid.Undef, archive.ErrCIDMismatch
	}
	return id, nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, archive.ErrInvalidCID
	}
	resp, err := s.client.GetSnapshot(context.Background(), archive.Locator(id))
	if err != nil {
		return nil, mapRPC(err)
	}
	got, err := archive.ContentID(resp.Data)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, archive.ErrCIDMismatch
	}
	return resp.Data, nil
}

func (s *Store) Has(id cid.Cid) bool {
	_, err := s.Get(id)
	return err == nil
}

// mapRPC restores archive sentinels from the rule id the server sent.
func mapRPC(err error) error {
	if mapped := archive.FromRule(err); mapped != err {
		return mapped
	}
	if model.IsKind(err, model.KindNotFound) {
		return archive.ErrNotFound
	}
	return err
}
