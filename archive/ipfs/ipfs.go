// Package ipfs stores memory snapshots as raw blocks in a local Kubo repo
// by shelling out to the ipfs CLI. No daemon is required.
//
// Blocks are written as CIDv1 raw sha2-256 so the block CID equals the
// snapshot content id and the ipfs://<cid> locator resolves on any IPFS
// node the repo is published from.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

// Store is an archive.Store backed by the ipfs binary.
type Store struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the ipfs binary. Empty means "ipfs" on PATH.
	Bin string
	// Repo sets IPFS_PATH for every invocation. Empty keeps the environment.
	Repo string
}

func New(opts Options) *Store {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	s := &Store{bin: bin}
	if opts.Repo != "" {
		s.env = append(os.Environ(), "IPFS_PATH="+opts.Repo)
	}
	return s
}

func (s *Store) Put(data []byte) (cid.Cid, error) {
	want, err := archive.ContentID(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := s.run(data,
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"/dev/stdin",
	)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if got != want {
		return cid.Undef, archive.ErrCIDMismatch
	}
	return want, nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, archive.ErrInvalidCID
	}
	out, err := s.run(nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, archive.ErrNotFound
		}
		return nil, err
	}
	got, err := archive.ContentID(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, archive.ErrCIDMismatch
	}
	return out, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := s.run(nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (s *Store) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(s.bin, args...)
	if s.env != nil {
		cmd.Env = s.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(string(ee.Stderr)); msg != "" {
			return nil, fmt.Errorf("ipfs: %s", msg)
		}
		return nil, fmt.Errorf("ipfs: %v", err)
	}
	return nil, err
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
