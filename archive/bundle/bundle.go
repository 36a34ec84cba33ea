// Package bundle moves memory snapshots between archives as a
// deterministic tar: blocks/<cid> entries plus an optional index.json that
// lists each snapshot's locator, size and memory fingerprint.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

type ExportOptions struct {
	// Labels names snapshots in the index, e.g. "agent-7/gen-2" to a locator.
	Labels map[string]string
	// IncludeIndex writes index.json.
	IncludeIndex bool
}

// Export writes the snapshots at uris from store to w.
//
// Entry order is lexicographic by CID and headers are normalized, so equal
// inputs give equal bytes.
func Export(w io.Writer, store archive.Store, uris []string, opts ExportOptions) error {
	if store == nil {
		return fmt.Errorf("bundle: nil store")
	}
	uniq := make(map[string]cid.Cid, len(uris))
	for _, uri := range uris {
		id, err := archive.ParseLocator(uri)
		if err != nil {
			return err
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	entries := make([]indexEntry, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := store.Get(id)
		if err != nil {
			return fail(fmt.Errorf("bundle: %s: %w", archive.Locator(id), err))
		}
		got, err := archive.ContentID(b)
		if err != nil {
			return fail(err)
		}
		if got != id {
			return fail(archive.ErrCIDMismatch)
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return fail(err)
		}
		entries = append(entries, indexEntry{URI: archive.Locator(id), Size: len(b), MemoryHash: archive.Fingerprint(b)})
	}

	if opts.IncludeIndex {
		idx := index{Version: FormatVersion, Snapshots: entries}
		labelNames := make([]string, 0, len(opts.Labels))
		for k := range opts.Labels {
			labelNames = append(labelNames, k)
		}
		sort.Strings(labelNames)
		for _, k := range labelNames {
			if k == "" {
				return fail(fmt.Errorf("bundle: empty label"))
			}
			id, err := archive.ParseLocator(opts.Labels[k])
			if err != nil {
				return fail(err)
			}
			if _, ok := uniq[id.String()]; !ok {
				return fail(fmt.Errorf("bundle: label %q names a snapshot not in the bundle", k))
			}
			idx.Labels = append(idx.Labels, indexLabel{Name: k, URI: archive.Locator(id)})
		}
		b, err := json.Marshal(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, "index.json", append(b, '\n')); err != nil {
			return fail(err)
		}
	}
	return tw.Close()
}

type ImportOptions struct {
	// IgnoreUnknown skips unknown entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle from r into store and returns the imported
// snapshots in bundle order. Every block is checked against its entry name.
func Import(r io.Reader, store archive.Store, opts ImportOptions) ([]archive.Snapshot, error) {
	if store == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}
	tr := tar.NewReader(r)
	seen := map[cid.Cid]struct{}{}
	var out []archive.Snapshot

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		}
		if name == "index.json" {
			continue
		}
		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry %s", name)
		}

		id, err := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if err != nil || !id.Defined() {
			return out, archive.ErrInvalidCID
		}
		if _, dup := seen[id]; dup {
			return out, fmt.Errorf("bundle: duplicate block %s", id)
		}
		seen[id] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		got, err := archive.ContentID(payload)
		if err != nil {
			return out, err
		}
		if got != id {
			return out, archive.ErrCIDMismatch
		}
		putID, err := store.Put(payload)
		if err != nil {
			return out, err
		}
		if putID != id {
			return out, archive.ErrCIDMismatch
		}
		out = append(out, archive.Snapshot{ID: id, URI: archive.Locator(id), MemoryHash: archive.Fingerprint(payload), Size: len(payload)})
	}
}

// ReadIndex returns the labels of a bundle's index.json, if it has one.
func ReadIndex(r io.Reader) (map[string]string, bool, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if cleanTarPath(h.Name) != "index.json" {
			continue
		}
		var idx index
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return nil, true, fmt.Errorf("bundle: index.json: %w", err)
		}
		if idx.Version != FormatVersion {
			return nil, true, fmt.Errorf("bundle: index.json version %d, want %d", idx.Version, FormatVersion)
		}
		labels := make(map[string]string, len(idx.Labels))
		for _, l := range idx.Labels {
			labels[l.Name] = l.URI
		}
		return labels, true, nil
	}
}

type index struct {
	Version   int          `json:"version"`
	Snapshots []indexEntry `json:"snapshots"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexEntry struct {
	URI        string      `json:"uri"`
	Size       int         `json:"size"`
	MemoryHash common.Hash `json:"memoryHash"`
}

type indexLabel struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
