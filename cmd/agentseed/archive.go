package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/archive/bundle"
	"github.com/blockchainsuperheroes/agentseed/archive/localfs"
	"github.com/blockchainsuperheroes/agentseed/archive/remote"
)

func printArchiveUsage(w io.Writer) {
	fmt.Fprintln(w, "agentseed archive: content-addressed memory snapshots")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  agentseed archive put (--dir <dir> | --remote <host:port>) <file>")
	fmt.Fprintln(w, "  agentseed archive get (--dir <dir> | --remote <host:port>) --uri <ipfs://cid> [--out <file>] [--memory <hash>]")
	fmt.Fprintln(w, "  agentseed archive export (--dir <dir> | --remote <host:port>) --uri <ipfs://cid> [--uri ...] [--label name=<ipfs://cid>] --out <bundle.tar>")
	fmt.Fprintln(w, "  agentseed archive import (--dir <dir> | --remote <host:port>) [--ignore-unknown] <bundle.tar>")
}

type archiveFlags struct {
	dir    *string
	remote *string
}

func bindArchiveFlags(fs *flag.FlagSet) archiveFlags {
	return archiveFlags{
		dir:    fs.String("dir", "", "Archive directory"),
		remote: fs.String("remote", "", "agentseedd address"),
	}
}

// open returns the selected store and a func that releases it.
func (f archiveFlags) open() (archive.Store, func() error, error) {
	switch {
	case *f.dir != "" && *f.remote != "":
		return nil, nil, fmt.Errorf("--dir and --remote are mutually exclusive")
	case *f.dir != "":
		s, err := localfs.New(*f.dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case *f.remote != "":
		s, err := remote.Dial(*f.remote, remote.DialOptions{Timeout: 30 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("missing --dir or --remote")
	}
}

func cmdArchive(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printArchiveUsage(errOut)
		return 2
	}
	switch args[0] {
	case "put":
		return cmdArchivePut(args[1:], out, errOut)
	case "get":
		return cmdArchiveGet(args[1:], out, errOut)
	case "export":
		return cmdArchiveExport(args[1:], out, errOut)
	case "import":
		return cmdArchiveImport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printArchiveUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown archive command: %s\n\n", args[0])
		printArchiveUsage(errOut)
		return 2
	}
}

func printSnapshot(out io.Writer, snap archive.Snapshot) {
	_, _ = fmt.Fprintf(out, "uri\t%s\nmemory\t%s\nsize\t%d\n", snap.URI, snap.MemoryHash.Hex(), snap.Size)
}

func cmdArchivePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := bindArchiveFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "archive put: expected exactly one file")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	store, closeFn, err := af.open()
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	defer closeFn()
	a, err := archive.New(store)
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	snap, err := a.Put(data)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	printSnapshot(out, snap)
	return 0
}

func cmdArchiveGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := bindArchiveFlags(fs)
	uri := fs.String("uri", "", "Snapshot locator")
	outPath := fs.String("out", "", "Write the snapshot here instead of stdout")
	memory := fs.String("memory", "", "Expected memory hash")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	store, closeFn, err := af.open()
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	defer closeFn()
	a, err := archive.New(store)
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	data, snap, err := a.Load(*uri)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	if *memory != "" {
		want, err := parseHash("memory", *memory)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		if snap.MemoryHash != want {
			fmt.Fprintf(errOut, "get: %s hashes to %s, want %s\n", *uri, snap.MemoryHash.Hex(), want.Hex())
			return 1
		}
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, data, 0o600); err != nil {
			fmt.Fprintf(errOut, "write: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = out.Write(data)
	return 0
}

func cmdArchiveExport(args []string, _ io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := bindArchiveFlags(fs)
	var uris, labels stringList
	fs.Var(&uris, "uri", "Snapshot locator (repeatable)")
	fs.Var(&labels, "label", "Index label as name=<ipfs://cid> (repeatable)")
	outPath := fs.String("out", "", "Bundle file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(uris) == 0 || *outPath == "" {
		fmt.Fprintln(errOut, "archive export: --uri and --out are required")
		return 2
	}
	opts := bundle.ExportOptions{IncludeIndex: true, Labels: map[string]string{}}
	for _, l := range labels {
		name, uri, ok := strings.Cut(l, "=")
		if !ok || name == "" {
			fmt.Fprintf(errOut, "invalid --label %q: want name=<ipfs://cid>\n", l)
			return 2
		}
		opts.Labels[name] = uri
	}

	store, closeFn, err := af.open()
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	defer closeFn()

	var buf bytes.Buffer
	if err := bundle.Export(&buf, store, uris, opts); err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*outPath, buf.Bytes(), 0o600); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func cmdArchiveImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := bindArchiveFlags(fs)
	ignoreUnknown := fs.Bool("ignore-unknown", false, "Skip entries that are not snapshot blocks")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "archive import: expected exactly one bundle")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	store, closeFn, err := af.open()
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	defer closeFn()

	snaps, err := bundle.Import(bytes.NewReader(b), store, bundle.ImportOptions{IgnoreUnknown: *ignoreUnknown})
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	labels, _, err := bundle.ReadIndex(bytes.NewReader(b))
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	byURI := map[string][]string{}
	for name, uri := range labels {
		byURI[uri] = append(byURI[uri], name)
	}
	for _, s := range snaps {
		names := byURI[s.URI]
		sort.Strings(names)
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", s.URI, s.MemoryHash.Hex(), strings.Join(names, ","))
	}
	return 0
}
