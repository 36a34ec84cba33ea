package ipfs

import "github.com/blockchainsuperheroes/agentseed/archive"

func init() {
	archive.MustRegisterBackend(archive.Backend{
		Name:        "ipfs",
		Description: "Raw blocks in a local Kubo repo via the ipfs CLI (options: bin, repo)",
		Open: func(opts map[string]string) (archive.Store, func() error, error) {
			return New(Options{Bin: opts["bin"], Repo: opts["repo"]}), nil, nil
		},
	})
}
