package localfs

import (
	"fmt"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

func init() {
	archive.MustRegisterBackend(archive.Backend{
		Name:        "localfs",
		Description: "Snapshot directory on the local filesystem (option: dir)",
		Open: func(opts map[string]string) (archive.Store, func() error, error) {
			dir := opts["dir"]
			if dir == "" {
				return nil, nil, fmt.Errorf("localfs: option dir is required")
			}
			s, err := New(dir)
			return s, nil, err
		},
	})
}
