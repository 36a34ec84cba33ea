package remote

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

func init() {
	archive.MustRegisterBackend(archive.Backend{
		Name:        "grpc",
		Description: "Snapshots held by another agentseedd (options: target, timeout, max_msg_bytes)",
		Open: func(opts map[string]string) (archive.Store, func() error, error) {
			target := strings.TrimSpace(opts["target"])
			if target == "" {
				return nil, nil, fmt.Errorf("grpc: option target is required")
			}
			var dopts DialOptions
			if v := opts["timeout"]; v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, nil, fmt.Errorf("grpc: option timeout: %w", err)
				}
				dopts.Timeout = d
			}
			if v := opts["max_msg_bytes"]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, nil, fmt.Errorf("grpc: option max_msg_bytes: %w", err)
				}
				dopts.MaxMsgBytes = n
			}
			s, err := Dial(target, dopts)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}
