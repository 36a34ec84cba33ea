// Package config loads the agentseedd daemon configuration from YAML.
//
// Example:
//
//	listen: 127.0.0.1:7740
//	metrics_listen: 127.0.0.1:9740
//	platform_signer: "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"
//	custody_address: "0x00000000000000000000000000000000000C0570"
//	executor_address: "0x00000000000000000000000000000000000E7EC0"
//	journal:
//	  path: /var/lib/agentseed/journal
//	  sync_writes: true
//	archive:
//	  write_policy: all
//	  replicas:
//	    - name: local
//	      backend: localfs
//	      options: {dir: /var/lib/agentseed/snapshots}
//	log:
//	  level: info
//	  format: json
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"gopkg.in/yaml.v3"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

type Config struct {
	Listen          string        `yaml:"listen"`
	MetricsListen   string        `yaml:"metrics_listen,omitempty"`
	PlatformSigner  string        `yaml:"platform_signer"`
	CustodyAddress  string        `yaml:"custody_address"`
	ExecutorAddress string        `yaml:"executor_address"`
	Journal         JournalConfig `yaml:"journal"`
	Archive         ArchiveConfig `yaml:"archive"`
	Log             LogConfig     `yaml:"log"`
}

type JournalConfig struct {
	// Path is the badger directory; empty with InMemory false is invalid.
	Path       string `yaml:"path,omitempty"`
	InMemory   bool   `yaml:"in_memory,omitempty"`
	SyncWrites bool   `yaml:"sync_writes,omitempty"`
}

// ArchiveConfig describes the snapshot replicas.
//
// WritePolicy "first" (default) writes to the first replica only; "all"
// writes every replica and requires equal content ids. Reads fall back in
// replica order either way.
type ArchiveConfig struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Replicas    []ReplicaConfig `yaml:"replicas"`
}

type ReplicaConfig struct {
	Name    string            `yaml:"name"`
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a single-node configuration that keeps everything in
// memory. It still needs a platform signer.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:7740",
		CustodyAddress:  "0x00000000000000000000000000000000000C0570",
		ExecutorAddress: "0x00000000000000000000000000000000000E7EC0",
		Journal:         JournalConfig{InMemory: true},
		Archive: ArchiveConfig{
			Replicas: []ReplicaConfig{{Name: "memory", Backend: "memory"}},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Read parses path over Default without validating, so callers can apply
// flag overrides first.
func Read(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile is Read followed by Validate.
func LoadFile(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) { return yaml.Marshal(c) }

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	for name, v := range map[string]string{
		"platform_signer":  c.PlatformSigner,
		"custody_address":  c.CustodyAddress,
		"executor_address": c.ExecutorAddress,
	} {
		if err := checkAddress(name, v); err != nil {
			return err
		}
	}
	if !c.Journal.InMemory && c.Journal.Path == "" {
		return errors.New("config: journal.path is required unless journal.in_memory is set")
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: invalid log.format %q", c.Log.Format)
	}
	return nil
}

func checkAddress(field, v string) error {
	if !common.IsHexAddress(v) {
		return fmt.Errorf("config: %s %q is not a hex address", field, v)
	}
	if common.HexToAddress(v) == (common.Address{}) {
		return fmt.Errorf("config: %s must not be the zero address", field)
	}
	return nil
}

func (c Config) Platform() common.Address { return common.HexToAddress(c.PlatformSigner) }
func (c Config) Custody() common.Address  { return common.HexToAddress(c.CustodyAddress) }
func (c Config) Executor() common.Address { return common.HexToAddress(c.ExecutorAddress) }

func (a ArchiveConfig) Validate() error {
	if len(a.Replicas) == 0 {
		return errors.New("config: at least one archive replica is required")
	}
	seen := make(map[string]struct{}, len(a.Replicas))
	for _, r := range a.Replicas {
		if r.Backend == "" {
			return errors.New("config: archive replica backend is required")
		}
		name := r.id()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("config: duplicate archive replica %q", name)
		}
		seen[name] = struct{}{}
	}
	switch a.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("config: invalid archive.write_policy %q", a.WritePolicy)
	}
}

func (r ReplicaConfig) id() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Backend
}

// Open opens every replica through the archive backend registry.
// Callers link backends with blank imports.
func (a ArchiveConfig) Open() (archive.Store, func() error, error) {
	if err := a.Validate(); err != nil {
		return nil, nil, err
	}
	var closers []func() error
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	replicas := make([]archive.Replica, 0, len(a.Replicas))
	for _, r := range a.Replicas {
		s, closeFn, err := archive.OpenBackend(r.Backend, r.Options)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: replica %q: %w", r.id(), err)
		}
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		replicas = append(replicas, archive.Replica{Name: r.id(), Store: s})
	}

	if len(replicas) == 1 || a.WritePolicy == "all" {
		if len(replicas) == 1 {
			return replicas[0].Store, closeAll, nil
		}
		return archive.Mirror{Replicas: replicas}, closeAll, nil
	}
	return firstWriter{archive.Mirror{Replicas: replicas}}, closeAll, nil
}

// firstWriter writes to the first replica and reads across all of them.
type firstWriter struct{ archive.Mirror }

func (f firstWriter) Put(data []byte) (cid.Cid, error) {
	return f.Replicas[0].Store.Put(data)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: invalid log.level %q", s)
	}
}

// Logger builds the daemon logger writing to w.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
