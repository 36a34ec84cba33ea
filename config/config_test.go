package config

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/archive"
	_ "github.com/blockchainsuperheroes/agentseed/archive/localfs"
)

const platform = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentseed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
listen: 0.0.0.0:9000
platform_signer: "`+platform+`"
journal:
  path: `+filepath.Join(dir, "journal")+`
archive:
  write_policy: all
  replicas:
    - name: a
      backend: localfs
      options: {dir: `+filepath.Join(dir, "a")+`}
    - name: b
      backend: memory
log:
  level: debug
  format: json
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, platform, cfg.Platform().Hex())
	assert.Equal(t, Default().CustodyAddress, cfg.CustodyAddress)
	assert.Equal(t, filepath.Join(dir, "journal"), cfg.Journal.Path)
	assert.Len(t, cfg.Archive.Replicas, 2)

	store, closeFn, err := cfg.Archive.Open()
	require.NoError(t, err)
	require.NoError(t, closeFn())
	_, ok := store.(archive.Mirror)
	assert.True(t, ok, "write_policy all opens a mirror")
}

func TestValidate(t *testing.T) {
	base := Default()
	base.PlatformSigner = platform
	require.NoError(t, base.Validate())

	for name, mutate := range map[string]func(*Config){
		"no listen":    func(c *Config) { c.Listen = "" },
		"no platform":  func(c *Config) { c.PlatformSigner = "" },
		"zero custody": func(c *Config) { c.CustodyAddress = "0x0000000000000000000000000000000000000000" },
		"bad executor": func(c *Config) { c.ExecutorAddress = "nope" },
		"journal path": func(c *Config) { c.Journal = JournalConfig{} },
		"no replicas":  func(c *Config) { c.Archive.Replicas = nil },
		"dup replica":  func(c *Config) { c.Archive.Replicas = append(c.Archive.Replicas, c.Archive.Replicas[0]) },
		"no backend":   func(c *Config) { c.Archive.Replicas = []ReplicaConfig{{Name: "x"}} },
		"write policy": func(c *Config) { c.Archive.WritePolicy = "some" },
		"log level":    func(c *Config) { c.Log.Level = "loud" },
		"log format":   func(c *Config) { c.Log.Format = "xml" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base
			cfg.Archive.Replicas = append([]ReplicaConfig(nil), base.Archive.Replicas...)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile("")
	assert.Error(t, err)
	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = LoadFile(writeConfig(t, "listen: [unterminated"))
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	a := ArchiveConfig{Replicas: []ReplicaConfig{{Backend: "tape"}}}
	_, _, err := a.Open()
	assert.Error(t, err)
}

func TestFirstWriterPolicy(t *testing.T) {
	a := ArchiveConfig{Replicas: []ReplicaConfig{
		{Name: "one", Backend: "memory"},
		{Name: "two", Backend: "memory"},
	}}
	store, _, err := a.Open()
	require.NoError(t, err)
	fw, ok := store.(firstWriter)
	require.True(t, ok)

	id, err := store.Put([]byte("snap"))
	require.NoError(t, err)
	assert.True(t, fw.Replicas[0].Store.Has(id))
	assert.False(t, fw.Replicas[1].Store.Has(id))
}

func TestFlagsOverrideOnlyWhatWasSet(t *testing.T) {
	cfg := Default()
	cfg.PlatformSigner = platform
	cfg.Journal = JournalConfig{Path: "/data/journal"}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-listen", "127.0.0.1:1", "-log-format", "json"}))
	f.Apply(fs, &cfg)

	assert.Equal(t, "127.0.0.1:1", cfg.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, platform, cfg.PlatformSigner)
	assert.Equal(t, "/data/journal", cfg.Journal.Path)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "identity", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"identity":1`)
}
