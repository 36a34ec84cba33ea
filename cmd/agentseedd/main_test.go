package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/agentrpc"
	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/config"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/keys"
)

func TestListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-list-backends"}, &out, &errOut))
	assert.Contains(t, out.String(), "memory")
	assert.Contains(t, out.String(), "localfs")
	assert.Contains(t, out.String(), "grpc")
}

func TestPrintConfigAppliesFlags(t *testing.T) {
	platform := common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{
		"-print-config",
		"-platform-signer", platform.Hex(),
		"-listen", "127.0.0.1:9999",
		"-log-format", "json",
	}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	assert.Contains(t, out.String(), "listen: 127.0.0.1:9999")
	assert.Contains(t, out.String(), platform.Hex())
	assert.Contains(t, out.String(), "format: json")
}

func TestRunRequiresPlatformSigner(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "platform_signer")
}

func TestNodeServesAndPersistsJournal(t *testing.T) {
	platformKey, err := keys.GenerateKey()
	require.NoError(t, err)
	platform := crypto.PubkeyToAddress(platformKey.PublicKey)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.PlatformSigner = platform.Hex()
	cfg.Listen = "127.0.0.1:0"
	cfg.MetricsListen = "127.0.0.1:0"
	cfg.Journal = config.JournalConfig{Path: dir}
	require.NoError(t, cfg.Validate())

	n, err := openNode(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, n.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx) }()

	client, cc, err := agentrpc.Dial(n.grpcLis.Addr().String(), agentrpc.DialOptions{})
	require.NoError(t, err)
	client.Timeout = 5 * time.Second

	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m, mem, c := common.HexToHash("0x01"), common.HexToHash("0x02"), common.HexToHash("0x03")
	proof, err := keys.SignDigest(authz.RegisterDigest(caller, m, mem, c), platformKey)
	require.NoError(t, err)

	id, wallet, err := client.RegisterSelf(ctx, agentrpc.RegisterSelfRequest{
		Caller: caller, ModelHash: m, MemoryHash: mem, ContextHash: c, PlatformProof: proof,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, keys.DeriveAgentAddress(m, c, 1), wallet)

	resp, err := http.Get("http://" + n.metricsLis.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `agentseed_rpc_requests_total{code="OK",method="RegisterSelf"} 1`)
	assert.Contains(t, string(body), "go_goroutines")

	require.NoError(t, cc.Close())
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	require.NoError(t, n.Close())

	j, err := journal.OpenBadger(journal.DefaultBadgerConfig(dir))
	require.NoError(t, err)
	defer j.Close()
	recs, err := j.Since(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, journal.KindIdentityCreated, recs[0].Kind)
	assert.Equal(t, uint64(1), recs[0].Identity)
}
