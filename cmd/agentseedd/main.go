package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/blockchainsuperheroes/agentseed/agentrpc"
	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/config"
	"github.com/blockchainsuperheroes/agentseed/custody"
	"github.com/blockchainsuperheroes/agentseed/funds"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/registry"
	"github.com/blockchainsuperheroes/agentseed/txn"

	_ "github.com/blockchainsuperheroes/agentseed/archive/ipfs"
	_ "github.com/blockchainsuperheroes/agentseed/archive/localfs"
	_ "github.com/blockchainsuperheroes/agentseed/archive/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("agentseedd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file (defaults to an in-memory node)")
	listBackends := fs.Bool("list-backends", false, "List snapshot archive backends and exit")
	printConfig := fs.Bool("print-config", false, "Print the effective configuration and exit")
	overrides := config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listBackends {
		for _, b := range archive.Backends() {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Read(*configPath); err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	}
	overrides.Apply(fs, &cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if *printConfig {
		b, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = out.Write(b)
		return 0
	}

	logger, err := cfg.Log.Logger(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	n, err := openNode(cfg, logger)
	if err != nil {
		logger.Error("open node", "err", err)
		return 1
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("close node", "err", err)
		}
	}()

	if err := n.Listen(); err != nil {
		logger.Error("listen", "err", err)
		return 1
	}
	if err := n.Serve(ctx); err != nil {
		logger.Error("serve", "err", err)
		return 1
	}
	return 0
}

// node is one agentseedd process: the components, their journal and the
// listeners that expose them.
type node struct {
	cfg          config.Config
	logger       *slog.Logger
	journal      *journal.Badger
	closeArchive func() error
	server       *agentrpc.Server
	metrics      *prometheus.Registry

	grpcLis    net.Listener
	metricsLis net.Listener
}

func openNode(cfg config.Config, logger *slog.Logger) (*node, error) {
	jcfg := journal.DefaultBadgerConfig(cfg.Journal.Path)
	jcfg.InMemory = cfg.Journal.InMemory
	jcfg.SyncWrites = cfg.Journal.SyncWrites || !cfg.Journal.InMemory
	jcfg.Logger = logger.With("component", "journal")
	j, err := journal.OpenBadger(jcfg)
	if err != nil {
		return nil, err
	}

	store, closeArchive, err := cfg.Archive.Open()
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	n := &node{cfg: cfg, logger: logger, journal: j, closeArchive: closeArchive}

	rt := txn.New(j, txn.WithLogger(logger.With("component", "txn")))
	reg, err := registry.New(rt, cfg.Platform(), registry.WithLogger(logger.With("component", "registry")))
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	// Containers and call targets are linked in by embedding programs; the
	// stock daemon has none, so value sent to any target is simply accepted.
	binder, err := custody.New(rt, reg, custody.ContainerMap{}, cfg.Custody(), custody.WithLogger(logger.With("component", "custody")))
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	exec, err := funds.New(rt, reg, funds.TargetMap{}, cfg.Executor(), funds.WithLogger(logger.With("component", "funds")))
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	arch, err := archive.New(store)
	if err != nil {
		_ = n.Close()
		return nil, err
	}

	n.server = &agentrpc.Server{
		Registry: reg,
		Binder:   binder,
		Executor: exec,
		Archive:  arch,
		Journal:  j,
		Logger:   logger.With("component", "rpc"),
	}
	n.metrics = prometheus.NewRegistry()
	n.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return n, nil
}

// Listen binds the gRPC and metrics addresses.
func (n *node) Listen() error {
	lis, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return err
	}
	n.grpcLis = lis
	if n.cfg.MetricsListen == "" {
		return nil
	}
	mlis, err := net.Listen("tcp", n.cfg.MetricsListen)
	if err != nil {
		_ = lis.Close()
		return err
	}
	n.metricsLis = mlis
	return nil
}

// Serve runs until ctx is done, then stops gracefully.
func (n *node) Serve(ctx context.Context) error {
	if n.grpcLis == nil {
		return errors.New("agentseedd: Serve before Listen")
	}
	m := agentrpc.NewMetrics(n.metrics)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(m.UnaryInterceptor()))
	agentrpc.Register(s, n.server)

	errCh := make(chan error, 2)
	go func() { errCh <- s.Serve(n.grpcLis) }()

	var httpSrv *http.Server
	if n.metricsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(n.metrics, promhttp.HandlerOpts{}))
		httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpSrv.Serve(n.metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		n.logger.Info("metrics listening", "addr", n.metricsLis.Addr().String())
	}
	n.logger.Info("agentseedd listening",
		"addr", n.grpcLis.Addr().String(),
		"platform", n.cfg.Platform().Hex(),
		"journal_seq", n.journal.LastSeq())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	n.logger.Info("shutting down")
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	s.GracefulStop()
	return serveErr
}

func (n *node) Close() error {
	var first error
	if n.closeArchive != nil {
		first = n.closeArchive()
	}
	if err := n.journal.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
