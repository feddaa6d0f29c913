// Command raftd runs one node of a Raft cluster, wiring the core
// package together with the reference storage, transport, metrics,
// and state-machine collaborators from the rest of this repository.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmaxwell/raft"
	"github.com/dmaxwell/raft/fsm/kvfsm"
	"github.com/dmaxwell/raft/metrics"
	"github.com/dmaxwell/raft/storage/boltstore"
	"github.com/dmaxwell/raft/transport/rafthttp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "raftd",
		Short: "Run a node in a Raft cluster",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newBootstrapCmd())
	return root
}

func newBootstrapCmd() *cobra.Command {
	var clusterPath, dataDir string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Initialize a node's durable store with the cluster's configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadClusterConfig(clusterPath)
			if err != nil {
				return err
			}
			rcfg, err := cc.raftConfiguration()
			if err != nil {
				return fmt.Errorf("raftd: build configuration: %w", err)
			}
			store, err := boltstore.Open(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Bootstrap(rcfg)
		},
	}
	cmd.Flags().StringVar(&clusterPath, "cluster", "cluster.yaml", "path to the cluster configuration file")
	cmd.Flags().StringVar(&dataDir, "data", "raft.db", "path to this node's bbolt data file")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		id          uint64
		clusterPath string
		dataDir     string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run this node until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(id, clusterPath, dataDir, metricsAddr)
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "this server's id (required)")
	cmd.Flags().StringVar(&clusterPath, "cluster", "cluster.yaml", "path to the cluster configuration file")
	cmd.Flags().StringVar(&dataDir, "data", "raft.db", "path to this node's bbolt data file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")
	cmd.MarkFlagRequired("id")
	return cmd
}

func runNode(id uint64, clusterPath, dataDir, metricsAddr string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Uint64("server_id", id).Logger()

	cc, err := loadClusterConfig(clusterPath)
	if err != nil {
		return err
	}
	rcfg, err := cc.raftConfiguration()
	if err != nil {
		return fmt.Errorf("raftd: build configuration: %w", err)
	}
	address, err := cc.addressOf(id)
	if err != nil {
		return err
	}

	store, err := boltstore.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	fsm := kvfsm.New()

	r, err := raft.New(raft.Options{
		ID:               id,
		Address:          address,
		ElectionTimeout:  time.Duration(cc.ElectionTimeoutMs) * time.Millisecond,
		HeartbeatTimeout: time.Duration(cc.HeartbeatTimeoutMs) * time.Millisecond,
		Logger:           zlogger{zl: logger},
	}, fsm)
	if err != nil {
		return fmt.Errorf("raftd: construct server: %w", err)
	}

	transport := rafthttp.NewTransport(address)
	adapter := newIOAdapter(store, transport)
	if err := r.Bind(adapter, rcfg); err != nil {
		return fmt.Errorf("raftd: bind io: %w", err)
	}

	handler := &rafthttp.Handler{Transport: transport}
	handler.Install(transport.ServeMux())

	collector := metrics.NewCollector(r)
	transport.Observe(collector)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		logger.Warn().Err(http.ListenAndServe(metricsAddr, mux)).Msg("metrics server exited")
	}()

	tickMs := cc.HeartbeatTimeoutMs
	if tickMs == 0 {
		tickMs = 100
	}
	if err := adapter.Start(id, address, tickMs, func(elapsed uint64) {
		if err := r.Tick(elapsed); err != nil {
			logger.Warn().Err(err).Msg("tick failed")
		}
	}, func(msg raft.Message) {
		if err := r.Recv(msg); err != nil {
			logger.Warn().Err(err).Msg("recv failed")
		}
	}); err != nil {
		return fmt.Errorf("raftd: start io: %w", err)
	}

	logger.Info().Str("address", address).Msg("raftd started")
	select {}
}
