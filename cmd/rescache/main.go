package main

// main.go is the rescache entry point: server mode by default, or
// client/benchmark mode when -c/-b is given, following the three-mode CLI
// shape the original source's main.rs dispatches on.
//
// © 2025 rescache authors. MIT License.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sergz72/rescache/pkg/store"
)

func main() {
	opts, err := parseFlags(argsWithoutProgName())
	if err != nil {
		fatal("%v", err)
	}

	if opts.clientMode {
		if err := runClient(opts); err != nil {
			fatal("%v", err)
		}
		return
	}
	if opts.benchMode {
		if err := runBenchmark(opts); err != nil {
			fatal("%v", err)
		}
		return
	}

	logger := newLogger(opts.verbose)
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	dir, err := store.NewDirectory(
		store.WithMaxMemory(opts.maxMemory),
		store.WithShardCount(opts.shardCount),
		store.WithHashSelector(opts.hashSelector),
		store.WithMaxOpenDatabases(opts.maxOpenDatabases),
		store.WithDataDir(opts.dataDir),
		store.WithLogger(logger),
		store.WithMetrics(reg),
	)
	if err != nil {
		fatal("directory init: %v", err)
	}
	defer dir.Close()

	if opts.debugAddr != "" {
		go serveDebug(opts.debugAddr, reg, dir, logger)
	}

	if err := runServer(opts, dir, logger); err != nil {
		fatal("%v", err)
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

// serveDebug exposes /metrics and /debug/rescache/snapshot, mirroring
// examples/basic/main.go's debug endpoint.
func serveDebug(addr string, reg *prometheus.Registry, dir *store.Directory, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/rescache/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeSnapshot(w, dir)
	})
	logger.Info("debug listener", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("debug listener stopped", zap.Error(err))
	}
}
