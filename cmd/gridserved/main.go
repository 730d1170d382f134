package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/spatialix/gridfence"
	"github.com/spatialix/gridfence/server"
	"github.com/spatialix/gridfence/storage/bbolt"
	"github.com/spatialix/gridfence/storage/exclusive"
	"github.com/spatialix/gridfence/storage/shared"
)

const appName = "gridserved"

var (
	version = "no version from LDFLAGS"

	dbPath          = flag.String("dbPath", "out.db", "Database path")
	httpMetricsPort = flag.Int("httpMetricsPort", 8088, "http metrics port")
	httpAPIPort     = flag.Int("httpAPIPort", 9201, "http API port")
	cacheMaxCost    = flag.Int64("cacheMaxCost", 1<<26, "rendered feature cache budget")

	storageMode = flag.String("storageMode", gridfence.ExclusiveStorage, "Storage mode: exclusive|shared")
	tableName   = flag.String("tableName", appName, "shared table name")

	httpServer        *http.Server
	httpMetricsServer *http.Server
)

func main() {
	flag.Parse()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.Caller(5), "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = level.NewFilter(logger, level.AllowAll())

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	level.Info(logger).Log("msg", "Starting app", "version", version)

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	storage, clean, err := bbolt.NewROStorage(*dbPath, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open storage", "error", err, "db_path", *dbPath)
		os.Exit(2)
	}
	defer clean()

	infos, err := storage.LoadIndexInfos()
	if err != nil {
		level.Error(logger).Log("msg", "failed to read infos", "error", err)
		os.Exit(2)
	}

	level.Info(logger).Log("msg", "read index infos",
		"feature_count", infos.FeatureCount,
		"indexed_at", infos.IndexTime,
		"indexer_version", infos.IndexerVersion,
	)

	var idx *gridfence.Index

	switch *storageMode {
	case gridfence.ExclusiveStorage:
		idx, err = exclusive.NewIndex(infos.Grid)
	case gridfence.SharedStorage:
		idx, err = shared.NewIndex(infos.Grid, *tableName, shared.Public)
	default:
		level.Error(logger).Log("msg", "unknown storage mode", "storage_mode", *storageMode)
		os.Exit(2)
	}
	if err != nil {
		level.Error(logger).Log("msg", "failed to create index", "error", err)
		os.Exit(2)
	}

	if err := storage.LoadFeatures(idx.Add); err != nil {
		level.Error(logger).Log("msg", "failed to load features from storage", "error", err)
		os.Exit(2)
	}

	srv, err := server.New(idx, logger, server.Options{CacheMaxCost: *cacheMaxCost})
	if err != nil {
		level.Error(logger).Log("msg", "failed to create server", "error", err)
		os.Exit(2)
	}

	// web server metrics
	g.Go(func() error {
		mr := http.NewServeMux()
		mr.Handle("/metrics", promhttp.Handler())

		httpMetricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpMetricsPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      mr,
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP Metrics server listening at :%d", *httpMetricsPort))

		if err := httpMetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	// API web server
	g.Go(func() error {
		metricsMwr := middleware.New(middleware.Config{
			Recorder: metrics.NewRecorder(metrics.Config{Prefix: appName}),
		})

		r := mux.NewRouter()

		r.Handle("/api/query",
			metricsMwr.Handler("/api/query",
				http.HandlerFunc(srv.QueryHandler))).Methods(http.MethodPost)

		r.Handle("/api/feature/{fid}",
			metricsMwr.Handler("/api/feature/fid",
				http.HandlerFunc(srv.FeatureHandler)))

		r.HandleFunc("/api/stats", srv.StatsHandler)

		r.HandleFunc("/healthz", func(w http.ResponseWriter, request *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{\"status\": \"SERVING\"}"))
		})

		httpServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpAPIPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      handlers.CompressHandler(handlers.CORS()(r)),
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP API server listening at :%d", *httpAPIPort))

		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	select {
	case <-interrupt:
		cancel()
	case <-ctx.Done():
	}

	level.Warn(logger).Log("msg", "received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpMetricsServer != nil {
		_ = httpMetricsServer.Shutdown(shutdownCtx)
	}

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "server error", "error", err)
		os.Exit(2)
	}
}
