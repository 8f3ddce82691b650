// Command kvstore serves the message envelope protocol over HTTP so several
// processes can share one content-addressed store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PabloGalante/singlechat/internal/adapters/storage"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
	"github.com/PabloGalante/singlechat/internal/config"
	"github.com/PabloGalante/singlechat/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(runMain())
}

func runMain() int {
	cfg, err := config.LoadKV()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		return 1
	}
	addr := getEnv("KVSTORE_ADDR", ":8081")

	observability.Init(os.Stdout, getEnv("KVSTORE_LOG_LEVEL", cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.KV, addr); err != nil {
		observability.Logger().Error("kvstore stopped", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, kvCfg config.KVConfig, addr string) error {
	log := observability.WithFields("component", "kvstore")

	backend, err := storage.OpenBackend(ctx, kvCfg)
	if err != nil {
		return fmt.Errorf("opening %s backend: %w", kvCfg.Backend, err)
	}
	defer backend.Close()

	mux := http.NewServeMux()
	mux.Handle("/kv", kvserver.New(backend).HTTPHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("kvstore listening", "addr", addr, "backend", kvCfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
