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

	httpadapter "github.com/PabloGalante/singlechat/internal/adapters/http"
	"github.com/PabloGalante/singlechat/internal/adapters/llm"
	"github.com/PabloGalante/singlechat/internal/adapters/storage"
	"github.com/PabloGalante/singlechat/internal/app/conversation"
	"github.com/PabloGalante/singlechat/internal/app/history"
	"github.com/PabloGalante/singlechat/internal/config"
	"github.com/PabloGalante/singlechat/internal/observability"
)

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(runMain())
}

func runMain() int {
	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		return 1
	}
	observability.Init(os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Logger().Error("singlechat stopped", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config) error {
	log := observability.WithFields("component", "singlechat")

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("initializing %s completer: %w", cfg.LLM.Provider, err)
	}
	log.Info("completer ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	messages, err := storage.OpenMessageStore(ctx, cfg.KV)
	if err != nil {
		return fmt.Errorf("opening %s message store: %w", cfg.KV.Backend, err)
	}
	defer messages.Close()
	log.Info("message store ready", "backend", cfg.KV.Backend)

	heads, err := storage.OpenHeadStore(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("opening %s head store: %w", cfg.Head.Backend, err)
	}
	defer heads.Close()
	log.Info("head store ready", "backend", cfg.Head.Backend)

	svc := conversation.NewService(
		messages,
		history.NewReconstructor(messages, cfg.History.MaxDepth),
		completer,
	)

	conv, err := conversation.Start(ctx, svc, heads)
	if err != nil {
		return err
	}
	defer conv.Close()

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpadapter.NewServer(conv, httpadapter.Options{
			StaticDir:      cfg.HTTP.StaticDir,
			SilentFailures: cfg.Session.SilentFailures,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("singlechat listening", "addr", cfg.HTTP.Addr)
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

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// WebSocket connections are hijacked and not tracked by Shutdown; they end
	// when the process exits.
	return srv.Shutdown(shutdownCtx)
}
