package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memodeck/internal/storage"
	decksync "github.com/conorfennell/memodeck/internal/sync"
	"github.com/conorfennell/memodeck/internal/web"
)

func newServeCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Sync local sources whenever their deck files change")
	return cmd
}

func runServe(cmd *cobra.Command, watch bool) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seeded, err := a.lib.SeedGuide(ctx); err != nil {
		slog.Warn("failed to seed the guide deck", "error", err)
	} else if seeded {
		slog.Info("guide deck created")
	}

	srv := web.NewServer(a.db, a.lib,
		web.WithReposDir(a.cfg.Repos),
		web.WithSessionTTL(a.cfg.Sessions.TTL),
		web.WithLogger(slog.Default()),
	)
	defer srv.Close()

	if watch {
		go watchSources(ctx, a)
	}

	httpServer := &http.Server{
		Addr:    a.cfg.Listen,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("memodeck serving", "addr", a.cfg.Listen, "db", a.cfg.DB)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// watchSources re-syncs whenever a deck file under a local source changes.
// Git sources are only refreshed by an explicit sync.
func watchSources(ctx context.Context, a *app) {
	sources, err := a.db.GetAllSources(ctx)
	if err != nil {
		slog.Warn("failed to list sources for watching", "error", err)
		return
	}
	var dirs []string
	for _, src := range sources {
		if src.Type == storage.SourceLocal {
			dirs = append(dirs, src.Path)
		}
	}
	if len(dirs) == 0 {
		slog.Info("no local sources to watch")
		return
	}

	slog.Info("watching local sources", "dirs", len(dirs))
	err = decksync.Watch(ctx, dirs, decksync.DefaultDebounce, func() {
		if _, err := decksync.RunSync(ctx, a.db, a.lib, a.cfg.Repos); err != nil {
			slog.Warn("sync after change failed", "error", err)
		}
	})
	if err != nil {
		slog.Warn("watcher stopped", "error", err)
	}
}
