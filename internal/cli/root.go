package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memodeck/internal/config"
	"github.com/conorfennell/memodeck/internal/library"
	"github.com/conorfennell/memodeck/internal/remote"
	"github.com/conorfennell/memodeck/internal/storage"
)

// Execute runs the memodeck command line.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memodeck",
		Short:         "Review decks of rows until you remember them",
		Long:          "Memodeck shows the rows of a deck one at a time, advancing on a timer, and keeps what you remember apart from what you are still learning.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newReviewCmd(),
		newUploadCmd(),
		newDecksCmd(),
		newDeleteCmd(),
		newSourcesCmd(),
		newSyncCmd(),
		newPrefsCmd(),
		newDiaryCmd(),
	)
	return root
}

// app is what every command needs once configuration is loaded.
type app struct {
	cfg config.Config
	db  *storage.DB
	lib *library.Library
}

func (a *app) Close() error {
	return a.db.Close()
}

// setup loads configuration, installs the logger and opens the database.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger())

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("database opened", "path", cfg.DB)

	var lib *library.Library
	if cfg.Parser.URL != "" {
		lib = library.New(db, remote.NewClient(cfg.Parser.URL, cfg.Parser.Timeout))
	} else {
		lib = library.New(db, nil)
	}
	return &app{cfg: cfg, db: db, lib: lib}, nil
}
