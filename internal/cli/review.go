package cli

import (
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/conorfennell/memodeck/internal/library"
	"github.com/conorfennell/memodeck/internal/review"
	"github.com/conorfennell/memodeck/internal/tui"
)

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review [deck]",
		Short: "Review a deck in the terminal",
		Long:  "Review a deck in the terminal. Without a deck name the getting-started guide is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReview,
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	deck := library.GuideDeckName
	if len(args) == 1 {
		deck = args[0]
	} else if _, err := a.lib.SeedGuide(ctx); err != nil {
		return err
	}

	// The terminal belongs to the program; keep engine logging quiet.
	engine := review.New(a.db, a.db,
		review.WithObserver(a.lib.Observe),
		review.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer engine.Close()

	model, unsubscribe := tui.New(ctx, engine)
	defer unsubscribe()
	if err := engine.Load(ctx, deck); err != nil && !errors.Is(err, review.ErrEmptyPool) {
		return fmt.Errorf("load %s: %w", deck, err)
	}

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
