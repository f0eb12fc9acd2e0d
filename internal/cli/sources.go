package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	decksync "github.com/conorfennell/memodeck/internal/sync"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage directories and git repositories decks are synced from",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <path/or/url.git>",
			Short: "Add a deck source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				src, err := decksync.AddSource(cmd.Context(), a.db, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", src.Type, src.ID, src.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List deck sources",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				sources, err := a.db.GetAllSources(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tPATH\tLAST SCANNED")
				for _, s := range sources {
					scanned := "never"
					if s.LastScanned.Valid {
						scanned = s.LastScanned.Time.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a deck source; its decks are kept",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid source id %q", args[0])
				}
				a, err := setup(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.db.DeleteSource(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed source %d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import deck files from every source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := decksync.RunSync(cmd.Context(), a.db, a.lib, a.cfg.Repos)
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d sources: %d imported, %d deleted, %d errors\n",
				summary.Sources, summary.Imported, summary.Deleted, summary.Errors)
			return err
		},
	}
}
