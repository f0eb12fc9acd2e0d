package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memodeck/internal/domain"
)

func newDiaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diary",
		Short: "Keep dated notes beside your decks",
	}

	var images []string
	add := &cobra.Command{
		Use:   "add <text>...",
		Short: "Write a diary entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := domain.NewDiaryEntry(strings.Join(args, " "), images, time.Now())
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.db.AddDiary(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added diary entry %s\n", entry.ID)
			return nil
		},
	}
	add.Flags().StringSliceVar(&images, "image", nil, "Reference to an attached picture (repeatable)")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list",
			Short: "List diary entries, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				list, err := a.db.Diaries(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tWRITTEN\tIMAGES\tTEXT")
				for _, e := range list {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.Time.Local().Format("2006-01-02 15:04"), len(e.Images), e.Text)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Delete a diary entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.db.DeleteDiary(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed diary entry %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
