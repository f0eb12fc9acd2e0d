package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memodeck/internal/domain"
)

func newPrefsCmd() *cobra.Command {
	var (
		interval int
		mode     string
		fontSize int
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change review preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			prefs, err := a.db.Preferences(ctx)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("interval") {
				prefs.IntervalSeconds = interval
			}
			if flags.Changed("mode") {
				policy, err := domain.ParsePolicy(mode)
				if err != nil {
					return err
				}
				prefs.Policy = policy
			}
			if flags.Changed("font-size") {
				prefs.FontSize = fontSize
			}
			if flags.Changed("interval") || flags.Changed("mode") || flags.Changed("font-size") {
				if err := a.db.SavePreferences(ctx, prefs); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "interval:  %ds\n", prefs.IntervalSeconds)
			fmt.Fprintf(out, "mode:      %s\n", prefs.Policy.PlayMode())
			fmt.Fprintf(out, "font size: %d\n", prefs.FontSize)
			return nil
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 0, "Seconds between automatic advances (1-3600)")
	cmd.Flags().StringVar(&mode, "mode", "", "Play mode: loop or random")
	cmd.Flags().IntVar(&fontSize, "font-size", 0, "Text size (10-48)")
	return cmd
}
