package commands

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"
)

func newReconcileCommand(deps Deps) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-derive account totals from their entries and repair drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.config()
			result, err := deps.openBackend(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer result.Cleanup()

			started := time.Now()
			report, err := result.Backend.Reconciler.Sweep(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d repaired=%d failed=%d\n",
				report.Checked, report.Repaired, report.Failed)
			fmt.Fprintf(cmd.ErrOrStderr(), "sweep took %s\n", elapsed(time.Since(started)))
			if report.Failed > 0 {
				return fmt.Errorf("%d accounts could not be reconciled", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only reconcile this owner's accounts")
	return cmd
}

// elapsed renders d as its two largest units, e.g. "1 second 250 milliseconds".
func elapsed(d time.Duration) string {
	if d < time.Millisecond {
		return "under a millisecond"
	}
	return durafmt.Parse(d.Round(time.Millisecond)).LimitFirstN(2).String()
}
