package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"advisorgate/internal/ledger"
)

var resyncAll bool

var resyncCmd = &cobra.Command{
	Use:   "resync [user-id...]",
	Short: "Rebuild ledger counters from analysis history",
	Long: `Rebuild ledger counters from the last 24 hours of analysis history.

Counts are capped at the current plan limit and each window starts at the
oldest qualifying analysis. Running it repeatedly is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resyncAll && len(args) == 0 {
			return errors.New("give at least one user id or --all")
		}
		e, err := openEnv()
		if err != nil {
			return err
		}

		if resyncAll {
			n, err := ledger.NewScheduler(e.ledger, "", nil, e.log).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "resynced %d users\n", n)
			return err
		}
		for _, userID := range args {
			row, err := e.ledger.Resync(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("resync %s: %w", userID, err)
			}
			if err := printLedger(cmd.OutOrStdout(), "text", row, e.ledger.Limits(), e.ledger.Now()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resyncCmd)
	resyncCmd.Flags().BoolVar(&resyncAll, "all", false, "resync every user active in the last 24 hours")
}
