package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"advisorgate/internal/billing"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Subscription maintenance",
}

var billingSyncCmd = &cobra.Command{
	Use:   "sync <user-id>...",
	Short: "Refresh premium status from Stripe",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		if e.cfg.Stripe.SecretKey == "" {
			return billing.ErrNotConfigured
		}
		s := billing.NewSync(e.ledger, billing.NewStripeClient(e.cfg.Stripe.SecretKey), e.cfg.Stripe.WebhookSecret, e.log)
		for _, userID := range args {
			res, err := s.SyncUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("sync %s: %w", userID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s linked=%t premium=%t\n", res.UserID, res.Linked, res.IsPremium)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(billingCmd)
	billingCmd.AddCommand(billingSyncCmd)
}
