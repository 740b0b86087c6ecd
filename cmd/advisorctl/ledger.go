package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"advisorgate/internal/db"
	"advisorgate/internal/ledger"
	"advisorgate/internal/usage"
)

var ledgerFlags struct {
	format      string
	tier        string
	count       int
	windowStart string
	premium     string
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or edit ledger rows",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Print a user's ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		row, err := e.ledger.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printLedger(cmd.OutOrStdout(), ledgerFlags.format, row, e.ledger.Limits(), e.ledger.Now())
	},
}

var ledgerSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Overwrite one tier counter or the premium flag",
	Long: `Overwrite one tier counter or the premium flag.

Examples:
  # Give a user back one standard credit
  advisorctl ledger set user-123 --tier standard --count 1

  # Grant premium by hand
  advisorctl ledger set user-123 --premium true`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		if ledgerFlags.tier == "" && ledgerFlags.premium == "" {
			return fmt.Errorf("nothing to set: use --tier/--count or --premium")
		}
		e, err := openEnv()
		if err != nil {
			return err
		}

		if ledgerFlags.premium != "" {
			premium := ledgerFlags.premium == "true"
			if !premium && ledgerFlags.premium != "false" {
				return fmt.Errorf("--premium must be true or false")
			}
			if err := e.ledger.SetPremium(cmd.Context(), userID, premium, ""); err != nil {
				return err
			}
		}

		if ledgerFlags.tier != "" {
			tier := usage.Tier(ledgerFlags.tier)
			if !tier.Valid() {
				return fmt.Errorf("unknown tier %q", ledgerFlags.tier)
			}
			row, err := e.ledger.Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if limit := e.ledger.Limits().For(tier, row.IsPremium); ledgerFlags.count > limit {
				return fmt.Errorf("--count %d is above the %s limit of %d", ledgerFlags.count, tier, limit)
			}
			start := e.ledger.Now()
			if ledgerFlags.windowStart != "" {
				if start, err = time.Parse(time.RFC3339, ledgerFlags.windowStart); err != nil {
					return fmt.Errorf("--window-start: %w", err)
				}
			}
			if err := e.ledger.SetCounter(cmd.Context(), userID, tier, start, ledgerFlags.count); err != nil {
				return err
			}
		}

		row, err := e.ledger.Get(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printLedger(cmd.OutOrStdout(), ledgerFlags.format, row, e.ledger.Limits(), e.ledger.Now())
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd, ledgerSetCmd)

	ledgerCmd.PersistentFlags().StringVar(&ledgerFlags.format, "format", "text", "output format: text, json")
	ledgerSetCmd.Flags().StringVar(&ledgerFlags.tier, "tier", "", "tier to overwrite: standard, deep, tools")
	ledgerSetCmd.Flags().IntVar(&ledgerFlags.count, "count", 0, "new count for --tier")
	ledgerSetCmd.Flags().StringVar(&ledgerFlags.windowStart, "window-start", "", "window start (RFC3339, default now)")
	ledgerSetCmd.Flags().StringVar(&ledgerFlags.premium, "premium", "", "set the premium flag: true, false")
}

type tierLine struct {
	Tier        usage.Tier `json:"tier"`
	Used        int        `json:"used"`
	Limit       int        `json:"limit"`
	Pending     int        `json:"pending"`
	WindowStart *time.Time `json:"window_start"`
	ResetAt     *time.Time `json:"reset_at"`
}

type ledgerOut struct {
	UserID         string     `json:"user_id"`
	IsPremium      bool       `json:"is_premium"`
	StripeCustomer *string    `json:"stripe_customer_id"`
	LastAnalysisAt *time.Time `json:"last_analysis_at"`
	Tiers          []tierLine `json:"tiers"`
}

func printLedger(w io.Writer, format string, row db.UsageLedger, limits usage.Limits, now time.Time) error {
	out := ledgerOut{
		UserID:         row.UserID,
		IsPremium:      row.IsPremium,
		StripeCustomer: row.StripeCustomerID,
		LastAnalysisAt: row.LastAnalysisAt,
	}
	for _, t := range usage.Tiers {
		d := ledger.Evaluate(now, row, t, limits)
		line := tierLine{Tier: t, Used: d.Used, Limit: d.Limit}
		if d.Used > 0 {
			line.Pending = min(row.Counter(t).Pending, d.Used)
		}
		if !d.ResetAt.IsZero() {
			start, reset := d.ResetAt.Add(-usage.Window), d.ResetAt
			line.WindowStart, line.ResetAt = &start, &reset
		}
		out.Tiers = append(out.Tiers, line)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "user %s  premium=%t\n", out.UserID, out.IsPremium)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tUSED\tPENDING\tLIMIT\tRESETS")
	for _, l := range out.Tiers {
		reset := "-"
		if l.ResetAt != nil {
			reset = l.ResetAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", l.Tier, l.Used, l.Pending, l.Limit, reset)
	}
	return tw.Flush()
}
