package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/store"
)

var quotaViolationsLimit int

var quotaCmd = &cobra.Command{
	Use:   "quota [model]",
	Short: "Show quota usage for the configured models",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tier := quota.Tier(cfg.Quota.NormalizedTier())
		ledger := quota.NewLedger(st, tier)

		models := args
		if len(models) == 0 {
			for m := range quota.ModelsInTier(tier) {
				models = append(models, m)
			}
		}

		for _, m := range models {
			snap, err := ledger.Usage(ctx, m)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
		}
		return nil
	},
}

var quotaViolationsCmd = &cobra.Command{
	Use:   "violations [model]",
	Short: "List recent quota violation audit rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.ViolationFilter{Limit: quotaViolationsLimit}
		if len(args) == 1 {
			filter.Model = args[0]
		}

		violations, err := st.ListQuotaViolations(ctx, filter)
		if err != nil {
			return err
		}
		for _, v := range violations {
			kind := "provider"
			if v.Proactive {
				kind = "proactive"
			}
			cmd.Printf("%s\t%s\t%s\t%s\twait=%ds\t%s\n",
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				v.Model, v.Dimension, kind, v.RetryDelaySeconds, v.QuotaID)
		}
		return nil
	},
}

func init() {
	quotaViolationsCmd.Flags().IntVar(&quotaViolationsLimit, "limit", 50, "max rows to list")
	quotaCmd.AddCommand(quotaViolationsCmd)
	rootCmd.AddCommand(quotaCmd)
}
