package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/simargl-labs/content-pipeline/internal/model"
)

var (
	statusFilter string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status [content-id]",
	Short: "Show content items and where they sit in the pipeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 1 {
			item, err := st.GetContentItem(ctx, args[0])
			if err != nil {
				return err
			}
			if item == nil {
				cmd.Printf("content item %s not found\n", args[0])
				return nil
			}
			out, err := json.MarshalIndent(item, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		statuses := []model.ContentStatus{
			model.StatusDiscovered,
			model.StatusInitializing,
			model.StatusMetadataReady,
			model.StatusInsightsQueued,
			model.StatusInsightsGathered,
			model.StatusFailed,
		}
		if statusFilter != "" {
			statuses = []model.ContentStatus{model.ContentStatus(statusFilter)}
		}

		for _, status := range statuses {
			items, err := st.ListContentByStatus(ctx, status, statusLimit)
			if err != nil {
				return err
			}
			for _, item := range items {
				cmd.Printf("%s\t%s\t%s\t%s\n", item.ID, item.SourceID, item.Status, item.Title)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "only list items at this status")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "max items per status")
	rootCmd.AddCommand(statusCmd)
}
