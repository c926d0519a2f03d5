package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/schedule"
)

var discoverChannelID string

var discoverCmd = &cobra.Command{
	Use:   "discover [video-id...]",
	Short: "Register content items for processing",
	Long:  "Registers video ids as content items and queues their metadata fetch. With --channel, enqueues a channel uploads poll instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if discoverChannelID == "" && len(args) == 0 {
			return eris.New("provide video ids or --channel")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if discoverChannelID != "" {
			task := schedule.Task{Kind: schedule.TaskDiscoverChannel, ChannelID: discoverChannelID}
			if err := env.Queue.Enqueue(ctx, task, schedule.Options{Unique: true}); err != nil {
				return err
			}
			zap.L().Info("channel poll enqueued", zap.String("channel_id", discoverChannelID))
		}

		for _, videoID := range args {
			item, err := env.Runner.Discover(ctx, videoID, "")
			if err != nil {
				return err
			}
			cmd.Printf("%s\t%s\t%s\n", item.ID, item.SourceID, item.Status)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverChannelID, "channel", "", "channel id to poll for recent uploads")
	rootCmd.AddCommand(discoverCmd)
}
