package main

import (
	"github.com/spf13/cobra"

	"github.com/simargl-labs/content-pipeline/internal/schedule"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Manage repeating jobs",
}

var schedulesPollCmd = &cobra.Command{
	Use:   "poll <channel-id>",
	Short: "Register a repeating uploads poll for a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		channelID := args[0]

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		task := schedule.Task{Kind: schedule.TaskDiscoverChannel, ChannelID: channelID}
		return env.Queue.RegisterRepeating(ctx, "poll:"+channelID, cfg.Schedules.PollCron, cfg.Schedules.Timezone, task)
	},
}

var schedulesUnpollCmd = &cobra.Command{
	Use:   "unpoll <channel-id>",
	Short: "Remove a channel's repeating uploads poll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Queue.RemoveRepeating(ctx, "poll:"+args[0])
	},
}

func init() {
	schedulesCmd.AddCommand(schedulesPollCmd, schedulesUnpollCmd)
	rootCmd.AddCommand(schedulesCmd)
}
