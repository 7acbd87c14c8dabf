package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCreateQueueCmd creates the 'create-queue' subcommand. Its flags are bound onto
// the queue.* config keys by the root command.
func newCreateQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-queue",
		Short: "Rebuilds the grabber work queue",
		Long: `Scans CHANNELS_PATH for channel lists, creates one item per channel and
day, shuffles the items into clusters and replaces the stored queue. Channels
with an unknown xmltv_id are written to LOGS_DIR/errors/<region>/<site>.log.
Channel lists named without a region are grouped as null/<site>.`,
		Args: cobra.NoArgs,
		RunE: runCreateQueue,
	}
	cmd.Flags().Int("max-clusters", 256, "Set maximum number of clusters")
	cmd.Flags().Int("days", 1, "Number of days for which to grab the program")
	cmd.Flags().Int64("seed", 0, "Shuffle seed (0 picks a random seed)")
	cmd.Flags().String("date", "", "First queued day as YYYY-MM-DD (default today, UTC)")
	return cmd
}

func runCreateQueue(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	logger.Info("Starting...")

	res, err := appInstance.Creator().Run(cmd.Context())
	if pushErr := appInstance.PushMetrics(cmd.Context()); pushErr != nil {
		logger.Warn("Failed to push metrics", zap.Error(pushErr))
	}
	if err != nil {
		logger.Error("Queue creation failed", zap.Error(err))
		return fmt.Errorf("create queue: %w", err)
	}

	logger.Info("Done",
		zap.String("run_id", res.RunID),
		zap.Int("items", res.Items),
		zap.Int("clusters", len(res.ClusterSizes)),
		zap.String("snapshot_uri", res.SnapshotURI),
	)
	return nil
}
