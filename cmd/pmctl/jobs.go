package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-pm/odyssey-pm/internal/app"
	"github.com/odyssey-pm/odyssey-pm/jobs"
)

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

func newJobsCLI() (*jobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	opts := cfg.AsynqRedis()
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &jobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *jobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

func withJobs(ctx context.Context, fn func(*jobsCLI) error) error {
	cli, err := newJobsCLI()
	if err != nil {
		return err
	}
	defer cli.Close()
	return fn(cli)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Enqueue and inspect background jobs",
}

var jobsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Enqueue a principal snapshot rebuild for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		return withJobs(cmd.Context(), func(cli *jobsCLI) error {
			if err := cli.client.EnqueueAccessRefresh(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s for %s\n", jobs.TaskAccessRefresh, userID)
			return nil
		})
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd.Context(), func(cli *jobsCLI) error {
			stats, err := jobs.InspectQueues(cli.inspector)
			if err != nil {
				return err
			}
			return renderQueueStats(cmd.OutOrStdout(), stats)
		})
	},
}

func renderQueueStats(w io.Writer, stats []jobs.QueueStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	return tw.Flush()
}

func init() {
	jobsRefreshCmd.Flags().StringP("user", "u", "", "User ID")
	_ = jobsRefreshCmd.MarkFlagRequired("user")
	jobsCmd.AddCommand(jobsRefreshCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}
