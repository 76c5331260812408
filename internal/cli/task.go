package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect platform indexing tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the current status of an indexing task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStatus,
}

var (
	taskWaitInterval time.Duration
	taskWaitTimeout  time.Duration
)

var taskWaitCmd = &cobra.Command{
	Use:   "wait <task-id>",
	Short: "Block until an indexing task reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskWait,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskWaitCmd)
	taskWaitCmd.Flags().DurationVar(&taskWaitInterval, "interval", 0, "Poll interval (default from config)")
	taskWaitCmd.Flags().DurationVar(&taskWaitTimeout, "timeout", 0, "Give up after this long (default from config)")
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	task, err := client.Tasks().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, task)
	}
	fmt.Printf("Task:     %s\n", task.ID)
	fmt.Printf("Status:   %s\n", task.Status)
	if task.IndexID != "" {
		fmt.Printf("Index:    %s\n", task.IndexID)
	}
	if task.VideoID != "" {
		fmt.Printf("Video ID: %s\n", task.VideoID)
	}
	return nil
}

func runTaskWait(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	opts := waitOptions(cfg)
	if taskWaitInterval > 0 {
		opts.Interval = taskWaitInterval
	}
	if taskWaitTimeout > 0 {
		opts.Timeout = taskWaitTimeout
	}
	opts.OnPoll = func(status string, elapsed time.Duration) {
		fmt.Fprintf(os.Stderr, "  %-12s %4.0fs\n", status, elapsed.Seconds())
	}

	task, err := client.Tasks().WaitForReady(cmd.Context(), args[0], opts)
	if err != nil {
		var failed *cloud.TaskFailedError
		switch {
		case errors.As(err, &failed):
			return fmt.Errorf("task %s failed with status %q", args[0], failed.Status)
		case errors.Is(err, cloud.ErrWaitTimeout):
			return fmt.Errorf("task %s is still running: %w", args[0], err)
		default:
			return err
		}
	}

	if jsonOut {
		return printJSON(os.Stdout, task)
	}
	fmt.Printf("Task %s is ready, platform video id %s\n", task.ID, task.VideoID)
	return nil
}
