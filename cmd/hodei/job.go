package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hodei/pipelines/pkg/types"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage pipeline jobs",
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit -f PIPELINE.yaml",
	Short: "Submit a pipeline job",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		cpuMillis, _ := cmd.Flags().GetInt64("cpu-millis")
		memoryBytes, _ := cmd.Flags().GetInt64("memory-bytes")
		priority, _ := cmd.Flags().GetString("priority")
		maxWait, _ := cmd.Flags().GetDuration("max-wait")

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read pipeline file: %w", err)
		}
		var pipeline types.PipelineModel
		if err := yaml.Unmarshal(data, &pipeline); err != nil {
			return fmt.Errorf("failed to parse pipeline file: %w", err)
		}
		if name != "" {
			pipeline.Name = name
		}

		prio, err := parsePriority(priority)
		if err != nil {
			return err
		}

		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		job, err := c.SubmitJob(context.Background(), pipeline.Name, &pipeline, types.WorkerRequirements{
			CPUMillis:   cpuMillis,
			MemoryBytes: memoryBytes,
		}, prio, maxWait)
		if err != nil {
			return fmt.Errorf("failed to submit job: %w", err)
		}

		fmt.Printf("✓ Job submitted: %s\n", job.ID)
		fmt.Printf("  Name:  %s\n", job.Name)
		fmt.Printf("  Phase: %s\n", job.Phase)
		return nil
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get JOB_ID",
	Short: "Get a job's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		job, err := c.GetJob(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}

		fmt.Printf("ID:     %s\n", job.ID)
		fmt.Printf("Name:   %s\n", job.Name)
		fmt.Printf("Phase:  %s\n", job.Phase)
		fmt.Printf("Worker: %s\n", job.AssignedWorker)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, _ := cmd.Flags().GetString("phase")

		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		jobs, err := c.ListJobs(context.Background(), types.JobPhase(phase))
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}
		for _, job := range jobs {
			fmt.Printf("%s  %-10s  %s\n", job.ID, job.Phase, job.Name)
		}
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		job, err := c.CancelJob(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}
		fmt.Printf("✓ Job %s is now %s\n", job.ID, job.Phase)
		return nil
	},
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch JOB_ID",
	Short: "Stream a job's execution events until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		events, errc := c.SubscribeEvents(ctx, args[0])
		for event := range events {
			fmt.Printf("[%s] %s %s\n", event.Timestamp.Format(time.RFC3339), event.Type, event.Message)
		}
		return <-errc
	},
}

func parsePriority(s string) (types.Priority, error) {
	switch s {
	case "", "normal":
		return types.PriorityNormal, nil
	case "low":
		return types.PriorityLow, nil
	case "high":
		return types.PriorityHigh, nil
	case "critical":
		return types.PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority %q (want low, normal, high, critical)", s)
	}
}

func init() {
	jobCmd.AddCommand(jobSubmitCmd, jobGetCmd, jobListCmd, jobCancelCmd, jobWatchCmd)

	jobSubmitCmd.Flags().StringP("file", "f", "", "Pipeline YAML file (required)")
	jobSubmitCmd.Flags().String("name", "", "Override the job name from the pipeline file")
	jobSubmitCmd.Flags().Int64("cpu-millis", 100, "CPU required per worker, in millicores")
	jobSubmitCmd.Flags().Int64("memory-bytes", 128<<20, "Memory required per worker, in bytes")
	jobSubmitCmd.Flags().String("priority", "normal", "Priority: low, normal, high, critical")
	jobSubmitCmd.Flags().Duration("max-wait", 0, "Fail the job if it waits this long in the queue unscheduled; 0 disables the bound")
	_ = jobSubmitCmd.MarkFlagRequired("file")
	addClientFlags(jobSubmitCmd)

	jobListCmd.Flags().String("phase", "", "Filter by phase (pending, scheduled, running, succeeded, failed, cancelled)")
	addClientFlags(jobListCmd)

	addClientFlags(jobGetCmd)
	addClientFlags(jobCancelCmd)
	addClientFlags(jobWatchCmd)
}
