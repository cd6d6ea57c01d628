package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hodei/pipelines/pkg/types"
	"github.com/hodei/pipelines/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker node operations",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker and connect it to an orchestrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker-id")
		pool, _ := cmd.Flags().GetString("pool")
		orchestratorAddr, _ := cmd.Flags().GetString("orchestrator")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		token, _ := cmd.Flags().GetString("token")
		certDir, _ := cmd.Flags().GetString("cert-dir")
		cpuMillis, _ := cmd.Flags().GetInt64("cpu-millis")
		memoryBytes, _ := cmd.Flags().GetInt64("memory-bytes")

		w, err := worker.New(worker.Config{
			WorkerID:         workerID,
			PoolName:         pool,
			OrchestratorAddr: orchestratorAddr,
			DataDir:          dataDir,
			JoinToken:        token,
			CertDir:          certDir,
			Capacity: types.WorkerCapacity{
				CPUMillis:   cpuMillis,
				MemoryBytes: memoryBytes,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create worker: %w", err)
		}

		if err := w.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}

		fmt.Printf("✓ Worker %q connected to %s (pool %q)\n", workerID, orchestratorAddr, pool)
		fmt.Println("Press Ctrl+C to stop.")
		waitForSignal()

		fmt.Println("\nShutting down...")
		if err := w.Stop(); err != nil {
			return fmt.Errorf("failed to stop worker: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().String("worker-id", "worker-1", "Unique worker ID")
	workerStartCmd.Flags().String("pool", "default", "Resource pool this worker belongs to")
	workerStartCmd.Flags().String("orchestrator", "127.0.0.1:8443", "Orchestrator gRPC address")
	workerStartCmd.Flags().String("data-dir", "./hodei-worker-data", "Data directory for local storage")
	workerStartCmd.Flags().String("token", "", "Join token from the orchestrator (required for first connection)")
	workerStartCmd.Flags().String("cert-dir", "", "Directory holding a pre-staged worker certificate; insecure dial if empty")
	workerStartCmd.Flags().Int64("cpu-millis", 4000, "CPU capacity in millicores")
	workerStartCmd.Flags().Int64("memory-bytes", 8<<30, "Memory capacity in bytes")
}
