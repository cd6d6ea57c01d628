package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hodei/pipelines/pkg/orchestrator"
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Orchestrator node operations",
}

var orchestratorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the orchestrator control plane",
	Long: `Start the Hodei orchestrator: Job Queue, Scheduler, Resource Pool
Registry, Execution Engine, and Worker Registry, served over one mTLS gRPC
listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		strategy, _ := cmd.Flags().GetString("strategy")
		poolStrategy, _ := cmd.Flags().GetString("pool-strategy")
		containerSocket, _ := cmd.Flags().GetString("container-socket")

		o, err := orchestrator.New(orchestrator.Config{
			NodeID:              nodeID,
			BindAddr:            bindAddr,
			DataDir:             dataDir,
			Strategy:            strategy,
			PoolStrategy:        poolStrategy,
			ContainerSocketPath: containerSocket,
		})
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}

		if err := o.Start(); err != nil {
			return fmt.Errorf("failed to start orchestrator: %w", err)
		}

		fmt.Printf("✓ Orchestrator %q listening on %s\n", nodeID, bindAddr)
		fmt.Println("Press Ctrl+C to stop.")
		waitForSignal()

		fmt.Println("\nShutting down...")
		if err := o.Stop(); err != nil {
			return fmt.Errorf("failed to stop orchestrator: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	orchestratorCmd.AddCommand(orchestratorStartCmd)

	orchestratorStartCmd.Flags().String("node-id", "orchestrator-1", "Unique node ID")
	orchestratorStartCmd.Flags().String("bind-addr", "0.0.0.0:8443", "gRPC listen address")
	orchestratorStartCmd.Flags().String("data-dir", "./hodei-data", "Data directory for BoltDB storage and certificates")
	orchestratorStartCmd.Flags().String("strategy", "spread", "Worker placement strategy within a pool (spread, binpack, random)")
	orchestratorStartCmd.Flags().String("pool-strategy", "round-robin", "Pool placement strategy (round-robin, least-loaded, greedy-best-fit, bin-packing)")
	orchestratorStartCmd.Flags().String("container-socket", "", "containerd socket path, enables the container resource pool provider")
}
