package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster-wide operations",
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token POOL_NAME",
	Short: "Generate a join token for workers joining a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		token, expiresAt, err := c.GenerateJoinToken(context.Background(), args[0], ttl)
		if err != nil {
			return fmt.Errorf("failed to generate join token: %w", err)
		}

		addr, _ := cmd.Flags().GetString("orchestrator")
		fmt.Printf("Join token for pool %q (expires %s):\n\n", args[0], expiresAt.Format(time.RFC3339))
		fmt.Printf("    %s\n\n", token)
		fmt.Println("To join a worker to this pool, run:")
		fmt.Printf("    hodei worker start --orchestrator %s --pool %s --token %s\n", addr, args[0], token)
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterJoinTokenCmd)
	clusterJoinTokenCmd.Flags().Duration("ttl", time.Hour, "Token validity duration")
	addClientFlags(clusterJoinTokenCmd)
}
