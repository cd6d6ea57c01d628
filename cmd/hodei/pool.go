package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hodei/pipelines/pkg/types"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage resource pools",
}

var poolCreateCmd = &cobra.Command{
	Use:   "create -f POOL.yaml",
	Short: "Register a resource pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		provider, _ := cmd.Flags().GetString("provider")
		minWorkers, _ := cmd.Flags().GetInt("min-workers")
		maxWorkers, _ := cmd.Flags().GetInt("max-workers")

		var pool types.ResourcePool
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read pool file: %w", err)
			}
			if err := yaml.Unmarshal(data, &pool); err != nil {
				return fmt.Errorf("failed to parse pool file: %w", err)
			}
		}
		if name != "" {
			pool.Name = name
		}
		if provider != "" {
			pool.Provider = types.ProviderKind(provider)
		}
		if pool.Name == "" {
			return fmt.Errorf("pool name is required (set --name or metadata in -f)")
		}
		pool.MinWorkers = minWorkers
		pool.MaxWorkers = maxWorkers

		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		created, err := c.CreatePool(context.Background(), &pool)
		if err != nil {
			return fmt.Errorf("failed to create pool: %w", err)
		}
		fmt.Printf("✓ Pool created: %s (provider %s)\n", created.Name, created.Provider)
		return nil
	},
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resource pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		pools, err := c.ListPools(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list pools: %w", err)
		}
		if len(pools) == 0 {
			fmt.Println("No pools found.")
			return nil
		}
		for _, pool := range pools {
			fmt.Printf("%-20s  provider=%-10s  min=%d  max=%d\n", pool.Name, pool.Provider, pool.MinWorkers, pool.MaxWorkers)
		}
		return nil
	},
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, _ := cmd.Flags().GetString("pool")

		c, err := newControlClient(cmd)
		if err != nil {
			return fmt.Errorf("failed to connect to orchestrator: %w", err)
		}
		defer c.Close()

		workers, err := c.ListWorkers(context.Background(), pool)
		if err != nil {
			return fmt.Errorf("failed to list workers: %w", err)
		}
		if len(workers) == 0 {
			fmt.Println("No workers found.")
			return nil
		}
		for _, w := range workers {
			fmt.Printf("%-20s  pool=%-15s  status=%s\n", w.ID, w.PoolName, w.Status)
		}
		return nil
	},
}

func init() {
	poolCmd.AddCommand(poolCreateCmd, poolListCmd)

	poolCreateCmd.Flags().StringP("file", "f", "", "Pool YAML file")
	poolCreateCmd.Flags().String("name", "", "Pool name (overrides -f)")
	poolCreateCmd.Flags().String("provider", "container", "Provider kind: container or vm")
	poolCreateCmd.Flags().Int("min-workers", 0, "Minimum warm workers")
	poolCreateCmd.Flags().Int("max-workers", 5, "Maximum workers")
	addClientFlags(poolCreateCmd)
	addClientFlags(poolListCmd)

	workerCmd.AddCommand(workerListCmd)
	workerListCmd.Flags().String("pool", "", "Filter by pool name")
	addClientFlags(workerListCmd)
}
