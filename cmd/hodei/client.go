package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hodei/pipelines/pkg/client"
	"github.com/hodei/pipelines/pkg/security"
)

// addClientFlags attaches the --orchestrator/--cert-dir flags every
// client-facing command shares.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("orchestrator", "127.0.0.1:8443", "Orchestrator gRPC address")
	cmd.Flags().String("cert-dir", "", "Directory holding the CLI's mTLS certificate (defaults to ~/.hodei/certs/cli)")
}

// newControlClient dials the orchestrator named by a command's
// --orchestrator/--cert-dir flags.
func newControlClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("orchestrator")
	certDir, _ := cmd.Flags().GetString("cert-dir")

	if certDir == "" {
		var err error
		certDir, err = security.GetCLICertDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default cert directory: %w", err)
		}
	}

	return client.NewClient(addr, certDir)
}
