package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Certificate bootstrap helpers",
}

// certBootstrapCmd issues a CLI client certificate straight from an
// orchestrator's certificate authority. There is no in-band
// "request a certificate" RPC on ControlService (see DESIGN.md's Open
// Question on worker certificate bootstrap), so this is the operator-run
// out-of-band flow: it must be run somewhere with filesystem access to the
// orchestrator's data directory, typically on the orchestrator host itself.
var certBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Issue a CLI certificate from an orchestrator's data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		clientID, _ := cmd.Flags().GetString("client-id")
		certDir, _ := cmd.Flags().GetString("cert-dir")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open orchestrator store: %w", err)
		}
		defer store.Close()

		ca := security.NewCertAuthority(store)
		if err := ca.LoadFromStore(); err != nil {
			return fmt.Errorf("no certificate authority found in %s: %w", dataDir, err)
		}

		cert, err := ca.IssueClientCertificate(clientID)
		if err != nil {
			return fmt.Errorf("failed to issue client certificate: %w", err)
		}

		if certDir == "" {
			certDir, err = security.GetCLICertDir()
			if err != nil {
				return fmt.Errorf("failed to resolve default cert directory: %w", err)
			}
		}
		if err := security.SaveCertToFile(cert, certDir); err != nil {
			return fmt.Errorf("failed to save client certificate: %w", err)
		}
		if err := security.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
			return fmt.Errorf("failed to save CA certificate: %w", err)
		}

		fmt.Printf("✓ Certificate issued for %q at %s\n", clientID, certDir)
		return nil
	},
}

func init() {
	certCmd.AddCommand(certBootstrapCmd)

	certBootstrapCmd.Flags().String("data-dir", "./hodei-data", "Orchestrator data directory")
	certBootstrapCmd.Flags().String("client-id", "cli", "Identity to embed in the issued certificate")
	certBootstrapCmd.Flags().String("cert-dir", "", "Destination directory (defaults to ~/.hodei/certs/cli)")
}
