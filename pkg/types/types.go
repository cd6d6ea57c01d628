package types

import "time"

// Secret is encrypted sensitive data (registry credentials, API tokens, repo
// deploy keys) a Step can request by name via Step.Secrets. The orchestrator
// stores only the ciphertext; pkg/security decrypts it into the worker's job
// environment at dispatch time, never at rest and never logged.
type Secret struct {
	ID        string
	Name      string
	Data      []byte // AES-256-GCM ciphertext, see pkg/security
	CreatedAt time.Time
	UpdatedAt time.Time
}
