/*
Package security provides mTLS certificate issuance and secret encryption
for the orchestrator, workers, and CLI clients.

# Architecture

	┌─────────────────────────────────────────────────────────┐
	│                    CertAuthority                         │
	│  - Root CA: RSA-4096, self-signed, 10-year validity      │
	│  - Node certs: RSA-2048, CA-signed, 90-day validity      │
	│  - Client certs: RSA-2048, ClientAuth only               │
	│  - Root key at rest: AES-256-GCM under the cluster key    │
	└───────────────────────────────────────────────────────────┘

The root CA is generated once (CertAuthority.Initialize) and persisted
through storage.Store.SaveCA/GetCA with its private key encrypted under the
cluster encryption key (DeriveKeyFromClusterID). IssueNodeCertificate signs a
leaf certificate for an orchestrator or worker process; IssueClientCertificate
signs one for a CLI client connecting over the gRPC wire protocol. Both
record the issued certificate in an in-memory cache readable through
GetCachedCert; issuing does not consult that cache, so every call signs a
new certificate.

CertNeedsRotation reports whether a certificate is within 30 days of
expiry. The orchestrator and workers do not call it, and nothing re-issues
a certificate automatically.

# Secrets

SecretsManager wraps AES-256-GCM. CreateSecret encrypts a value into a
types.Secret for storage.Store; pkg/engine loads the secrets a pipeline
references and decrypts them (GetSecretData) when it dispatches the job, so
the worker receives the decrypted values with its assignment. The nonce is
prepended to the ciphertext so a single []byte round-trips through
EncryptSecret/DecryptSecret.

# Usage

	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		return err
	}
	if err := ca.SaveToStore(); err != nil {
		return err
	}
	cert, err := ca.IssueNodeCertificate("worker-1", "worker", nil, nil)

# Threat model

Protects against network eavesdropping (TLS), unauthenticated workers
joining a pool (mTLS), and secrets at rest in storage (AES-256-GCM). Does
not protect against a compromised cluster encryption key or a compromised
orchestrator process, both of which have access to plaintext secrets in
memory.

# Integration points

  - pkg/orchestrator owns the CertAuthority, issues its own server
    certificate from it, and issues CLI client certificates; worker
    registration (pkg/registry) checks a join token and issues none.
  - pkg/worker loads its certificate from disk (certs.go) on startup and
    presents it on every gRPC dial.
  - pkg/engine decrypts Step.Secrets via SecretsManager before dispatch.
*/
package security
