/*
Package client provides a Go client library for the orchestrator's
ControlService API.

The client wraps api/proto's hand-rolled ControlServiceClient with a
convenient, idiomatic Go interface: connection management, mTLS dialing,
and type-safe methods for every control-plane operation.

# Usage

Creating a Client (with an existing certificate, e.g. staged under
~/.hodei/certs/cli by an operator; security.GetCLICertDir returns that path):

	import "github.com/hodei/pipelines/pkg/client"

	certDir, _ := security.GetCLICertDir()
	c, err := client.NewClient("orchestrator.internal:8443", certDir)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

# Job Operations

	job, err := c.SubmitJob(ctx, "build", pipeline, requirements, types.PriorityNormal, 0)
	jobs, err := c.ListJobs(ctx, types.JobRunning)
	job, err = c.GetJob(ctx, jobID)
	job, err = c.CancelJob(ctx, jobID)

# Pool and Worker Operations

	pool, err := c.CreatePool(ctx, &types.ResourcePool{Name: "default", Provider: types.ProviderContainer})
	pools, err := c.ListPools(ctx)
	workers, err := c.ListWorkers(ctx, "")
	token, expiresAt, err := c.GenerateJoinToken(ctx, "default", time.Hour)

# Streaming Events

SubscribeEvents returns immediately; a background goroutine feeds the
returned channel of *types.ExecutionEvent until the job reaches a terminal
phase or ctx is canceled:

	events, errc := c.SubscribeEvents(ctx, jobID)
	for event := range events {
		fmt.Println(event.Type)
	}
	if err := <-errc; err != nil {
		log.Println(err)
	}

# Certificate Bootstrap

There is no in-band "request a certificate" RPC on ControlService (see
DESIGN.md's Open Question on worker certificate bootstrap): an operator
provisions a CLI identity out of band via pkg/security.CertAuthority,
typically through a local orchestrator process's IssueClientCertificate,
and stages it at the directory NewClient expects.

# See Also

  - pkg/orchestrator for the server-side ControlService implementation
  - api/proto for the wire types exchanged
  - pkg/security for certificate management
  - cmd/hodei for CLI usage examples
*/
package client
