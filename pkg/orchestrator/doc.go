// Package orchestrator is the composition root: it wires storage, the
// Certificate Authority, the Job Queue, Scheduler, Resource Pool Registry,
// Execution Engine, and Worker Registry into a single running process, and
// exposes both over one mTLS gRPC server (ControlService for clients,
// WorkerService for workers).
//
// Wiring order follows the teacher's manager.go bootstrap shape
// (initializeCA, then the long-lived subsystems, then Serve), generalized
// from its Raft-replicated Node/Service model to this package's
// Job/Worker/ResourcePool model, which runs single-node with BoltDB instead
// of a replicated FSM (see DESIGN.md's Open Question resolution on
// clustering).
package orchestrator
