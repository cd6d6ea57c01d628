// Package registry implements the Worker Registry described in the
// orchestrator design: the authority for which workers exist, whether
// they are currently reachable, and how to reach them.
//
// Each worker opens exactly one WorkerService.Stream and keeps it open
// for its entire lifetime, sending a Register envelope first (carrying a
// pkg/security join token scoping it to a pool) and Heartbeat/
// ExecutionEvent/ExecutionResult envelopes thereafter. The Registry's
// Stream handler is the server side of that bidi RPC: one goroutine per
// connected worker, persisting registration/heartbeat state into
// storage.Store and relaying execution envelopes into pkg/engine via the
// ResultHandler/EventHandler callbacks.
//
// Registry implements pkg/engine's Dispatcher interface on the other
// direction: Dispatch and Cancel look up the connection for a worker ID
// and write an Assignment or Cancel envelope down its stream. A worker
// with no open connection (never registered, or disconnected) fails
// Dispatch/Cancel immediately rather than queuing — pkg/engine treats
// that as a dispatch failure.
//
// A worker that disconnects uncleanly is marked offline and has
// worker.lost published for each of its active jobs immediately, the
// same outcome pkg/reconciler's heartbeat-staleness sweep produces for a
// worker that goes silent without closing its stream.
package registry
