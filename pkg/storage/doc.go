/*
Package storage provides BoltDB-backed state persistence for the
orchestrator's Jobs, Workers, ResourcePools, and per-job ExecutionEvent log.

# Architecture

BoltDB (bbolt) gives embedded, transactional storage with zero external
server dependencies:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│  BoltStore                                                │
	│  - File: <dataDir>/hodei.db                               │
	│  - Format: B+tree with MVCC                                │
	│  - Transactions: ACID with fsync                           │
	│                                                            │
	│  Bucket Structure                                          │
	│    jobs       (Job ID)                                     │
	│    workers    (Worker ID)                                  │
	│    pools      (ResourcePool Name)                          │
	│    events     (composite key "<jobID>/<eventID>")          │
	│    artifacts  (composite key "<jobID>/<artifactName>")     │
	│    secrets    (Secret Name)                                │
	│    ca         (fixed key "ca")                              │
	└────────────────────────────────────────────────────────────┘

Events and artifacts use a composite "<jobID>/<id>" key so ListEventsByJob
and ListArtifactsByJob range-scan one job's records via a bucket cursor
seek+prefix walk rather than a full-bucket scan, which matters once the
event bucket accumulates many completed jobs' histories.

# Transactions

Reads use db.View (concurrent, MVCC snapshot); writes use db.Update
(serialized, single writer). Every method opens exactly one transaction;
callers needing multiple writes atomically should extend BoltStore with a
new method rather than composing existing ones across transactions.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateJob(job); err != nil {
		return err
	}

# Integration points

  - pkg/orchestrator opens the control plane's Store and passes it to the
    other control-plane components (queue, scheduler, registry, engine,
    reconciler), which never open their own BoltDB file.
  - pkg/worker opens a separate, local BoltStore under its own data
    directory for its artifact records.
  - pkg/security persists the mTLS root CA via SaveCA/GetCA.
*/
package storage
