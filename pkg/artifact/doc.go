// Package artifact is the worker-local artifact cache described in the
// Worker Runtime design: Cache is the content-addressed, checksum-keyed
// directory shared by every job on a worker (with LRU Evict to bound its
// size); Store scopes one job's view of it, satisfying pkg/interp's
// ArtifactStore port by staging a step's produced files out of the job's
// pkg/workspace directory, checksumming and caching them, and persisting
// a types.Artifact record per name via storage.Store.
//
// This repository's wire protocol assigns a whole Job to a single Worker
// for its entire lifetime (see api/proto's AssignmentMessage), so unlike
// the original chunked Artifact-push RPC this package never needs to
// transfer artifact bytes between machines — only the within-job
// requires/produces handoff across Steps and across retried attempts of
// the same job on the same worker.
package artifact
