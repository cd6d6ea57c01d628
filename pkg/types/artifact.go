package types

import "time"

// Artifact is a named, content-addressed file produced by a Step and
// available to later Steps (and other Jobs, when published).
type Artifact struct {
	Name       string    `json:"name"`
	JobID      string    `json:"jobId"`
	Step       string    `json:"step"`
	Checksum   string    `json:"checksum"` // "sha256:<hex>"
	SizeBytes  int64     `json:"sizeBytes"`
	StoredAt   time.Time `json:"storedAt"`
	LocalPath  string    `json:"-"` // worker-local path, never serialized over the wire
}
