package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hodei/pipelines/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketJobs      = []byte("jobs")
	bucketWorkers   = []byte("workers")
	bucketPools     = []byte("pools")
	bucketEvents    = []byte("events")
	bucketArtifacts = []byte("artifacts")
	bucketSecrets   = []byte("secrets")
	bucketCA        = []byte("ca")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB-backed store rooted
// at dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "hodei.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketJobs, bucketWorkers, bucketPools, bucketEvents, bucketArtifacts, bucketSecrets, bucketCA}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Jobs ---

func (s *BoltStore) CreateJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketJobs).Put([]byte(job.ID), data)
	})
}

func (s *BoltStore) GetJob(id string) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("job not found: %s", id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) ListJobsByPhase(phase types.JobPhase) ([]*types.Job, error) {
	all, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Job
	for _, j := range all {
		if j.Phase == phase {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateJob(job *types.Job) error {
	return s.CreateJob(job) // upsert
}

func (s *BoltStore) DeleteJob(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete([]byte(id))
	})
}

// --- Workers ---

func (s *BoltStore) CreateWorker(worker *types.Worker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(worker)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketWorkers).Put([]byte(worker.ID), data)
	})
}

func (s *BoltStore) GetWorker(id string) (*types.Worker, error) {
	var worker types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWorkers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("worker not found: %s", id)
		}
		return json.Unmarshal(data, &worker)
	})
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (s *BoltStore) ListWorkers() ([]*types.Worker, error) {
	var workers []*types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).ForEach(func(k, v []byte) error {
			var worker types.Worker
			if err := json.Unmarshal(v, &worker); err != nil {
				return err
			}
			workers = append(workers, &worker)
			return nil
		})
	})
	return workers, err
}

func (s *BoltStore) ListWorkersByPool(pool string) ([]*types.Worker, error) {
	all, err := s.ListWorkers()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Worker
	for _, w := range all {
		if w.PoolName == pool {
			filtered = append(filtered, w)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateWorker(worker *types.Worker) error {
	return s.CreateWorker(worker)
}

func (s *BoltStore) DeleteWorker(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).Delete([]byte(id))
	})
}

// --- Resource pools ---

func (s *BoltStore) CreatePool(pool *types.ResourcePool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(pool)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPools).Put([]byte(pool.Name), data)
	})
}

func (s *BoltStore) GetPool(name string) (*types.ResourcePool, error) {
	var pool types.ResourcePool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPools).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("pool not found: %s", name)
		}
		return json.Unmarshal(data, &pool)
	})
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *BoltStore) ListPools() ([]*types.ResourcePool, error) {
	var pools []*types.ResourcePool
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).ForEach(func(k, v []byte) error {
			var pool types.ResourcePool
			if err := json.Unmarshal(v, &pool); err != nil {
				return err
			}
			pools = append(pools, &pool)
			return nil
		})
	})
	return pools, err
}

func (s *BoltStore) UpdatePool(pool *types.ResourcePool) error {
	return s.CreatePool(pool)
}

func (s *BoltStore) DeletePool(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).Delete([]byte(name))
	})
}

// --- Events ---
//
// Events are appended under a composite key "<jobID>/<eventID>" so that
// ListEventsByJob can range-scan a single job's log via bucket prefix
// iteration instead of a full-bucket scan. Event IDs are random, so key
// order is not append order; ListEventsByJob sorts by Timestamp.

func (s *BoltStore) AppendEvent(event *types.ExecutionEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		key := []byte(event.JobID + "/" + event.ID)
		return tx.Bucket(bucketEvents).Put(key, data)
	})
}

func (s *BoltStore) ListEventsByJob(jobID string) ([]*types.ExecutionEvent, error) {
	var events []*types.ExecutionEvent
	prefix := []byte(jobID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var event types.ExecutionEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, &event)
		}
		return nil
	})
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// --- Artifacts ---

func (s *BoltStore) CreateArtifact(artifact *types.Artifact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(artifact)
		if err != nil {
			return err
		}
		key := []byte(artifact.JobID + "/" + artifact.Name)
		return tx.Bucket(bucketArtifacts).Put(key, data)
	})
}

func (s *BoltStore) ListArtifactsByJob(jobID string) ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	prefix := []byte(jobID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketArtifacts).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var artifact types.Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
		}
		return nil
	})
	return artifacts, err
}

// --- Secrets ---

func (s *BoltStore) CreateSecret(secret *types.Secret) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(secret)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSecrets).Put([]byte(secret.Name), data)
	})
}

func (s *BoltStore) GetSecret(name string) (*types.Secret, error) {
	var secret types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSecrets).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("secret %s not found", name)
		}
		return json.Unmarshal(data, &secret)
	})
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *BoltStore) ListSecrets() ([]*types.Secret, error) {
	var secrets []*types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(k, v []byte) error {
			var secret types.Secret
			if err := json.Unmarshal(v, &secret); err != nil {
				return err
			}
			secrets = append(secrets, &secret)
			return nil
		})
	})
	return secrets, err
}

func (s *BoltStore) DeleteSecret(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Delete([]byte(name))
	})
}

// --- Certificate Authority ---

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte("ca"), data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get([]byte("ca"))
		if v == nil {
			return fmt.Errorf("CA not found")
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	return data, err
}
