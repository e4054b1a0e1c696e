package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// bucketArtifacts holds one JSON record per intent ID
	bucketArtifacts = []byte("artifacts")

	// ErrNotFound is returned by Load when no artifact exists for an
	// intent ID. The intent gate branches on it, so it is a sentinel.
	ErrNotFound = errors.New("artifact not found")
)

// Artifact is the clarification record backing the intent gate. External
// tooling writes artifacts; the coordinator only reads them.
type Artifact struct {
	IntentID  string    `json:"intent_id"`
	Summary   string    `json:"summary"`
	Clarified bool      `json:"clarified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is what the intent gate consumes. Load returns ErrNotFound
// (possibly wrapped) when no artifact exists; any other error counts as
// a registry failure.
type Registry interface {
	Load(intentID string) (*Artifact, error)
}

// BoltRegistry implements Registry using BoltDB
type BoltRegistry struct {
	db *bolt.DB
}

// NewBoltRegistry opens (or creates) the artifact database at path
func NewBoltRegistry(path string) (*BoltRegistry, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketArtifacts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketArtifacts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRegistry{db: db}, nil
}

// Close closes the database
func (r *BoltRegistry) Close() error {
	return r.db.Close()
}

// Load retrieves the artifact for an intent ID
func (r *BoltRegistry) Load(intentID string) (*Artifact, error) {
	var artifact Artifact
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(intentID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, intentID)
		}
		return json.Unmarshal(data, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Put stores an artifact (upsert). CreatedAt is preserved on update.
func (r *BoltRegistry) Put(artifact *Artifact) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)

		now := time.Now()
		if existing := b.Get([]byte(artifact.IntentID)); existing != nil {
			var prev Artifact
			if err := json.Unmarshal(existing, &prev); err == nil {
				artifact.CreatedAt = prev.CreatedAt
			}
		}
		if artifact.CreatedAt.IsZero() {
			artifact.CreatedAt = now
		}
		artifact.UpdatedAt = now

		data, err := json.Marshal(artifact)
		if err != nil {
			return err
		}
		return b.Put([]byte(artifact.IntentID), data)
	})
}

// SetClarified marks the artifact for an intent ID as clarified
func (r *BoltRegistry) SetClarified(intentID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(intentID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, intentID)
		}

		var artifact Artifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			return err
		}
		artifact.Clarified = true
		artifact.UpdatedAt = time.Now()

		updated, err := json.Marshal(&artifact)
		if err != nil {
			return err
		}
		return b.Put([]byte(intentID), updated)
	})
}

// List returns all artifacts
func (r *BoltRegistry) List() ([]*Artifact, error) {
	var artifacts []*Artifact
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var artifact Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
			return nil
		})
	})
	return artifacts, err
}

// Delete removes the artifact for an intent ID
func (r *BoltRegistry) Delete(intentID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.Delete([]byte(intentID))
	})
}
