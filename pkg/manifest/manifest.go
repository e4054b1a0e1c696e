package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

// idLength is how many hex characters of the content hash form the
// manifest ID
const idLength = 12

// Store manages content-addressed execution tokens under
// outgoing/coordinator/. Identity is derived from canonical content, so
// any two processes proposing the same action share one manifest file.
type Store struct {
	mu          sync.Mutex
	dir         string
	claimWindow time.Duration
	claims      map[string]time.Time
	now         func() time.Time
}

// NewStore creates a manifest store writing into dir. claimWindow is the
// exclusivity period after a claim.
func NewStore(dir string, claimWindow time.Duration) *Store {
	return &Store{
		dir:         dir,
		claimWindow: claimWindow,
		claims:      map[string]time.Time{},
		now:         time.Now,
	}
}

// ComputeID derives the manifest ID for a content map: SHA-256 over the
// canonical JSON form (sorted keys), first 12 hex characters.
func ComputeID(content map[string]interface{}) (string, error) {
	// encoding/json writes map keys in sorted order, which is exactly
	// the canonical form the ID depends on
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize manifest content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:idLength], nil
}

// Create writes a manifest with status created and returns its ID. When
// a manifest file for the same content already exists it is left
// untouched, so claim state survives re-proposal of the same action.
func (s *Store) Create(intentID string, content map[string]interface{}) (string, error) {
	id, err := ComputeID(content)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	m := types.Manifest{
		ManifestID: id,
		IntentID:   intentID,
		CreatedAt:  s.now(),
		Content:    content,
		Status:     types.ManifestCreated,
	}
	if err := s.write(m); err != nil {
		return "", err
	}
	return id, nil
}

// Claim attempts to take exclusive ownership of a manifest. It returns
// false when the manifest does not exist, when this process claimed it
// within the claim window, when another process holds a fresh on-disk
// claim, or when the manifest is already complete. Failed and
// stale-claimed manifests are re-claimable.
func (s *Store) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if claimedAt, ok := s.claims[id]; ok && now.Sub(claimedAt) < s.claimWindow {
		return false
	}

	m, err := s.read(id)
	if err != nil {
		return false
	}

	switch m.Status {
	case types.ManifestComplete:
		return false
	case types.ManifestClaimed:
		if m.ClaimedAt != nil && now.Sub(*m.ClaimedAt) < s.claimWindow {
			return false
		}
	}

	m.Status = types.ManifestClaimed
	m.ClaimedAt = &now
	if err := s.write(m); err != nil {
		logger := log.WithManifestID(id)
		logger.Error().Err(err).Msg("failed to persist claim")
		return false
	}

	s.claims[id] = now
	return true
}

// MarkComplete records a successful execution result
func (s *Store) MarkComplete(id string, result *types.DomainResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read(id)
	if err != nil {
		return err
	}

	now := s.now()
	m.Status = types.ManifestComplete
	m.CompletedAt = &now
	m.Result = result
	return s.write(m)
}

// MarkFailed records a failed execution. The in-memory claim stays in
// place, so this process cannot immediately retry; other processes may
// re-claim a failed manifest at once.
func (s *Store) MarkFailed(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read(id)
	if err != nil {
		return err
	}

	now := s.now()
	m.Status = types.ManifestFailed
	m.FailedAt = &now
	m.Error = errMsg
	return s.write(m)
}

// Get returns the manifest with the given ID
func (s *Store) Get(id string) (types.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (types.Manifest, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return types.Manifest{}, fmt.Errorf("manifest not found: %s", id)
	}
	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return types.Manifest{}, fmt.Errorf("manifest corrupt: %s: %w", id, err)
	}
	return m, nil
}

// write persists a manifest via temp-then-rename so concurrent readers
// never see a torn file
func (s *Store) write(m types.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest %s: %w", m.ManifestID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write manifest %s: %w", m.ManifestID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close manifest %s: %w", m.ManifestID, err)
	}
	if err := os.Rename(tmpName, s.path(m.ManifestID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest %s: %w", m.ManifestID, err)
	}
	return nil
}
