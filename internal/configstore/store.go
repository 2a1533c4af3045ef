// internal/configstore/store.go
package configstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"go.uber.org/zap"
)

// DefaultHistoryRetention caps the change-history log
const DefaultHistoryRetention = 100

// Change types recorded in history entries
const (
	ChangeTTLUpdate      = "ttl_update"
	ChangePrefetchUpdate = "prefetch_update"
)

const (
	ttlFile      = "ttl_config.json"
	prefetchFile = "prefetch_config.json"
	historyFile  = "config_history.json"
)

// TTLEntry is the active TTL recommendation for one path
type TTLEntry struct {
	TTL       int       `json:"ttl"`
	TTLHuman  string    `json:"ttl_human"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrefetchEntry is the active prefetch rule for one trigger path
type PrefetchEntry struct {
	PrefetchFiles []string  `json:"prefetch_files"`
	Confidence    float64   `json:"confidence"`
	Reason        string    `json:"reason"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HistoryEntry records one configuration change and the recommendation
// batch that caused it
type HistoryEntry struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Changes   int             `json:"changes"`
	Data      json.RawMessage `json:"data"`
}

// Store holds the versioned TTL and prefetch maps plus the append-only
// change history. Every apply persists the updated map and history tail
// before the in-memory state is considered committed; readers observe
// either the pre- or post-update state, never a partial one.
type Store struct {
	mu        sync.RWMutex
	dir       string
	retention int
	logger    *zap.Logger

	ttl      map[string]TTLEntry
	prefetch map[string]PrefetchEntry
	history  []HistoryEntry
}

// Open loads the store from dir, creating it if needed. Missing files
// mean an empty starting state, not an error.
func Open(dir string, retention int, logger *zap.Logger) (*Store, error) {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("configstore: creating data dir: %w", err)
	}

	s := &Store{
		dir:       dir,
		retention: retention,
		logger:    logger,
		ttl:       make(map[string]TTLEntry),
		prefetch:  make(map[string]PrefetchEntry),
	}

	if err := loadJSON(filepath.Join(dir, ttlFile), &s.ttl); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, prefetchFile), &s.prefetch); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, historyFile), &s.history); err != nil {
		return nil, err
	}

	logger.Info("configuration store opened",
		zap.String("dir", dir),
		zap.Int("ttl_rules", len(s.ttl)),
		zap.Int("prefetch_rules", len(s.prefetch)),
		zap.Int("history_entries", len(s.history)))
	return s, nil
}

// ApplyTTL replaces the TTL entries for the given recommendations,
// appends one history record, and persists both before returning
func (s *Store) ApplyTTL(recs []optimizer.TTLRecommendation) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneMap(s.ttl)
	for _, rec := range recs {
		updated[rec.File] = TTLEntry{
			TTL:       rec.RecommendedTTL,
			TTLHuman:  rec.TTLHuman,
			Reason:    rec.Reason,
			UpdatedAt: rec.GeneratedAt,
		}
	}

	history, err := s.appendHistory(ChangeTTLUpdate, len(recs), recs)
	if err != nil {
		return err
	}
	// history lands first: a crash between the two renames can leave an
	// extra history entry on disk, never an unrecorded map change
	if err := s.persist(historyFile, history); err != nil {
		return err
	}
	if err := s.persist(ttlFile, updated); err != nil {
		return err
	}

	s.ttl = updated
	s.history = history
	return nil
}

// ApplyPrefetch replaces the prefetch entries for the given rules,
// appends one history record, and persists both before returning
func (s *Store) ApplyPrefetch(rules []prefetch.Rule) error {
	if len(rules) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneMap(s.prefetch)
	for _, rule := range rules {
		updated[rule.TriggerFile] = PrefetchEntry{
			PrefetchFiles: rule.PrefetchFiles,
			Confidence:    rule.Confidence,
			Reason:        rule.Reason,
			UpdatedAt:     rule.GeneratedAt,
		}
	}

	history, err := s.appendHistory(ChangePrefetchUpdate, len(rules), rules)
	if err != nil {
		return err
	}
	if err := s.persist(historyFile, history); err != nil {
		return err
	}
	if err := s.persist(prefetchFile, updated); err != nil {
		return err
	}

	s.prefetch = updated
	s.history = history
	return nil
}

// TTLConfig returns a copy of the active TTL map
func (s *Store) TTLConfig() map[string]TTLEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.ttl)
}

// PrefetchConfig returns a copy of the active prefetch map
func (s *Store) PrefetchConfig() map[string]PrefetchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.prefetch)
}

// History returns the newest change records, oldest first
func (s *Store) History(limit int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// appendHistory builds the new history slice without mutating the
// committed one
func (s *Store) appendHistory(changeType string, changes int, batch any) ([]HistoryEntry, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("configstore: encoding history batch: %w", err)
	}

	history := make([]HistoryEntry, len(s.history), len(s.history)+1)
	copy(history, s.history)
	history = append(history, HistoryEntry{
		Type:      changeType,
		Timestamp: time.Now().UTC(),
		Changes:   changes,
		Data:      data,
	})
	if len(history) > s.retention {
		history = history[len(history)-s.retention:]
	}
	return history, nil
}

// persist writes v as JSON to a temp file and renames it into place so
// a crash mid-write never leaves a truncated artifact
func (s *Store) persist(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("configstore: encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("configstore: creating temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("configstore: writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("configstore: syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("configstore: closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("configstore: replacing %s: %w", name, err)
	}
	return nil
}

func loadJSON(path string, out any) error {
	data, err := os.ReadFile(path) // #nosec G304 - path is store-owned
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("configstore: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("configstore: parsing %s: %w", path, err)
	}
	return nil
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
