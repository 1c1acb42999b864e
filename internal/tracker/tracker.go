// Package tracker keeps the durable set of already-processed source items,
// making repeated scan passes idempotent. The set only grows; marking happens
// strictly after a successful table append, so a crash in between costs at
// most one harmless duplicate attempt on the next pass.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/staffingops/ordersync/internal/mailbox"
)

// Tracker answers "have I ingested this item before".
type Tracker interface {
	// IsNew reports whether none of the item's identity keys has been seen.
	IsNew(ref mailbox.ItemRef) bool

	// MarkProcessed records all identity keys of the item.
	MarkProcessed(ctx context.Context, ref mailbox.ItemRef) error

	// Len returns the number of recorded keys.
	Len() int
}

// Config configures the tracker backend.
type Config struct {
	// Path of the state file. Empty selects the in-memory tracker.
	Path string
	// ForceResync makes IsNew always answer true for one pass while still
	// persisting marks, so the next pass is deduplicated again.
	ForceResync bool
}

// New creates a tracker from configuration.
func New(cfg Config) (Tracker, error) {
	var t Tracker
	if cfg.Path == "" {
		t = NewMemory()
	} else {
		ft, err := newFileTracker(cfg.Path)
		if err != nil {
			return nil, err
		}
		t = ft
	}
	if cfg.ForceResync {
		t = &resyncTracker{Tracker: t}
	}
	return t, nil
}

// state is the on-disk shape of the tracker file.
type state struct {
	UpdatedAt time.Time `json:"updated_at"`
	Processed []string  `json:"processed"`
}

// fileTracker persists the processed set as a JSON file, written atomically
// via temp file + rename after every mark.
type fileTracker struct {
	mu   sync.Mutex
	path string
	seen map[string]bool
}

func newFileTracker(path string) (*fileTracker, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tracker directory %s: %w", dir, err)
		}
	}

	t := &fileTracker{path: path, seen: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read tracker file: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse tracker file: %w", err)
	}
	for _, k := range st.Processed {
		t.seen[k] = true
	}
	return t, nil
}

func (t *fileTracker) IsNew(ref mailbox.ItemRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range ref.Keys() {
		if t.seen[k] {
			return false
		}
	}
	return true
}

func (t *fileTracker) MarkProcessed(ctx context.Context, ref mailbox.ItemRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range ref.Keys() {
		t.seen[k] = true
	}
	return t.save()
}

func (t *fileTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// save writes the state file atomically. Caller holds the lock.
func (t *fileTracker) save() error {
	keys := make([]string, 0, len(t.seen))
	for k := range t.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data, err := json.MarshalIndent(state{
		UpdatedAt: time.Now().UTC(),
		Processed: keys,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker state: %w", err)
	}

	tempPath := t.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write tracker temp file: %w", err)
	}
	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename tracker file: %w", err)
	}
	return nil
}

// Memory is an in-process tracker for tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewMemory returns an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

func (t *Memory) IsNew(ref mailbox.ItemRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range ref.Keys() {
		if t.seen[k] {
			return false
		}
	}
	return true
}

func (t *Memory) MarkProcessed(ctx context.Context, ref mailbox.ItemRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range ref.Keys() {
		t.seen[k] = true
	}
	return nil
}

func (t *Memory) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// resyncTracker forces one full re-scan: everything looks new, but marks
// still reach the underlying tracker.
type resyncTracker struct {
	Tracker
}

func (t *resyncTracker) IsNew(ref mailbox.ItemRef) bool { return true }
