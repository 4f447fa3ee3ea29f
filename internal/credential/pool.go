// Package credential implements the process-wide credential pool consumed
// by Discovery: a persisted JSON array of platform session cookies with
// rotation and soft/hard invalidation on 401/403.
//
// Grounded on two teacher patterns merged together: the array-of-records
// JSON-file CRUD store from internal/profile/manager.go (load-all,
// save-all, in-memory map) and the atomic temp-file-then-rename write from
// internal/auth/manager.go (SaveCredentials). The original's explicit
// "not initialized" guard (see original_source/redis_client.py's
// get_redis) is preserved as ErrPoolNotInitialized.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"livepulse/internal/ingesterr"
)

// Record is one persisted credential entry. A non-empty Note marks the
// record as soft-invalidatable: on 401/403 its Cookie is cleared and
// Status set to "expired" instead of the record being deleted outright.
type Record struct {
	Cookie    string    `json:"cookie"`
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Pool is the process-wide credential pool singleton.
type Pool struct {
	path string

	mu      sync.Mutex
	records []Record
	cursor  int
}

// Load reads the pool from path, creating an empty file if one doesn't yet
// exist. An empty pool at launch is a caller-visible condition (§6 "pool
// empty at launch" is a pre-startup failure), not an error from Load
// itself.
func Load(path string) (*Pool, error) {
	p := &Pool{path: path}
	if err := p.reloadLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the current number of live records.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Current returns the credential at the pool's cursor without advancing
// it. Returns ErrPoolExhausted when the pool is empty.
func (p *Pool) Current() (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		return Record{}, ingesterr.ErrPoolExhausted
	}
	p.cursor %= len(p.records)
	return p.records[p.cursor], nil
}

// Rotate advances the cursor to the next credential without deleting or
// modifying anything — used for business-error and decode-failure
// responses, which must not remove the credential from the pool.
func (p *Pool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.records)
}

// Invalidate handles a 401/403 against the credential at cookie: soft
// invalidation (clear cookie, mark expired) if the record carries a note,
// otherwise a hard delete. Either way the in-memory pool is reloaded from
// disk afterward and the cursor rotates to the next credential, matching
// the reference implementation's delete → reload → rotate sequence.
func (p *Pool) Invalidate(cookie string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.records[:0:0]
	for _, r := range p.records {
		if r.Cookie != cookie {
			kept = append(kept, r)
			continue
		}
		if r.Note != "" {
			r.Cookie = ""
			r.Status = "expired"
			r.UpdatedAt = time.Now()
			kept = append(kept, r)
		}
		// else: hard delete, omit from kept.
	}
	p.records = kept

	if err := p.saveLocked(); err != nil {
		return err
	}
	if err := p.reloadLocked(); err != nil {
		return err
	}
	if len(p.records) > 0 {
		p.cursor %= len(p.records)
	}
	return nil
}

func (p *Pool) reloadLocked() error {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		p.records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential: read pool file: %w", err)
	}
	if len(data) == 0 {
		p.records = nil
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("credential: unmarshal pool file: %w", err)
	}
	p.records = records
	return nil
}

// Reload re-reads the pool from disk, discarding in-memory state.
func (p *Pool) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloadLocked()
}

func (p *Pool) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("credential: create pool dir: %w", err)
	}
	data, err := json.MarshalIndent(p.records, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: marshal pool: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credential: write pool file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("credential: rename pool file: %w", err)
	}
	return nil
}
