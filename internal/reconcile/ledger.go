// Package reconcile tracks calendar writes whose outcome is unknown and
// later settles them by looking the event up.
package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"hakobite/internal/slot"
)

// Status is the resolution state of a ledger entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusAbsent    Status = "absent"
)

// Entry is one ambiguous calendar write. The key is the event ID the
// booking service chose before calling the calendar.
type Entry struct {
	EventID    string        `json:"event_id"`
	BookingID  string        `json:"booking_id"`
	Reference  string        `json:"reference,omitempty"`
	Summary    string        `json:"summary"`
	Name       string        `json:"name"`
	Phone      string        `json:"phone"`
	Interval   slot.Interval `json:"interval"`
	Error      string        `json:"error"`
	FailedAt   time.Time     `json:"failed_at"`
	Status     Status        `json:"status"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

// Ledger is a JSON file of ambiguous writes, keyed by event ID.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// OpenLedger loads the ledger at path. A missing file starts an empty ledger.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return l, nil
}

// Record stores e as pending and persists the ledger.
func (l *Ledger) Record(e Entry) error {
	if e.EventID == "" {
		return fmt.Errorf("ledger entry has no event id")
	}
	e.Status = StatusPending
	e.ResolvedAt = nil

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.EventID] = e
	return l.persist()
}

// Resolve marks the entry for eventID with status at the given time.
func (l *Ledger) Resolve(eventID string, status Status, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[eventID]
	if !ok {
		return fmt.Errorf("no ledger entry for event %s", eventID)
	}
	e.Status = status
	e.ResolvedAt = &at
	l.entries[eventID] = e
	return l.persist()
}

// Pending returns unresolved entries, oldest first.
func (l *Ledger) Pending() []Entry {
	return l.filter(func(e Entry) bool { return e.Status == StatusPending })
}

// Entries returns every entry, oldest first.
func (l *Ledger) Entries() []Entry {
	return l.filter(func(Entry) bool { return true })
}

func (l *Ledger) filter(keep func(Entry) bool) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FailedAt.Equal(out[j].FailedAt) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].FailedAt.Before(out[j].FailedAt)
	})
	return out
}

// persist writes to a temp file and renames it over the ledger. Callers hold mu.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".reconcile-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
