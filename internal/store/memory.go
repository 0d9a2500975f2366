package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore holds all SES twin state in memory. Emails are kept in append order;
// the only other mutation is Clear.
type MemoryStore struct {
	mu        sync.RWMutex
	emails    []EmailRecord
	lastAt    int64
	observers []func(EmailRecord)

	Clock *Clock
}

// New creates a new MemoryStore with empty state.
func New() *MemoryStore {
	return &MemoryStore{
		emails: make([]EmailRecord, 0),
		Clock:  NewClock(),
	}
}

// NextMessageID returns a unique SES-style message id,
// e.g. "0000018b5c3a2f10-6f1c...-000000".
func (s *MemoryStore) NextMessageID() string {
	return fmt.Sprintf("%016x-%s-000000", s.Clock.Now().UnixMilli(), uuid.NewString())
}

// Observe registers fn to be called with every appended record, after the
// store lock is released.
func (s *MemoryStore) Observe(fn func(EmailRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Append stamps the record with the current time and appends it. The stamp never
// goes below the newest stamp already handed out, even if the clock is reset.
func (s *MemoryStore) Append(rec EmailRecord) EmailRecord {
	rec = rec.normalized()

	s.mu.Lock()
	at := s.Clock.Now().Unix()
	if at < s.lastAt {
		at = s.lastAt
	}
	s.lastAt = at
	rec.At = at
	s.emails = append(s.emails, rec)
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(rec)
	}
	return rec
}

// Clear removes every email.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = make([]EmailRecord, 0)
}

// List returns a copy of all emails in append order.
func (s *MemoryStore) List() []EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EmailRecord, len(s.emails))
	copy(out, s.emails)
	return out
}

// Since returns the emails stamped at or after the given Unix second, in append order.
func (s *MemoryStore) Since(since int64) []EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EmailRecord, 0)
	for _, e := range s.emails {
		if e.At >= since {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of stored emails.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}

// State is the JSON shape of the store, served by GET /store and the admin endpoints.
type State struct {
	Emails []EmailRecord `json:"emails"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return State{Emails: s.List()}
}

// LoadState replaces the full state from a JSON body. Loaded records keep their
// own timestamps; later appends are stamped no earlier than the newest of them.
func (s *MemoryStore) LoadState(data []byte) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	emails := make([]EmailRecord, 0, len(st.Emails))
	var lastAt int64
	for _, e := range st.Emails {
		if e.MessageID == "" {
			return fmt.Errorf("email %d: messageId is required", len(emails))
		}
		if e.At > lastAt {
			lastAt = e.At
		}
		emails = append(emails, e.normalized())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = emails
	if lastAt > s.lastAt {
		s.lastAt = lastAt
	}
	return nil
}

// Reset clears all state and the simulated clock offset.
func (s *MemoryStore) Reset() {
	s.Clear()
	s.Clock.Reset()
}
