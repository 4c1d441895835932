// Package session keeps uploaded tables in memory between requests.
//
// Each session owns one loaded table and the profile it was loaded under.
// Sessions expire after a period without access and the store evicts the
// oldest session when it is full. Sessions share nothing with each other.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"csvpulse/internal/dataprocessing"
	"csvpulse/internal/table"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is one user's loaded table. Compute serializes work on a session
// so that a computation never observes a table being replaced.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	fileName  string
	format    dataprocessing.Format
	table     *table.Table
	profile   dataprocessing.Profile
	updatedAt time.Time

	expires atomic.Int64 // unix nanoseconds
}

// Snapshot is a consistent copy of a session's state
type Snapshot struct {
	ID        string
	FileName  string
	Format    dataprocessing.Format
	Table     *table.Table
	Profile   dataprocessing.Profile
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Compute runs fn with the session's table while holding the session lock.
func (s *Session) Compute(fn func(Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.snapshot())
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:        s.ID,
		FileName:  s.fileName,
		Format:    s.format,
		Table:     s.table,
		Profile:   s.profile,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
		ExpiresAt: s.expiresAt(),
	}
}

// Upload is a freshly loaded table ready to be stored
type Upload struct {
	FileName string
	Format   dataprocessing.Format
	Table    *table.Table
	Profile  dataprocessing.Profile
}

// Stats reports store counters
type Stats struct {
	Active   int     `json:"active"`
	MaxSize  int     `json:"max_size"`
	Created  int64   `json:"created"`
	Expired  int64   `json:"expired"`
	Evicted  int64   `json:"evicted"`
	TTLSecs  float64 `json:"ttl_seconds"`
	HitCount int64   `json:"hit_count"`
	Misses   int64   `json:"miss_count"`
}

// Store is an in-memory, TTL-bounded session registry keyed by UUID.
type Store struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	ttl      time.Duration
	maxSize  int
	now      func() time.Time
	onChange func(active int)

	created, expired, evicted int64
	hits, misses              int64
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithObserver registers a callback invoked with the number of live
// sessions after every change.
func WithObserver(fn func(active int)) Option {
	return func(s *Store) { s.onChange = fn }
}

// NewStore creates a store. A maxSize of zero or less means unbounded.
func NewStore(ttl time.Duration, maxSize int, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new session, evicting the oldest one when the store is full.
func (s *Store) Create(u Upload) *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		fileName:  u.FileName,
		format:    u.Format,
		table:     u.Table,
		profile:   u.Profile,
		updatedAt: now,
	}
	sess.touch(now.Add(s.ttl))

	s.mutex.Lock()
	if s.maxSize > 0 && len(s.sessions) >= s.maxSize {
		s.evictOldest()
	}
	s.sessions[sess.ID] = sess
	s.created++
	active := len(s.sessions)
	s.mutex.Unlock()

	s.notify(active)
	return sess
}

// Get returns a live session and extends its expiry.
func (s *Store) Get(id string) (*Session, error) {
	now := s.now()

	s.mutex.Lock()
	sess, ok := s.sessions[id]
	if ok && now.After(sess.expiresAt()) {
		delete(s.sessions, id)
		s.expired++
		ok = false
	}
	if !ok {
		s.misses++
		active := len(s.sessions)
		s.mutex.Unlock()
		s.notify(active)
		return nil, ErrNotFound
	}
	s.hits++
	s.mutex.Unlock()

	sess.touch(now.Add(s.ttl))
	return sess, nil
}

// Replace swaps the table of a session. It waits for any running
// computation on the session to finish.
func (s *Store) Replace(id string, u Upload) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess.mu.Lock()
	sess.fileName = u.FileName
	sess.format = u.Format
	sess.table = u.Table
	sess.profile = u.Profile
	sess.updatedAt = now
	sess.mu.Unlock()
	sess.touch(now.Add(s.ttl))
	return sess, nil
}

// Delete removes a session.
func (s *Store) Delete(id string) error {
	s.mutex.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mutex.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.notify(active)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// GetStats returns store statistics
func (s *Store) GetStats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return Stats{
		Active:   len(s.sessions),
		MaxSize:  s.maxSize,
		Created:  s.created,
		Expired:  s.expired,
		Evicted:  s.evicted,
		TTLSecs:  s.ttl.Seconds(),
		HitCount: s.hits,
		Misses:   s.misses,
	}
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mutex.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt()) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.expired += int64(removed)
	active := len(s.sessions)
	s.mutex.Unlock()

	if removed > 0 {
		s.notify(active)
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Store) evictOldest() {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.CreatedAt.Before(oldest.CreatedAt) {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(s.sessions, oldest.ID)
		s.evicted++
	}
}

func (s *Store) notify(active int) {
	if s.onChange != nil {
		s.onChange(active)
	}
}

func (sess *Session) touch(expiry time.Time) {
	sess.expires.Store(expiry.UnixNano())
}

func (sess *Session) expiresAt() time.Time {
	return time.Unix(0, sess.expires.Load())
}
