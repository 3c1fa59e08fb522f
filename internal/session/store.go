// SPDX-License-Identifier: MIT

package session

import (
	"hash/fnv"
	"sync"

	"github.com/dlgram/dlgram/internal/metrics"
)

const lockShards = 64

// Store is a concurrency-safe mapping from conversation id to its session.
// Get/Put/Remove are atomic; Serialize provides the per-conversation mutual
// exclusion the orchestrator needs so no two events for the same
// conversation interleave. The backing map is never exposed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	shards   [lockShards]sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for id, if any.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Put stores sess for id, overwriting any prior session for that id.
func (s *Store) Put(id string, sess *Session) {
	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
}

// Remove deletes the session for id, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Serialize runs fn while holding the lock for id's shard. Events for the
// same conversation are strictly ordered; events for different conversations
// only contend on a shard collision.
func (s *Store) Serialize(id string, fn func()) {
	lock := &s.shards[shardFor(id)]
	lock.Lock()
	defer lock.Unlock()
	fn()
}

func shardFor(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % lockShards
}
