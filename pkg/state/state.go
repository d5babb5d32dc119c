package state

import (
	"sync"

	sessiontypes "qbreach/pkg/session/types"
)

const subscriberBufferSize = 64

// Store holds the latest published session snapshot and fans it out to
// subscribers. The session is the only writer; all consumers read.
type Store struct {
	lock        sync.RWMutex
	snapshot    sessiontypes.Snapshot
	subscribers []chan sessiontypes.Snapshot
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the latest published snapshot.
func (s *Store) Get() sessiontypes.Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snapshot
}

// Subscribe registers a read-only observer. A slow subscriber misses
// intermediate snapshots rather than blocking the publisher; the latest
// state is always available via Get.
func (s *Store) Subscribe() <-chan sessiontypes.Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	ch := make(chan sessiontypes.Snapshot, subscriberBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Publish stores a snapshot and notifies subscribers.
func (s *Store) Publish(snapshot sessiontypes.Snapshot) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snapshot = snapshot
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
