package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// InMemoryDeliveryStore implements DeliveryStore with a map.
// Marks are not shared across processes, so it suits single-instance
// deployments and tests.
type InMemoryDeliveryStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryDeliveryStore
type InMemoryOption func(*InMemoryDeliveryStore)

// WithClock sets the time source used for expiry
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryDeliveryStore) {
		s.now = now
	}
}

// NewInMemoryDeliveryStore creates the store and starts the expiry sweeper
func NewInMemoryDeliveryStore(opts ...InMemoryOption) *InMemoryDeliveryStore {
	s := &InMemoryDeliveryStore{
		entries:  make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.cleanupLoop(5 * time.Minute)
	return s
}

// Claim records deliveryID until ttl elapses.
// Returns false if an unexpired mark already exists.
func (s *InMemoryDeliveryStore) Claim(_ context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[deliveryID]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[deliveryID] = now.Add(ttl)
	return true, nil
}

// Confirm sets the mark for deliveryID to expire ttl from now
func (s *InMemoryDeliveryStore) Confirm(_ context.Context, deliveryID string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[deliveryID] = s.now().Add(ttl)
	s.mu.Unlock()
	return nil
}

// Forget drops the mark for deliveryID
func (s *InMemoryDeliveryStore) Forget(_ context.Context, deliveryID string) error {
	s.mu.Lock()
	delete(s.entries, deliveryID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDeliveryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDeliveryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of stored marks, expired ones included until swept
func (s *InMemoryDeliveryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure InMemoryDeliveryStore implements DeliveryStore
var _ integration.DeliveryStore = (*InMemoryDeliveryStore)(nil)
