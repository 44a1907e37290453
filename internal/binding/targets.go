package binding

import (
	"fmt"
	"sync"
)

// targetSet maps channel indices to targets.
type targetSet struct {
	mu      sync.RWMutex
	targets map[int]Target
}

func newTargetSet() *targetSet {
	return &targetSet{targets: make(map[int]Target)}
}

func (s *targetSet) attach(index int, t Target) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.targets[index]; ok && existing != t {
		return fmt.Errorf("%w: channel %d held by %s", ErrChannelOccupied, index, existing.ID())
	}
	s.targets[index] = t
	return nil
}

func (s *targetSet) detach(index int) {
	s.mu.Lock()
	delete(s.targets, index)
	s.mu.Unlock()
}

func (s *targetSet) get(index int) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[index]
	return t, ok
}

func (s *targetSet) has(index int) bool {
	_, ok := s.get(index)
	return ok
}

func (s *targetSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}

func (s *targetSet) snapshot() map[int]Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]Target, len(s.targets))
	for i, t := range s.targets {
		out[i] = t
	}
	return out
}
