package registry

import "sync"

// States is an in-memory entity state registry. Selector entities such as
// a satellite's pipeline and VAD sensitivity selects live here.
type States struct {
	mu     sync.RWMutex
	states map[string]string
}

// NewStates creates an empty state registry
func NewStates() *States {
	return &States{states: make(map[string]string)}
}

// Get returns the state of an entity, ok=false when the entity does not
// exist
func (s *States) Get(entityID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[entityID]
	return state, ok
}

// Set records the state of an entity, creating it if necessary
func (s *States) Set(entityID string, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[entityID] = state
}

// Delete removes an entity from the registry
func (s *States) Delete(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, entityID)
}
