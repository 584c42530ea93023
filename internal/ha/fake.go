package ha

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Client for tests. It records every service call in
// order so tests can assert the exact actuator sequence, and can inject
// failures per entity.
type Fake struct {
	mu sync.Mutex

	states    map[string]EntityState
	calls     []string // "on:<entity>" / "off:<entity>"
	reachable bool

	// failOn maps "on:<entity>" or "off:<entity>" to an injected error.
	failOn map[string]error
}

// NewFake creates a reachable fake with no entities.
func NewFake() *Fake {
	return &Fake{
		states:    make(map[string]EntityState),
		failOn:    make(map[string]error),
		reachable: true,
	}
}

// SetState sets or replaces an entity's reported state.
func (f *Fake) SetState(entityID, state, lastChanged string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[entityID] = EntityState{EntityID: entityID, State: state, LastChanged: lastChanged}
}

// RemoveState makes an entity unavailable.
func (f *Fake) RemoveState(entityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, entityID)
}

// SetReachable toggles the connectivity probe result.
func (f *Fake) SetReachable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = ok
}

// FailOn injects an error for a specific call, e.g. FailOn("on", "switch.pump", err).
func (f *Fake) FailOn(action, entityID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[action+":"+entityID] = err
}

// Calls returns a copy of the recorded service-call trace.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// ResetCalls clears the recorded trace.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// GetEntityState implements Client.
func (f *Fake) GetEntityState(_ context.Context, entityID string) (*EntityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.reachable {
		return nil, fmt.Errorf("fake: not reachable")
	}
	state, ok := f.states[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, entityID)
	}
	return &state, nil
}

// TurnOn implements Client.
func (f *Fake) TurnOn(_ context.Context, entityID string) error {
	return f.record("on", entityID)
}

// TurnOff implements Client.
func (f *Fake) TurnOff(_ context.Context, entityID string) error {
	return f.record("off", entityID)
}

func (f *Fake) record(action, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := action + ":" + entityID
	f.calls = append(f.calls, key)
	if err, ok := f.failOn[key]; ok {
		return err
	}
	if s, ok := f.states[entityID]; ok {
		if action == "on" {
			s.State = "on"
		} else {
			s.State = "off"
		}
		f.states[entityID] = s
	}
	return nil
}

// IsReachable implements Client.
func (f *Fake) IsReachable(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reachable
}

// ListEntities implements Client.
func (f *Fake) ListEntities(_ context.Context, domain string) ([]EntityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.reachable {
		return nil, fmt.Errorf("fake: not reachable")
	}
	var out []EntityState
	for _, s := range f.states {
		if domain == "" || len(s.EntityID) > len(domain) && s.EntityID[:len(domain)+1] == domain+"." {
			out = append(out, s)
		}
	}
	return out, nil
}
