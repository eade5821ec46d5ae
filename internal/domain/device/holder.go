package device

import "sync"

// Holder owns the live device State and serializes every access to it.
type Holder struct {
	// mu is the single lock guarding state and the physical writes made under it.
	mu sync.Mutex
	// state is the live record.
	state State
}

// NewHolder creates a holder with idle actuators and the provided settings.
func NewHolder(settings Settings) *Holder {
	return &Holder{
		state: State{
			Settings: settings,
		},
	}
}

// Update runs fn with exclusive access to the live state.
// fn must not block on anything but short actuator writes.
func (h *Holder) Update(fn func(state *State)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(&h.state)
}

// Snapshot returns a consistent copy of the live state.
func (h *Holder) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}
