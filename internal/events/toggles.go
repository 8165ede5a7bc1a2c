package events

import "sync"

// Toggles enables or disables each notification type.
type Toggles struct {
	Launched        bool `json:"launched" yaml:"launched" toml:"launched"`
	WaitingForInput bool `json:"waiting_for_input" yaml:"waiting_for_input" toml:"waiting_for_input"`
	Errors          bool `json:"errors" yaml:"errors" toml:"errors"`
	Completion      bool `json:"completion" yaml:"completion" toml:"completion"`
}

// AllToggles enables every notification type.
func AllToggles() Toggles {
	return Toggles{Launched: true, WaitingForInput: true, Errors: true, Completion: true}
}

// Allows reports whether notifications of typ are enabled.
func (t Toggles) Allows(typ NotificationType) bool {
	switch typ {
	case TypeLaunched:
		return t.Launched
	case TypeAttention:
		return t.WaitingForInput
	case TypeError:
		return t.Errors
	case TypeCompleted:
		return t.Completion
	}
	return false
}

// Gate holds the live toggles shared by every notification producer.
// Store swaps them at runtime on config reload.
type Gate struct {
	mu sync.RWMutex
	t  Toggles
}

func NewGate(t Toggles) *Gate {
	return &Gate{t: t}
}

func (g *Gate) Load() Toggles {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.t
}

func (g *Gate) Store(t Toggles) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t = t
}

// Allows reports whether typ is currently enabled. A nil Gate allows all.
func (g *Gate) Allows(typ NotificationType) bool {
	if g == nil {
		return true
	}
	return g.Load().Allows(typ)
}
