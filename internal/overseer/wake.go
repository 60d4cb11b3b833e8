package overseer

import (
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/pkg/types"
)

// Gate is a one-shot release. The first Open wins; later calls are no-ops.
type Gate struct {
	once   sync.Once
	ch     chan struct{}
	reason string
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases the gate and reports whether this call did so.
func (g *Gate) Open(reason string) bool {
	opened := false
	g.once.Do(func() {
		g.reason = reason
		close(g.ch)
		opened = true
	})
	return opened
}

// Done is closed once the gate opens.
func (g *Gate) Done() <-chan struct{} {
	return g.ch
}

// Reason returns the reason passed to the winning Open. Only valid after Done.
func (g *Gate) Reason() string {
	<-g.ch
	return g.reason
}

// targetStatus maps a session wake condition to the status that satisfies it.
var targetStatus = map[types.WakeConditionType]types.SessionStatus{
	types.WakeSessionComplete:    types.StatusIdle,
	types.WakeSessionError:       types.StatusError,
	types.WakeSessionInputNeeded: types.StatusWaitingInput,
}

// WakeRegistry holds the condition set of the one pending sleep. It listens
// to session status events only while a sleep is pending.
type WakeRegistry struct {
	bus *event.Bus

	mu         sync.Mutex
	conditions []types.WakeCondition
	gate       *Gate
	timer      *time.Timer
	unsub      func()
	onResolve  func(reason string)
}

// NewWakeRegistry creates a registry subscribed to bus on demand.
func NewWakeRegistry(bus *event.Bus) *WakeRegistry {
	return &WakeRegistry{bus: bus}
}

// Install registers conditions for a new sleep. onResolve runs exactly once,
// on the goroutine of the winning trigger, before the returned gate opens.
func (r *WakeRegistry) Install(conditions []types.WakeCondition, onResolve func(reason string)) (*Gate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		return nil, ErrAlreadySleeping
	}

	gate := NewGate()
	r.gate = gate
	r.conditions = append([]types.WakeCondition(nil), conditions...)
	r.onResolve = onResolve

	watches := false
	for _, c := range conditions {
		switch c.Type {
		case types.WakeTimeout:
			if r.timer == nil && c.TimeoutMs > 0 {
				d := time.Duration(c.TimeoutMs) * time.Millisecond
				r.timer = time.AfterFunc(d, func() { r.resolve(gate, "timeout") })
			}
		default:
			watches = true
		}
	}
	if watches {
		r.unsub = r.bus.Subscribe(event.SessionStatus, func(e event.Event) {
			data, ok := e.Data.(event.SessionStatusData)
			if !ok {
				return
			}
			if reason, ok := r.match(gate, data); ok {
				r.resolve(gate, reason)
			}
		})
	}
	return gate, nil
}

func (r *WakeRegistry) match(gate *Gate, data event.SessionStatusData) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != gate {
		return "", false
	}
	for _, c := range r.conditions {
		if c.SessionID == data.SessionID && targetStatus[c.Type] == data.Status {
			return fmt.Sprintf("%s:%s", c.Type, c.SessionID), true
		}
	}
	return "", false
}

// Resolve ends the pending sleep, if any, and reports whether it did.
func (r *WakeRegistry) Resolve(reason string) bool {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate == nil {
		return false
	}
	return r.resolve(gate, reason)
}

// resolve is the single claim point: only the caller that finds gate still
// installed tears the sleep down.
func (r *WakeRegistry) resolve(gate *Gate, reason string) bool {
	r.mu.Lock()
	if r.gate != gate {
		r.mu.Unlock()
		return false
	}
	r.gate = nil
	r.conditions = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	unsub, onResolve := r.unsub, r.onResolve
	r.unsub, r.onResolve = nil, nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if onResolve != nil {
		onResolve(reason)
	}
	gate.Open(reason)
	return true
}

// Conditions returns a copy of the pending condition set.
func (r *WakeRegistry) Conditions() []types.WakeCondition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.WakeCondition(nil), r.conditions...)
}

// Pending reports whether a sleep is installed.
func (r *WakeRegistry) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate != nil
}
