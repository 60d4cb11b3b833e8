package overseer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/pkg/types"
)

func TestGate_OpensOnce(t *testing.T) {
	g := NewGate()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Open("racer") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, "racer", g.Reason())
	select {
	case <-g.Done():
	default:
		t.Fatal("gate not open")
	}
}

func TestWakeRegistry_Timeout(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	r := NewWakeRegistry(bus)

	var reasons []string
	gate, err := r.Install([]types.WakeCondition{{Type: types.WakeTimeout, TimeoutMs: 10}}, func(reason string) {
		reasons = append(reasons, reason)
	})
	require.NoError(t, err)
	assert.True(t, r.Pending())

	select {
	case <-gate.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}
	assert.Equal(t, "timeout", gate.Reason())
	assert.Equal(t, []string{"timeout"}, reasons)
	assert.False(t, r.Pending())
	assert.Empty(t, r.Conditions())
}

func TestWakeRegistry_SessionStatus(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	r := NewWakeRegistry(bus)

	gate, err := r.Install([]types.WakeCondition{
		{Type: types.WakeSessionComplete, SessionID: "a"},
		{Type: types.WakeSessionError, SessionID: "b"},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, r.Conditions(), 2)

	// Wrong session, wrong status.
	bus.PublishSync(event.Event{Type: event.SessionStatus, Data: event.SessionStatusData{SessionID: "b", Status: types.StatusIdle}})
	bus.PublishSync(event.Event{Type: event.SessionStatus, Data: event.SessionStatusData{SessionID: "c", Status: types.StatusError}})
	assert.True(t, r.Pending())

	bus.PublishSync(event.Event{Type: event.SessionStatus, Data: event.SessionStatusData{SessionID: "b", Status: types.StatusError}})
	<-gate.Done()
	assert.Equal(t, "session_error:b", gate.Reason())
}

func TestWakeRegistry_InputNeeded(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	r := NewWakeRegistry(bus)

	gate, err := r.Install([]types.WakeCondition{{Type: types.WakeSessionInputNeeded, SessionID: "a"}}, nil)
	require.NoError(t, err)

	bus.PublishSync(event.Event{Type: event.SessionStatus, Data: event.SessionStatusData{SessionID: "a", Status: types.StatusWaitingInput}})
	<-gate.Done()
	assert.Equal(t, "session_input_needed:a", gate.Reason())
}

func TestWakeRegistry_AlreadySleeping(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	r := NewWakeRegistry(bus)

	_, err := r.Install([]types.WakeCondition{{Type: types.WakeTimeout, TimeoutMs: 60000}}, nil)
	require.NoError(t, err)
	_, err = r.Install([]types.WakeCondition{{Type: types.WakeTimeout, TimeoutMs: 10}}, nil)
	assert.ErrorIs(t, err, ErrAlreadySleeping)

	assert.True(t, r.Resolve("manual"))
	assert.False(t, r.Resolve("manual"))
}

func TestWakeRegistry_ResolveWithoutSleep(t *testing.T) {
	r := NewWakeRegistry(event.NewBus())
	assert.False(t, r.Resolve("manual"))
}

func TestWakeRegistry_TriggersRaceOnce(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	for i := 0; i < 50; i++ {
		r := NewWakeRegistry(bus)
		var calls int32
		gate, err := r.Install([]types.WakeCondition{
			{Type: types.WakeTimeout, TimeoutMs: 1},
			{Type: types.WakeSessionComplete, SessionID: "a"},
		}, func(string) { atomic.AddInt32(&calls, 1) })
		require.NoError(t, err)

		go bus.PublishSync(event.Event{Type: event.SessionStatus, Data: event.SessionStatusData{SessionID: "a", Status: types.StatusIdle}})
		go r.Resolve("manual")
		<-gate.Done()
		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	}
}
