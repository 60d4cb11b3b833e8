package history

import (
	"context"
	"sync"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/pkg/types"
)

const recorderQueue = 256

// Recorder appends live session messages from the bus to the store.
type Recorder struct {
	store  *Store
	queue  chan types.SessionMessage
	unsub  func()
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// RecordSessions subscribes to session.message events. Messages are written on
// a single worker goroutine; when the queue is full the message is dropped and
// logged rather than stalling the publishing session.
func RecordSessions(bus *event.Bus, store *Store) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan types.SessionMessage, recorderQueue),
		done:  make(chan struct{}),
	}
	r.unsub = bus.Subscribe(event.SessionMessage, r.onMessage)
	go r.run()
	return r
}

func (r *Recorder) onMessage(e event.Event) {
	data, ok := e.Data.(event.SessionMessageData)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- data.Message:
	default:
		r.store.log.Warn().Str("session", data.Message.SessionID).Msg("history queue full, message dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for msg := range r.queue {
		if err := r.store.Append(context.Background(), msg); err != nil {
			r.store.log.Warn().Err(err).Str("session", msg.SessionID).Msg("failed to record session message")
		}
	}
}

// Stop unsubscribes and waits for queued messages to be written.
func (r *Recorder) Stop() {
	r.unsub()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}
