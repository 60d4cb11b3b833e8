package overseer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/process/processtest"
	"github.com/opencode-ai/overseer/internal/session"
)

type reply func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// scriptedModel answers Generate calls from a script. Once the script is
// exhausted it answers with a plain "done".
type scriptedModel struct {
	mu       sync.Mutex
	script   []reply
	fallback reply
	inputs   [][]*schema.Message
	tools    []*schema.ToolInfo
	calls    int32
}

func newScriptedModel(script ...reply) *scriptedModel {
	return &scriptedModel{script: script}
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	var next reply
	if len(m.script) > 0 {
		next, m.script = m.script[0], m.script[1:]
	} else {
		next = m.fallback
	}
	m.mu.Unlock()

	if next == nil {
		return schema.AssistantMessage("done", nil), nil
	}
	return next(ctx, input)
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = tools
	m.mu.Unlock()
	return m, nil
}

func (m *scriptedModel) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func (m *scriptedModel) LastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[len(m.inputs)-1]
}

func say(text string) reply {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

func callTool(id, name, args string) reply {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}}), nil
	}
}

func fail(err error) reply {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return nil, err
	}
}

// block waits for ctx and reports entry on started.
func block(started chan<- struct{}) reply {
	return func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type staticResolver struct {
	models map[string]*scriptedModel
}

func (r staticResolver) Resolve(ctx context.Context, ref string) (model.ToolCallingChatModel, string, error) {
	if ref == "" {
		ref = "fake/default"
	}
	m, ok := r.models[ref]
	if !ok {
		return nil, "", errors.New("unknown model " + ref)
	}
	return m, ref, nil
}

// recorder collects events published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func record(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) OfType(t event.EventType) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	bus      *event.Bus
	manager  *session.Manager
	spawner  *processtest.Spawner
	model    *scriptedModel
	overseer *Overseer
	events   *recorder
}

func newFixture(t interface{ Cleanup(func()) }, opts Options, script ...reply) *fixture {
	bus := event.NewBus()
	spawner := processtest.NewSpawner()
	mgr := session.NewManager(session.Options{MaxSessions: 4, ClaudePath: "claude", Spawner: spawner, Bus: bus})
	m := newScriptedModel(script...)

	opts.Bus = bus
	opts.Sessions = mgr
	opts.Models = staticResolver{models: map[string]*scriptedModel{"fake/default": m}}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = time.Millisecond
	}

	f := &fixture{
		bus:      bus,
		manager:  mgr,
		spawner:  spawner,
		model:    m,
		events:   record(bus),
		overseer: New(opts),
	}
	t.Cleanup(func() {
		f.overseer.Abort()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		_ = bus.Close()
	})
	return f
}

func (f *fixture) statuses() []string {
	var out []string
	for _, e := range f.events.OfType(event.OverseerStatus) {
		out = append(out, string(e.Data.(event.OverseerStatusData).Status))
	}
	return out
}
