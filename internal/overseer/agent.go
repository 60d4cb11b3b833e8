// Package overseer implements the autonomous control loop that drives
// sessions through a tool-calling language model.
package overseer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/tool"
	"github.com/opencode-ai/overseer/pkg/types"
)

const (
	// DefaultMaxTurns bounds the model calls of one Chat.
	DefaultMaxTurns = 10
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
)

const cancelledOutput = `{"error":"cancelled before execution"}`

// ModelResolver turns a model reference into a chat model.
type ModelResolver interface {
	Resolve(ctx context.Context, ref string) (model.ToolCallingChatModel, string, error)
}

// Options configures an Overseer.
type Options struct {
	Bus         *event.Bus
	Sessions    tool.Sessions
	History     tool.HistorySearcher
	Models      ModelResolver
	Model       string
	ProjectRoot string
	MaxTurns    int
	// Retries < 0 disables retrying.
	Retries       int
	RetryInterval time.Duration
	Now           func() time.Time
}

// Overseer is the control loop. At most one loop runs at a time.
type Overseer struct {
	opts  Options
	log   zerolog.Logger
	tools *tool.Registry
	wake  *WakeRegistry

	// emitMu serializes status changes with their publication.
	emitMu sync.Mutex

	mu         sync.Mutex
	status     types.OverseerStatus
	history    []*schema.Message
	transcript []types.OverseerMessage
	modelRef   string
	chatModel  model.ToolCallingChatModel
	running    bool
	run        uint64
	aborted    bool
	cancel     context.CancelFunc
	done       chan struct{}
	sleepGate  *Gate
}

// New creates an idle overseer. The model is resolved on first use.
func New(opts Options) *Overseer {
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = RetryInitialInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	o := &Overseer{
		opts:     opts,
		log:      logging.Component("overseer"),
		wake:     NewWakeRegistry(opts.Bus),
		status:   types.OverseerIdle,
		modelRef: opts.Model,
	}
	o.tools = tool.NewCatalog(tool.Deps{
		Sessions:    opts.Sessions,
		History:     opts.History,
		Sleeper:     o,
		ProjectRoot: opts.ProjectRoot,
	})
	return o
}

// Tools returns the tool catalog the model is given.
func (o *Overseer) Tools() *tool.Registry {
	return o.tools
}

// Chat appends a user turn and runs the loop until the model stops, the turn
// budget is spent, or the loop is aborted. A pending sleep is discarded.
func (o *Overseer) Chat(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.running {
		if o.status != types.OverseerSleeping {
			o.mu.Unlock()
			return ErrBusy
		}
		// Supersede the sleeping loop without replaying its wait.
		o.aborted = true
		cancel, done := o.cancel, o.done
		o.mu.Unlock()

		o.wake.Resolve("chat")
		cancel()
		<-done

		o.mu.Lock()
		if o.running {
			o.mu.Unlock()
			return ErrBusy
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	o.running = true
	o.aborted = false
	o.run++
	run := o.run
	o.cancel = cancel
	done := make(chan struct{})
	o.done = done
	o.history = append(o.history, schema.UserMessage(text))
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
		close(done)
	}()

	o.addMessage(types.OverseerMessage{Role: types.RoleUser, Content: text})
	return o.loop(ctx, run)
}

func (o *Overseer) loop(ctx context.Context, run uint64) error {
	chatModel, err := o.model(ctx)
	if err != nil {
		o.fail(run, err)
		return err
	}

	for turn := 0; turn < o.opts.MaxTurns; turn++ {
		if o.stopped(ctx, run) {
			return nil
		}
		o.setRunStatus(run, types.OverseerThinking)

		msg, err := o.generate(ctx, chatModel)
		if o.stopped(ctx, run) {
			return nil
		}
		if err != nil {
			o.fail(run, err)
			return err
		}

		o.appendHistory(msg)
		if msg.Content != "" {
			o.addMessage(types.OverseerMessage{Role: types.RoleAssistant, Content: msg.Content})
		}

		if len(msg.ToolCalls) == 0 || naturalEnd(msg) {
			o.appendHistory(closeCalls(msg.ToolCalls)...)
			o.setRunStatus(run, types.OverseerIdle)
			return nil
		}

		o.setRunStatus(run, types.OverseerActing)
		o.appendHistory(o.runTools(ctx, run, msg.ToolCalls)...)
	}

	if !o.stopped(ctx, run) {
		o.log.Info().Int("max_turns", o.opts.MaxTurns).Msg("turn budget exhausted")
		o.addMessage(types.OverseerMessage{
			Role:    types.RoleSystem,
			Content: fmt.Sprintf("Reached maximum turns (%d). Send another message to continue.", o.opts.MaxTurns),
		})
		o.setRunStatus(run, types.OverseerIdle)
	}
	return nil
}

// runTools executes calls in order and returns one tool message per call.
func (o *Overseer) runTools(ctx context.Context, run uint64, calls []schema.ToolCall) []*schema.Message {
	results := make([]*schema.Message, 0, len(calls))
	for i, call := range calls {
		if o.stopped(ctx, run) {
			return append(results, closeCalls(calls[i:])...)
		}

		record := &types.ToolCall{
			ID:     call.ID,
			Name:   call.Function.Name,
			Input:  decodeArgs(call.Function.Arguments),
			Status: types.ToolRunning,
		}
		msgID := ulid.Make().String()
		o.addMessage(types.OverseerMessage{ID: msgID, Role: types.RoleTool, Content: call.Function.Name, ToolCall: record})

		out, err := o.tools.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
		done := *record
		done.Status, done.Result = types.ToolCompleted, out
		if err != nil {
			done.Status = types.ToolError
			o.log.Debug().Err(err).Str("tool", call.Function.Name).Msg("tool call failed")
		}
		o.addMessage(types.OverseerMessage{ID: msgID, Role: types.RoleTool, Content: call.Function.Name, ToolCall: &done})
		results = append(results, schema.ToolMessage(out, call.ID, schema.WithToolName(call.Function.Name)))

		if call.Function.Name == tool.Sleep && err == nil {
			o.awaitWake(ctx)
			if i < len(calls)-1 {
				o.setRunStatus(run, types.OverseerActing)
			}
		}
	}
	return results
}

// closeCalls answers calls that will not run so the history stays valid.
func closeCalls(calls []schema.ToolCall) []*schema.Message {
	out := make([]*schema.Message, 0, len(calls))
	for _, call := range calls {
		out = append(out, schema.ToolMessage(cancelledOutput, call.ID, schema.WithToolName(call.Function.Name)))
	}
	return out
}

func naturalEnd(msg *schema.Message) bool {
	if msg.ResponseMeta == nil {
		return false
	}
	switch msg.ResponseMeta.FinishReason {
	case "end_turn", "stop":
		return true
	}
	return false
}

func decodeArgs(raw string) map[string]any {
	args := map[string]any{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return args
}

// newRetryBackoff creates an exponential backoff with jitter for model calls.
func (o *Overseer) newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.opts.RetryInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.opts.Retries)), ctx)
}

func (o *Overseer) generate(ctx context.Context, chatModel model.ToolCallingChatModel) (*schema.Message, error) {
	o.mu.Lock()
	input := make([]*schema.Message, 0, len(o.history)+1)
	input = append(input, schema.SystemMessage(SystemPrompt))
	input = append(input, o.history...)
	o.mu.Unlock()

	var out *schema.Message
	err := backoff.Retry(func() error {
		msg, err := chatModel.Generate(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			o.log.Warn().Err(err).Msg("model call failed")
			return err
		}
		if msg == nil {
			return backoff.Permanent(fmt.Errorf("model returned no message"))
		}
		out = msg
		return nil
	}, o.newRetryBackoff(ctx))
	return out, err
}

// model returns the bound chat model, resolving it on first use.
func (o *Overseer) model(ctx context.Context) (model.ToolCallingChatModel, error) {
	o.mu.Lock()
	cm, ref := o.chatModel, o.modelRef
	o.mu.Unlock()
	if cm != nil {
		return cm, nil
	}

	cm, canonical, err := o.bind(ctx, ref)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.chatModel, o.modelRef = cm, canonical
	o.mu.Unlock()
	return cm, nil
}

func (o *Overseer) bind(ctx context.Context, ref string) (model.ToolCallingChatModel, string, error) {
	if o.opts.Models == nil {
		return nil, "", ErrNoModel
	}
	cm, canonical, err := o.opts.Models.Resolve(ctx, ref)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoModel, err)
	}
	if cm == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrNoModel, canonical)
	}
	bound, err := cm.WithTools(o.tools.ToolInfos())
	if err != nil {
		return nil, "", fmt.Errorf("failed to bind tools: %w", err)
	}
	return bound, canonical, nil
}

// SetModel switches the model used from the next model call on.
func (o *Overseer) SetModel(ctx context.Context, ref string) error {
	cm, canonical, err := o.bind(ctx, ref)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.chatModel, o.modelRef = cm, canonical
	o.mu.Unlock()

	o.log.Info().Str("model", canonical).Msg("overseer model changed")
	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerModel, Data: event.OverseerModelData{Model: canonical}})
	return nil
}

// Model returns the current model reference.
func (o *Overseer) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modelRef
}

// Sleep installs a wake condition set for the running loop. The loop blocks
// on it after the sleep tool returns.
func (o *Overseer) Sleep(conditions []types.WakeCondition) error {
	o.mu.Lock()
	run := o.run
	if !o.running || o.aborted {
		o.mu.Unlock()
		return fmt.Errorf("overseer is not running")
	}
	o.mu.Unlock()

	if !o.setRunStatus(run, types.OverseerSleeping) {
		return context.Canceled
	}
	o.opts.Bus.PublishSync(event.Event{
		Type: event.OverseerSleeping,
		Data: event.OverseerSleepingData{Conditions: conditions},
	})

	gate, err := o.wake.Install(conditions, o.onWake)
	if err != nil {
		o.setRunStatus(run, types.OverseerActing)
		return err
	}
	o.mu.Lock()
	o.sleepGate = gate
	o.mu.Unlock()
	o.log.Info().Interface("conditions", conditions).Msg("overseer sleeping")
	return nil
}

// onWake runs once per sleep, on the goroutine of the winning trigger.
func (o *Overseer) onWake(reason string) {
	o.emitMu.Lock()
	o.mu.Lock()
	changed := o.status == types.OverseerSleeping
	if changed {
		o.status = types.OverseerIdle
	}
	o.mu.Unlock()
	if changed {
		o.publishStatus(types.OverseerIdle)
	}
	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerAwake, Data: event.OverseerAwakeData{Reason: reason}})
	o.emitMu.Unlock()
	o.log.Info().Str("reason", reason).Msg("overseer awake")
}

func (o *Overseer) awaitWake(ctx context.Context) {
	o.mu.Lock()
	gate := o.sleepGate
	o.mu.Unlock()
	if gate == nil {
		return
	}

	select {
	case <-gate.Done():
	case <-ctx.Done():
		o.wake.Resolve("aborted")
	}

	o.mu.Lock()
	if o.sleepGate == gate {
		o.sleepGate = nil
	}
	o.mu.Unlock()
}

// Wake ends a pending sleep. It is a no-op unless the overseer is sleeping.
func (o *Overseer) Wake() {
	if o.Status() != types.OverseerSleeping {
		return
	}
	o.wake.Resolve("manual")
}

// Abort cancels the running loop, including its model call and any sleep.
func (o *Overseer) Abort() {
	o.mu.Lock()
	if !o.running && o.status == types.OverseerIdle {
		o.mu.Unlock()
		return
	}
	o.aborted = true
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wake.Resolve("aborted")

	o.emitMu.Lock()
	o.mu.Lock()
	changed := o.status != types.OverseerIdle
	o.status = types.OverseerIdle
	o.mu.Unlock()
	if changed {
		o.publishStatus(types.OverseerIdle)
	}
	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerAborted})
	o.emitMu.Unlock()

	o.log.Info().Msg("overseer aborted")
}

// ClearHistory drops the conversation. Only allowed while idle.
func (o *Overseer) ClearHistory() error {
	o.mu.Lock()
	if o.running || o.status != types.OverseerIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.history = nil
	o.transcript = nil
	o.mu.Unlock()

	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerCleared})
	return nil
}

// Status returns the loop status.
func (o *Overseer) Status() types.OverseerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// WakeConditions returns the conditions of the pending sleep.
func (o *Overseer) WakeConditions() []types.WakeCondition {
	return o.wake.Conditions()
}

// Messages returns a copy of the transcript.
func (o *Overseer) Messages() []types.OverseerMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]types.OverseerMessage(nil), o.transcript...)
}

// History returns a copy of the model conversation.
func (o *Overseer) History() []*schema.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*schema.Message(nil), o.history...)
}

func (o *Overseer) stopped(ctx context.Context, run uint64) bool {
	if ctx.Err() != nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.aborted || o.run != run
}

// setRunStatus changes status on behalf of loop run, unless that run was
// aborted or superseded. It reports whether the change was applied.
func (o *Overseer) setRunStatus(run uint64, status types.OverseerStatus) bool {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	if o.aborted || o.run != run {
		o.mu.Unlock()
		return false
	}
	changed := o.status != status
	o.status = status
	o.mu.Unlock()

	if changed {
		o.publishStatus(status)
	}
	return true
}

func (o *Overseer) publishStatus(status types.OverseerStatus) {
	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerStatus, Data: event.OverseerStatusData{Status: status}})
}

func (o *Overseer) fail(run uint64, err error) {
	o.log.Error().Err(err).Msg("overseer loop failed")
	o.addMessage(types.OverseerMessage{Role: types.RoleError, Content: err.Error()})
	o.setRunStatus(run, types.OverseerIdle)
}

func (o *Overseer) appendHistory(msgs ...*schema.Message) {
	if len(msgs) == 0 {
		return
	}
	o.mu.Lock()
	o.history = append(o.history, msgs...)
	o.mu.Unlock()
}

// addMessage records msg in the transcript, replacing an entry with the same
// ID, and publishes it.
func (o *Overseer) addMessage(msg types.OverseerMessage) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = o.opts.Now().UnixMilli()
	}

	o.mu.Lock()
	replaced := false
	for i := len(o.transcript) - 1; i >= 0; i-- {
		if o.transcript[i].ID == msg.ID {
			o.transcript[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		o.transcript = append(o.transcript, msg)
	}
	o.mu.Unlock()

	o.opts.Bus.PublishSync(event.Event{Type: event.OverseerMessage, Data: event.OverseerMessageData{Message: msg}})
}
