package overseer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/tool"
	"github.com/opencode-ai/overseer/pkg/types"
)

func TestChat_PlainReply(t *testing.T) {
	f := newFixture(t, Options{}, say("All sessions are quiet."))

	require.NoError(t, f.overseer.Chat(context.Background(), "status?"))

	assert.Equal(t, types.OverseerIdle, f.overseer.Status())
	assert.Equal(t, []string{"thinking", "idle"}, f.statuses())

	msgs := f.overseer.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, "status?", msgs[0].Content)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "All sessions are quiet.", msgs[1].Content)

	input := f.model.LastInput()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, SystemPrompt, input[0].Content)
	assert.Equal(t, schema.User, input[1].Role)
}

func TestChat_BindsCatalog(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.overseer.Chat(context.Background(), "hi"))

	var names []string
	for _, info := range f.model.tools {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{
		tool.ListSessions, tool.GetSessionBuffer, tool.SendToSession, tool.SpawnSession,
		tool.KillSession, tool.SetPermissionMode, tool.SearchHistory, tool.Sleep,
	}, names)
}

func TestChat_ToolCallRoundTrip(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("call-1", tool.ListSessions, `{}`),
		say("There are no sessions."),
	)

	require.NoError(t, f.overseer.Chat(context.Background(), "what is running?"))
	assert.Equal(t, 2, f.model.Calls())
	assert.Equal(t, []string{"thinking", "acting", "thinking", "idle"}, f.statuses())

	history := f.overseer.History()
	require.Len(t, history, 4)
	assert.Equal(t, schema.Assistant, history[1].Role)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, schema.Tool, history[2].Role)
	assert.Equal(t, "call-1", history[2].ToolCallID)
	assert.JSONEq(t, `[]`, history[2].Content)

	var tools []types.OverseerMessage
	for _, m := range f.overseer.Messages() {
		if m.Role == types.RoleTool {
			tools = append(tools, m)
		}
	}
	require.Len(t, tools, 1, "running and completed share one transcript entry")
	require.NotNil(t, tools[0].ToolCall)
	assert.Equal(t, types.ToolCompleted, tools[0].ToolCall.Status)
	assert.Equal(t, tool.ListSessions, tools[0].ToolCall.Name)

	published := f.events.OfType(event.OverseerMessage)
	var toolEvents int
	for _, e := range published {
		if e.Data.(event.OverseerMessageData).Message.Role == types.RoleTool {
			toolEvents++
		}
	}
	assert.Equal(t, 2, toolEvents)
}

func TestChat_ToolErrorIsFedBack(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("call-1", tool.KillSession, `{"session_id":"nope"}`),
		say("That session does not exist."),
	)

	require.NoError(t, f.overseer.Chat(context.Background(), "kill nope"))

	history := f.overseer.History()
	require.Len(t, history, 4)
	assert.Contains(t, history[2].Content, `"error"`)

	for _, m := range f.overseer.Messages() {
		if m.Role == types.RoleTool {
			assert.Equal(t, types.ToolError, m.ToolCall.Status)
		}
	}
}

func TestChat_UnknownToolDoesNotStopLoop(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("call-1", "list_session", `{}`),
		say("ok"),
	)

	require.NoError(t, f.overseer.Chat(context.Background(), "go"))
	history := f.overseer.History()
	require.Len(t, history, 4)
	assert.Contains(t, history[2].Content, "list_sessions")
}

func TestChat_MaxTurns(t *testing.T) {
	f := newFixture(t, Options{MaxTurns: 3})
	f.model.fallback = callTool("loop", tool.ListSessions, `{}`)

	require.NoError(t, f.overseer.Chat(context.Background(), "spin"))

	assert.Equal(t, 3, f.model.Calls())
	assert.Equal(t, types.OverseerIdle, f.overseer.Status())

	var notices []types.OverseerMessage
	for _, m := range f.overseer.Messages() {
		if m.Role == types.RoleSystem {
			notices = append(notices, m)
		}
	}
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Content, "maximum turns (3)")
}

func TestChat_ModelErrorAfterRetries(t *testing.T) {
	boom := errors.New("upstream overloaded")
	f := newFixture(t, Options{Retries: 1})
	f.model.fallback = fail(boom)

	err := f.overseer.Chat(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, f.model.Calls())
	assert.Equal(t, types.OverseerIdle, f.overseer.Status())

	msgs := f.overseer.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.RoleError, last.Role)
	assert.Contains(t, last.Content, "upstream overloaded")
}

func TestChat_RetryRecovers(t *testing.T) {
	f := newFixture(t, Options{Retries: 2}, fail(errors.New("flaky")), say("recovered"))

	require.NoError(t, f.overseer.Chat(context.Background(), "hi"))
	msgs := f.overseer.Messages()
	assert.Equal(t, "recovered", msgs[len(msgs)-1].Content)
}

func TestChat_NoModel(t *testing.T) {
	f := newFixture(t, Options{Model: "fake/missing"})

	err := f.overseer.Chat(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoModel)
	assert.Equal(t, types.OverseerIdle, f.overseer.Status())
}

func TestChat_BusyWhileThinking(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, Options{}, block(started))

	done := make(chan error, 1)
	go func() { done <- f.overseer.Chat(context.Background(), "first") }()
	<-started

	assert.ErrorIs(t, f.overseer.Chat(context.Background(), "second"), ErrBusy)
	assert.ErrorIs(t, f.overseer.ClearHistory(), ErrBusy)

	f.overseer.Abort()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("chat did not return after abort")
	}
}

func TestAbort_DuringThinking(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, Options{}, block(started))

	done := make(chan error, 1)
	go func() { done <- f.overseer.Chat(context.Background(), "work") }()
	<-started

	f.overseer.Abort()
	require.NoError(t, <-done)

	assert.Equal(t, types.OverseerIdle, f.overseer.Status())
	assert.Len(t, f.events.OfType(event.OverseerAborted), 1)
	assert.Equal(t, []string{"thinking", "idle"}, f.statuses())

	// A fresh chat runs normally afterwards.
	require.NoError(t, f.overseer.Chat(context.Background(), "again"))
	assert.Equal(t, types.OverseerIdle, f.overseer.Status())
}

func TestAbort_IdleIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	f.overseer.Abort()
	assert.Empty(t, f.events.OfType(event.OverseerAborted))
}

func TestSleep_Timeout(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("s1", tool.Sleep, `{"timeout_ms": 20}`),
		say("woke up"),
	)

	require.NoError(t, f.overseer.Chat(context.Background(), "wait a bit"))

	sleeping := f.events.OfType(event.OverseerSleeping)
	require.Len(t, sleeping, 1)
	conds := sleeping[0].Data.(event.OverseerSleepingData).Conditions
	require.Len(t, conds, 1)
	assert.Equal(t, types.WakeTimeout, conds[0].Type)

	awake := f.events.OfType(event.OverseerAwake)
	require.Len(t, awake, 1)
	assert.Equal(t, "timeout", awake[0].Data.(event.OverseerAwakeData).Reason)
	assert.Equal(t, []string{"thinking", "acting", "sleeping", "idle", "thinking", "idle"}, f.statuses())
	assert.Empty(t, f.overseer.WakeConditions())
}

func TestSleep_WithoutConditionIsToolError(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("s1", tool.Sleep, `{}`),
		say("fine"),
	)

	require.NoError(t, f.overseer.Chat(context.Background(), "sleep"))
	assert.Empty(t, f.events.OfType(event.OverseerSleeping))
	assert.Contains(t, f.overseer.History()[2].Content, "wake condition")
}

func TestWake_Manual(t *testing.T) {
	f := newFixture(t, Options{},
		callTool("s1", tool.Sleep, `{"timeout_ms": 60000}`),
		say("back"),
	)

	done := make(chan error, 1)
	go func() { done <- f.overseer.Chat(context.Background(), "wait") }()

	require.Eventually(t, func() bool {
		return f.overseer.Status() == types.OverseerSleeping && len(f.overseer.WakeConditions()) == 1
	}, time.Second, 5*time.Millisecond)

	f.overseer.Wake()
	require.NoError(t, <-done)

	awake := f.events.OfType(event.OverseerAwake)
	require.Len(t, awake, 1)
	assert.Equal(t, "manual", awake[0].Data.(event.OverseerAwakeData).Reason)
	assert.Equal(t, 2, f.model.Calls())
}

func TestWake_NotSleepingIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	f.overseer.Wake()
	assert.Empty(t, f.events.OfType(event.OverseerAwake))
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, Options{}, say("hello"))
	require.NoError(t, f.overseer.Chat(context.Background(), "hi"))
	require.NotEmpty(t, f.overseer.Messages())

	require.NoError(t, f.overseer.ClearHistory())
	assert.Empty(t, f.overseer.Messages())
	assert.Empty(t, f.overseer.History())
	assert.Len(t, f.events.OfType(event.OverseerCleared), 1)
}

func TestSetModel(t *testing.T) {
	f := newFixture(t, Options{})
	other := newScriptedModel(say("from other"))
	f.overseer.opts.Models = staticResolver{models: map[string]*scriptedModel{
		"fake/default": f.model,
		"fake/other":   other,
	}}

	require.NoError(t, f.overseer.SetModel(context.Background(), "fake/other"))
	assert.Equal(t, "fake/other", f.overseer.Model())

	changed := f.events.OfType(event.OverseerModel)
	require.Len(t, changed, 1)
	assert.Equal(t, "fake/other", changed[0].Data.(event.OverseerModelData).Model)

	require.NoError(t, f.overseer.Chat(context.Background(), "hi"))
	assert.Equal(t, 1, other.Calls())
	assert.Equal(t, 0, f.model.Calls())

	err := f.overseer.SetModel(context.Background(), "fake/nope")
	assert.ErrorIs(t, err, ErrNoModel)
	assert.Equal(t, "fake/other", f.overseer.Model())
}

func TestChat_NaturalEndClosesPendingCalls(t *testing.T) {
	f := newFixture(t, Options{}, func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		msg := schema.AssistantMessage("wrapping up", []schema.ToolCall{{
			ID:       "late",
			Function: schema.FunctionCall{Name: tool.ListSessions, Arguments: `{}`},
		}})
		msg.ResponseMeta = &schema.ResponseMeta{FinishReason: "end_turn"}
		return msg, nil
	})

	require.NoError(t, f.overseer.Chat(context.Background(), "hi"))
	assert.Equal(t, 1, f.model.Calls())

	history := f.overseer.History()
	require.Len(t, history, 3)
	assert.Equal(t, "late", history[2].ToolCallID)
	assert.Equal(t, cancelledOutput, history[2].Content)
}
