package overseer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/internal/tool"
	"github.com/opencode-ai/overseer/pkg/types"
)

var _ = Describe("Overseer loop", func() {
	var (
		f    *fixture
		ctx  context.Context
		done chan error
	)

	chatAsync := func(text string) {
		go func() { done <- f.overseer.Chat(ctx, text) }()
	}

	awakeReasons := func() []string {
		var out []string
		for _, e := range f.events.OfType(event.OverseerAwake) {
			out = append(out, e.Data.(event.OverseerAwakeData).Reason)
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		done = make(chan error, 2)
	})

	Describe("sleeping on a session", func() {
		var info types.SessionInfo

		BeforeEach(func() {
			f = newFixture(GinkgoT(), Options{})

			dir, err := os.MkdirTemp("", "overseer-spec")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			info, err = f.manager.Spawn(ctx, session.SpawnOptions{Cwd: dir})
			Expect(err).NotTo(HaveOccurred())
			Expect(f.manager.Send(ctx, info.ID, "run the migrations")).To(Succeed())
		})

		It("wakes exactly once when the session finishes before the timeout", func() {
			proc, err := f.spawner.Next(time.Second)
			Expect(err).NotTo(HaveOccurred())

			f.model.script = []reply{
				callTool("s1", tool.Sleep, fmt.Sprintf(`{"timeout_ms": 50, "wake_on_complete": %q}`, info.ID)),
				say("migrations finished"),
			}
			chatAsync("tell me when it is done")

			Eventually(f.overseer.Status).Should(Equal(types.OverseerSleeping))
			time.Sleep(10 * time.Millisecond)
			Expect(proc.WriteStdout(`{"type":"result","session_id":"claude-1"}` + "\n")).To(Succeed())

			Eventually(done).Should(Receive(BeNil()))
			Consistently(awakeReasons, 100*time.Millisecond).Should(
				Equal([]string{"session_complete:" + info.ID}))
		})

		It("falls back to the timeout when the session stays busy", func() {
			f.model.script = []reply{
				callTool("s1", tool.Sleep, fmt.Sprintf(`{"timeout_ms": 30, "wake_on_complete": %q}`, info.ID)),
				say("still running"),
			}
			chatAsync("wait for it")

			Eventually(done).Should(Receive(BeNil()))
			Consistently(awakeReasons, 60*time.Millisecond).Should(Equal([]string{"timeout"}))
		})
	})

	Describe("abort", func() {
		BeforeEach(func() {
			f = newFixture(GinkgoT(), Options{})
		})

		It("cancels a sleep and leaves the overseer idle", func() {
			f.model.script = []reply{callTool("s1", tool.Sleep, `{"timeout_ms": 60000}`)}
			chatAsync("nap")

			Eventually(f.overseer.Status).Should(Equal(types.OverseerSleeping))
			f.overseer.Abort()

			Eventually(done).Should(Receive(BeNil()))
			Expect(f.overseer.Status()).To(Equal(types.OverseerIdle))
			Expect(f.overseer.WakeConditions()).To(BeEmpty())
			Expect(f.events.OfType(event.OverseerAborted)).To(HaveLen(1))
			Expect(f.model.Calls()).To(Equal(1))

			history := f.overseer.History()
			Expect(history).NotTo(BeEmpty())
			last := history[len(history)-1]
			Expect(last.ToolCallID).To(Equal("s1"))
		})

		It("skips the remaining tool calls of a turn", func() {
			f.model.script = []reply{
				func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
					return schema.AssistantMessage("", []schema.ToolCall{
						{ID: "a", Function: schema.FunctionCall{Name: tool.Sleep, Arguments: `{"timeout_ms": 60000}`}},
						{ID: "b", Function: schema.FunctionCall{Name: tool.ListSessions, Arguments: `{}`}},
					}), nil
				},
			}
			chatAsync("two things")

			Eventually(f.overseer.Status).Should(Equal(types.OverseerSleeping))
			f.overseer.Abort()
			Eventually(done).Should(Receive(BeNil()))

			history := f.overseer.History()
			Expect(history).To(HaveLen(4))
			Expect(history[3].ToolCallID).To(Equal("b"))
			Expect(history[3].Content).To(Equal(cancelledOutput))
		})
	})

	Describe("chat while sleeping", func() {
		BeforeEach(func() {
			f = newFixture(GinkgoT(), Options{})
		})

		It("supersedes the sleeping loop", func() {
			f.model.script = []reply{
				callTool("s1", tool.Sleep, `{"timeout_ms": 60000}`),
				say("on it"),
			}
			chatAsync("sleep for a minute")
			Eventually(f.overseer.Status).Should(Equal(types.OverseerSleeping))

			Expect(f.overseer.Chat(ctx, "actually, check now")).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))

			Expect(awakeReasons()).To(Equal([]string{"chat"}))
			Expect(f.overseer.Status()).To(Equal(types.OverseerIdle))
			Expect(f.model.Calls()).To(Equal(2))

			var users []string
			for _, m := range f.overseer.Messages() {
				if m.Role == types.RoleUser {
					users = append(users, m.Content)
				}
			}
			Expect(users).To(Equal([]string{"sleep for a minute", "actually, check now"}))
		})
	})

	Describe("turn budget", func() {
		It("posts the notice once and stops", func() {
			f = newFixture(GinkgoT(), Options{MaxTurns: 2})
			f.model.fallback = callTool("x", tool.ListSessions, `{}`)

			Expect(f.overseer.Chat(ctx, "loop forever")).To(Succeed())

			var notices int
			for _, m := range f.overseer.Messages() {
				if m.Role == types.RoleSystem {
					notices++
				}
			}
			Expect(notices).To(Equal(1))
			Expect(f.model.Calls()).To(Equal(2))
			Expect(f.overseer.Status()).To(Equal(types.OverseerIdle))
		})
	})
})
