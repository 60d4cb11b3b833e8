/*
Package event provides the typed notification bus shared by the session manager,
the overseer and the HTTP boundary.

Subscribers registered with Subscribe or SubscribeAll are called directly, so they
receive the concrete data structs from types.go. PublishSync calls them in the
publisher's goroutine, which is how per-session ordering is preserved; Publish fans
out on fresh goroutines.

Every published event is also JSON-encoded onto a watermill gochannel topic
(StreamTopic). Stream exposes that topic as an ordered channel of Envelope values
for consumers that only forward JSON, such as the SSE and WebSocket endpoints.

# Event Types

Session events:
  - session.spawned: a session was registered
  - session.output: a raw stdout/stderr chunk
  - session.message: a de-duplicated assistant message
  - session.status: the session status changed
  - session.mode: the permission mode changed
  - session.killed: the session was removed
  - session.exited: the child process exited

Overseer events:
  - overseer.message: a transcript entry (user, assistant, tool, error)
  - overseer.status: the loop status changed
  - overseer.sleeping: a sleep started, with its wake conditions
  - overseer.awake: a sleep ended
  - overseer.aborted: the running loop was cancelled
  - overseer.cleared: the transcript was cleared
  - overseer.model: the overseer model changed

# Basic Usage

	bus := event.NewBus()
	defer bus.Close()

	unsub := bus.Subscribe(event.SessionStatus, func(e event.Event) {
		data := e.Data.(event.SessionStatusData)
		fmt.Println(data.SessionID, data.Status)
	})
	defer unsub()

	envelopes, _ := bus.Stream(ctx, 256)
	for env := range envelopes {
		fmt.Println(env.Type, string(env.Data))
	}
*/
package event
