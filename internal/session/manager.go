package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/process"
	"github.com/opencode-ai/overseer/internal/stream"
	"github.com/opencode-ai/overseer/pkg/types"
)

const readChunkSize = 32 * 1024

// Options configures a Manager.
type Options struct {
	MaxSessions  int
	ClaudePath   string
	DefaultModel string
	BufferSize   int
	Spawner      process.Spawner
	Bus          *event.Bus
	// Now is used for timestamps; defaults to time.Now.
	Now func() time.Time
}

// SpawnOptions describes a new session.
type SpawnOptions struct {
	Cwd             string               `json:"cwd"`
	Model           string               `json:"model,omitempty"`
	PermissionMode  types.PermissionMode `json:"permissionMode,omitempty"`
	ResumeID        string               `json:"resumeSessionId,omitempty"`
	SkipPermissions bool                 `json:"dangerouslySkipPermissions,omitempty"`
}

// Manager owns every session and its child process.
type Manager struct {
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	order    []string

	// ctx bounds process lifetimes; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "sonnet"
	}
	if opts.Spawner == nil {
		opts.Spawner = process.NewExecSpawner()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		log:      logging.Component("session"),
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Bus returns the bus the manager publishes to.
func (m *Manager) Bus() *event.Bus {
	return m.opts.Bus
}

// MaxSessions returns the session limit.
func (m *Manager) MaxSessions() int {
	return m.opts.MaxSessions
}

// Spawn registers a new idle session. No process is started until Send.
func (m *Manager) Spawn(ctx context.Context, opts SpawnOptions) (types.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.SessionInfo{}, err
	}

	mode := opts.PermissionMode
	if opts.SkipPermissions {
		mode = types.PermissionBypass
	}
	mode, err := types.ParsePermissionMode(string(mode))
	if err != nil {
		return types.SessionInfo{}, fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}

	cwd, err := filepath.Abs(opts.Cwd)
	if err != nil || opts.Cwd == "" {
		return types.SessionInfo{}, fmt.Errorf("%w: %q", ErrInvalidPath, opts.Cwd)
	}
	if st, err := os.Stat(cwd); err != nil || !st.IsDir() {
		return types.SessionInfo{}, fmt.Errorf("%w: %s", ErrInvalidPath, cwd)
	}

	model := opts.Model
	if model == "" {
		model = m.opts.DefaultModel
	}

	info := types.SessionInfo{
		ID:             ulid.Make().String(),
		Cwd:            cwd,
		Model:          model,
		PermissionMode: mode,
		Status:         types.StatusIdle,
		ContinuationID: opts.ResumeID,
		CreatedAt:      m.opts.Now().UnixMilli(),
	}

	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return types.SessionInfo{}, fmt.Errorf("%w: maximum of %d sessions", ErrCapacityExceeded, m.opts.MaxSessions)
	}
	m.sessions[info.ID] = newSession(info, m.opts.BufferSize)
	m.order = append(m.order, info.ID)
	m.mu.Unlock()

	m.log.Info().Str("session_id", info.ID).Str("cwd", cwd).Str("model", model).
		Str("mode", string(mode)).Msg("session spawned")
	m.opts.Bus.PublishSync(event.Event{Type: event.SessionSpawned, Data: event.SessionSpawnedData{Info: info}})
	return info, nil
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Send starts one claude process for text. The session must not be running.
func (m *Manager) Send(ctx context.Context, id, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.proc != nil || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	spec := BuildSpec(m.opts.ClaudePath, s.info, text)
	s.starting = true
	events := s.setStatus(types.StatusThinking)
	s.mu.Unlock()
	m.publish(events)

	proc, startErr := m.opts.Spawner.Start(m.ctx, spec)

	s.mu.Lock()
	s.starting = false
	if startErr != nil {
		events = s.setStatus(types.StatusIdle)
		s.mu.Unlock()
		m.publish(events)
		m.log.Error().Err(startErr).Str("session_id", id).Str("path", spec.Path).Msg("failed to start claude")
		return fmt.Errorf("start session %s: %w", id, startErr)
	}
	s.run++
	run := s.run
	s.proc = proc
	s.decoder = stream.Decoder{}
	s.partial = nil
	s.mu.Unlock()

	m.log.Debug().Str("session_id", id).Int("pid", proc.Pid()).Strs("args", spec.Args).Msg("claude started")

	var readers sync.WaitGroup
	readers.Add(2)
	m.wg.Add(3)
	go m.pump(s, run, "stdout", proc.Stdout(), &readers)
	go m.pump(s, run, "stderr", proc.Stderr(), &readers)
	go m.await(s, run, proc, &readers)
	return nil
}

// pump forwards one output stream of a run into the session.
func (m *Manager) pump(s *session, run uint64, name string, r io.Reader, readers *sync.WaitGroup) {
	defer m.wg.Done()
	defer readers.Done()

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.handleChunk(s, run, name, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				m.log.Debug().Err(err).Str("session_id", s.info.ID).Str("stream", name).Msg("read ended")
			}
			return
		}
	}
}

func (m *Manager) handleChunk(s *session, run uint64, name string, chunk []byte) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.removed || s.run != run {
		s.mu.Unlock()
		return
	}
	id := s.info.ID
	complete := s.completeRunes(name, chunk)
	if len(complete) == 0 {
		s.mu.Unlock()
		return
	}
	data := string(complete)
	events := s.output(name, complete, m.opts.Now())
	s.mu.Unlock()

	if name == "stderr" {
		m.log.Warn().Str("session_id", id).Str("stderr", data).Msg("claude stderr")
	}
	m.publish(events)
}

// await handles process exit once both readers are drained.
func (m *Manager) await(s *session, run uint64, proc process.Process, readers *sync.WaitGroup) {
	defer m.wg.Done()

	<-proc.Done()
	readers.Wait()
	code := proc.ExitCode()

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.removed || s.run != run {
		s.mu.Unlock()
		return
	}
	id := s.info.ID
	now := m.opts.Now()
	var events []event.Event
	// A rune still split at exit is invalid; pass its bytes on as they are.
	for _, name := range []string{"stdout", "stderr"} {
		if held := s.takePartial(name); len(held) > 0 {
			events = append(events, s.output(name, held, now)...)
		}
	}
	for _, rec := range s.decoder.Flush() {
		events = append(events, s.apply(rec, now)...)
	}
	if dropped := s.decoder.Dropped(); dropped > 0 {
		m.log.Debug().Str("session_id", id).Int("lines", dropped).Msg("non-JSON output lines ignored")
	}
	s.proc = nil
	events = append(events, s.setStatus(types.StatusIdle)...)
	events = append(events, event.Event{
		Type: event.SessionExited,
		Data: event.SessionExitedData{SessionID: id, ExitCode: code},
	})
	s.mu.Unlock()

	if code != 0 {
		m.log.Warn().Str("session_id", id).Int("exit_code", code).Msg("claude exited with error")
	} else {
		m.log.Debug().Str("session_id", id).Msg("claude exited")
	}
	m.publish(events)
}

// SendKey is not available for print-mode sessions.
func (m *Manager) SendKey(id, key string) error {
	m.log.Warn().Str("session_id", id).Str("key", key).Msg("sendKey not supported in print mode")
	return ErrUnsupported
}

// Resize is not available for print-mode sessions.
func (m *Manager) Resize(id string, cols, rows int) error {
	m.log.Warn().Str("session_id", id).Int("cols", cols).Int("rows", rows).Msg("resize not supported in print mode")
	return ErrUnsupported
}

// Kill terminates the session's process, if any, and forgets the session.
// Killing an unknown session is a no-op.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		for i, oid := range m.order {
			if oid == id {
				m.order = append(m.order[:i:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.emitMu.Lock()
	s.mu.Lock()
	s.removed = true
	proc := s.proc
	s.proc = nil
	s.buffer.Reset()
	s.decoder = stream.Decoder{}
	s.partial = nil
	s.mu.Unlock()
	m.publish([]event.Event{{Type: event.SessionKilled, Data: event.SessionKilledData{SessionID: id}}})
	s.emitMu.Unlock()

	m.log.Info().Str("session_id", id).Bool("had_process", proc != nil).Msg("session killed")
	if proc != nil {
		if err := proc.Kill(); err != nil {
			m.log.Warn().Err(err).Str("session_id", id).Msg("kill failed")
			return fmt.Errorf("kill session %s: %w", id, err)
		}
	}
	return nil
}

// SetPermissionMode changes the mode used for the next Send.
func (m *Manager) SetPermissionMode(id string, mode types.PermissionMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.info.PermissionMode = mode
	s.mu.Unlock()

	m.publish([]event.Event{{Type: event.SessionMode, Data: event.SessionModeData{SessionID: id, Mode: mode}}})
	return nil
}

// MarkWaitingInput moves a session to waiting_input.
func (m *Manager) MarkWaitingInput(id string) error {
	return m.forceStatus(id, types.StatusWaitingInput)
}

// MarkError moves a session to error.
func (m *Manager) MarkError(id, reason string) error {
	m.log.Warn().Str("session_id", id).Str("reason", reason).Msg("session marked as errored")
	return m.forceStatus(id, types.StatusError)
}

func (m *Manager) forceStatus(id string, status types.SessionStatus) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	events := s.setStatus(status)
	s.mu.Unlock()
	m.publish(events)
	return nil
}

// Get returns one session.
func (m *Manager) Get(id string) (types.SessionInfo, error) {
	s, err := m.lookup(id)
	if err != nil {
		return types.SessionInfo{}, err
	}
	return s.snapshot(), nil
}

// List returns every session in creation order.
func (m *Manager) List() []types.SessionInfo {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.order))
	for _, id := range m.order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.RUnlock()

	out := make([]types.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// Buffer returns up to n of the most recent output chunks, oldest first.
// n <= 0 returns the whole buffer.
func (m *Manager) Buffer(id string, n int) ([]string, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Last(n), nil
}

// Shutdown kills every session and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Kill(id); err != nil {
			m.log.Warn().Err(err).Str("session_id", id).Msg("shutdown kill failed")
		}
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) publish(events []event.Event) {
	for _, e := range events {
		m.opts.Bus.PublishSync(e)
	}
}
