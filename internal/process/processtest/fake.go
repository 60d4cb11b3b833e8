// Package processtest provides an in-memory process.Spawner for tests.
package processtest

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/opencode-ai/overseer/internal/process"
)

// Spawner records every Spec it is asked to start and hands out Process
// values whose output is driven by the test.
type Spawner struct {
	mu        sync.Mutex
	specs     []process.Spec
	processes []*Process
	started   chan *Process

	// StartErr, when set, is returned by the next Start call and then cleared.
	StartErr error
}

// NewSpawner creates a fake spawner.
func NewSpawner() *Spawner {
	return &Spawner{started: make(chan *Process, 64)}
}

// Start implements process.Spawner.
func (s *Spawner) Start(ctx context.Context, spec process.Spec) (process.Process, error) {
	s.mu.Lock()
	if err := s.StartErr; err != nil {
		s.StartErr = nil
		s.mu.Unlock()
		return nil, err
	}
	p := newProcess(len(s.processes) + 1000)
	s.specs = append(s.specs, spec)
	s.processes = append(s.processes, p)
	s.mu.Unlock()

	s.started <- p
	return p, nil
}

// Specs returns every spec started so far.
func (s *Spawner) Specs() []process.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]process.Spec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Last returns the most recently started process, or nil.
func (s *Spawner) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.processes) == 0 {
		return nil
	}
	return s.processes[len(s.processes)-1]
}

// Next waits for the next Start call.
func (s *Spawner) Next(timeout time.Duration) (*Process, error) {
	select {
	case p := <-s.started:
		return p, nil
	case <-time.After(timeout):
		return nil, errors.New("processtest: no process started")
	}
}

// Process is a fake child process with writable output pipes.
type Process struct {
	pid int

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	done     chan struct{}
	exitOnce sync.Once
	exitCode int

	mu     sync.Mutex
	killed bool
}

func newProcess(pid int) *Process {
	or, ow := io.Pipe()
	er, ew := io.Pipe()
	return &Process{
		pid:     pid,
		stdoutR: or, stdoutW: ow,
		stderrR: er, stderrW: ew,
		done: make(chan struct{}),
	}
}

// WriteStdout writes a chunk to stdout, blocking until the reader consumed it.
func (p *Process) WriteStdout(chunk string) error {
	_, err := p.stdoutW.Write([]byte(chunk))
	return err
}

// WriteStderr writes a chunk to stderr.
func (p *Process) WriteStderr(chunk string) error {
	_, err := p.stderrW.Write([]byte(chunk))
	return err
}

// Exit closes the output pipes and marks the process exited with code.
func (p *Process) Exit(code int) {
	p.exitOnce.Do(func() {
		p.stdoutW.Close()
		p.stderrW.Close()
		p.exitCode = code
		close(p.done)
	})
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *Process) Pid() int              { return p.pid }
func (p *Process) Stdout() io.Reader     { return p.stdoutR }
func (p *Process) Stderr() io.Reader     { return p.stderrR }
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) ExitCode() int {
	<-p.done
	return p.exitCode
}

// Kill marks the process killed and exits it with -1.
func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(-1)
	return nil
}
