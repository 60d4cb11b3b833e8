// Package process starts and tears down the child processes behind sessions.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultKillGrace is how long Kill waits after SIGTERM before SIGKILL.
const DefaultKillGrace = 3 * time.Second

// DefaultDrainTimeout is how long a read may stay blocked after the child
// exits before its pipe is closed. Only a grandchild that inherited the
// pipe keeps a read blocked that long.
const DefaultDrainTimeout = 2 * time.Second

// Spec describes one child process.
type Spec struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the parent environment.
	Env []string
}

// Process is a running child process.
type Process interface {
	Pid() int
	Stdout() io.Reader
	Stderr() io.Reader
	// Done is closed once the process has exited and ExitCode is valid.
	Done() <-chan struct{}
	ExitCode() int
	// Kill terminates the process and its group. Safe to call more than once.
	Kill() error
}

// Spawner starts processes.
type Spawner interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}

// ExecSpawner starts real OS processes.
type ExecSpawner struct {
	KillGrace    time.Duration
	DrainTimeout time.Duration
}

// NewExecSpawner creates a spawner with the default kill grace period.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{KillGrace: DefaultKillGrace, DrainTimeout: DefaultDrainTimeout}
}

// Start launches spec. Cancelling ctx kills the process.
func (s *ExecSpawner) Start(ctx context.Context, spec Spec) (Process, error) {
	if spec.Path == "" {
		return nil, errors.New("process: empty path")
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	setProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}
	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()

	grace := s.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	drain := s.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	p := &execProcess{
		cmd:    cmd,
		stdout: &pipe{f: stdoutR},
		stderr: &pipe{f: stderrR},
		done:   make(chan struct{}),
		grace:  grace,
		drain:  drain,
	}
	go p.wait()
	go func() {
		select {
		case <-ctx.Done():
			p.Kill()
		case <-p.done:
		}
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout *pipe
	stderr *pipe
	done   chan struct{}
	grace  time.Duration
	drain  time.Duration

	exitCode int
	killOnce sync.Once
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()
	code := 0
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	} else if err != nil {
		code = -1
	}
	p.exitCode = code
	close(p.done)

	p.closeStalled(time.Now())
}

// closeStalled closes every pipe whose read has been blocked for the drain
// timeout since exited. It returns once both pipes are finished.
func (p *execProcess) closeStalled(exited time.Time) {
	ticker := time.NewTicker(p.drain / 4)
	defer ticker.Stop()
	for range ticker.C {
		open := 0
		for _, pp := range []*pipe{p.stdout, p.stderr} {
			if pp.finished() {
				continue
			}
			if pp.stalled(exited, p.drain) {
				pp.close()
				continue
			}
			open++
		}
		if open == 0 {
			return
		}
	}
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitCode() int {
	<-p.done
	return p.exitCode
}

// pipe is the read end of a child output stream. It closes itself at EOF.
type pipe struct {
	f         *os.File
	closeOnce sync.Once

	mu      sync.Mutex
	reading bool
	since   time.Time
	done    bool
}

func (p *pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	p.reading, p.since = true, time.Now()
	p.mu.Unlock()

	n, err := p.f.Read(b)

	p.mu.Lock()
	p.reading = false
	p.mu.Unlock()
	if err != nil {
		p.close()
	}
	return n, err
}

// stalled reports whether a read has been blocked for at least d, counting
// from after at the earliest.
func (p *pipe) stalled(after time.Time, d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.reading {
		return false
	}
	start := p.since
	if start.Before(after) {
		start = after
	}
	return time.Since(start) >= d
}

func (p *pipe) finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *pipe) close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
		p.f.Close()
	})
}

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		err = terminate(p.cmd, p.done, p.grace)
	})
	return err
}
