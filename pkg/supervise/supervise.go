// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package supervise runs external commands with an exact environment while
// relaying their output live.
package supervise

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is how long a cancelled child gets between the
// interrupt and the kill.
const DefaultGracePeriod = 10 * time.Second

// 🚀 Command describes one supervised child process
type Command struct {
	Args        []string          // argv; Args[0] is resolved against Env["PATH"]
	Env         map[string]string // the complete child environment
	Dir         string            // working directory
	Description string            // human name used in logs and errors

	// GracePeriod overrides DefaultGracePeriod when positive
	GracePeriod time.Duration
}

// 📊 Outcome is available only after both streams reached end of file and
// the child has been reaped
type Outcome struct {
	ExitCode    int
	StdoutBytes int64
	StderrBytes int64
	Elapsed     time.Duration
}

// ❌ ExitError reports a child that finished with a non-zero status
type ExitError struct {
	Description string
	Args        []string
	Code        int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed (see logs)", e.Description)
}

// Quote renders args as a shell command line.
func Quote(args []string) string {
	return shellquote.Join(args...)
}

// Environ flattens env into sorted KEY=VALUE pairs. The result is never nil
// so that an empty map yields an empty environment.
func Environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// LookPath resolves name against the PATH entry of env, never the caller's.
func LookPath(name string, env map[string]string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return name, nil
	}
	for _, dir := range filepath.SplitList(env["PATH"]) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", errors.Errorf("executable %q not found in PATH %q", name, env["PATH"])
}

// 🏃 Run starts cmd and relays its stdout and stderr to the given writers as
// bytes arrive. It returns once the child has exited and both pipes are
// drained. A non-zero exit yields an *ExitError alongside the Outcome.
func Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) (*Outcome, error) {
	logger := zerolog.Ctx(ctx)

	if len(cmd.Args) == 0 {
		return nil, errors.New("command is empty")
	}
	if cmd.Description == "" {
		cmd.Description = cmd.Args[0]
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	path, err := LookPath(cmd.Args[0], cmd.Env)
	if err != nil {
		return nil, errors.Errorf("%s: %w", cmd.Description, err)
	}

	grace := cmd.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	c := exec.CommandContext(ctx, path, cmd.Args[1:]...)
	c.Args[0] = cmd.Args[0]
	c.Env = Environ(cmd.Env)
	c.Dir = cmd.Dir
	c.SysProcAttr = sysProcAttr()
	c.Cancel = func() error {
		return interruptGroup(c.Process)
	}
	c.WaitDelay = grace

	outPipe, err := c.StdoutPipe()
	if err != nil {
		return nil, errors.Errorf("creating stdout pipe: %w", err)
	}
	errPipe, err := c.StderrPipe()
	if err != nil {
		return nil, errors.Errorf("creating stderr pipe: %w", err)
	}

	logger.Debug().
		Str("description", cmd.Description).
		Str("command", Quote(cmd.Args)).
		Str("dir", cmd.Dir).
		Msg("starting command")

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, errors.Errorf("starting %s: %w", cmd.Description, err)
	}

	reaped := make(chan struct{})
	go escalate(ctx, logger, c.Process, grace, reaped)

	var mu sync.Mutex
	outcome := &Outcome{}

	var g errgroup.Group
	g.Go(func() (err error) {
		outcome.StdoutBytes, err = relay("stdout", &lockedWriter{mu: &mu, w: stdout}, outPipe)
		return err
	})
	g.Go(func() (err error) {
		outcome.StderrBytes, err = relay("stderr", &lockedWriter{mu: &mu, w: stderr}, errPipe)
		return err
	})

	// Wait closes the pipes, so both readers must reach EOF first
	copyErr := g.Wait()
	waitErr := c.Wait()
	close(reaped)
	outcome.Elapsed = time.Since(start)

	if c.ProcessState != nil {
		outcome.ExitCode = c.ProcessState.ExitCode()
	}

	logger.Debug().
		Str("description", cmd.Description).
		Int("exit_code", outcome.ExitCode).
		Int64("stdout_bytes", outcome.StdoutBytes).
		Int64("stderr_bytes", outcome.StderrBytes).
		Dur("elapsed", outcome.Elapsed).
		Msg("command finished")

	if ctx.Err() != nil {
		return outcome, errors.Errorf("%s interrupted: %w", cmd.Description, ctx.Err())
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return outcome, errors.Errorf("waiting for %s: %w", cmd.Description, waitErr)
	}
	if outcome.ExitCode != 0 {
		return outcome, &ExitError{Description: cmd.Description, Args: cmd.Args, Code: outcome.ExitCode}
	}
	if copyErr != nil {
		return outcome, errors.Errorf("relaying output of %s: %w", cmd.Description, copyErr)
	}

	return outcome, nil
}

// escalate kills the child's whole process group once the grace period after
// cancellation runs out. Descendants holding the pipes would otherwise keep
// the relays from reaching EOF.
func escalate(ctx context.Context, logger *zerolog.Logger, p *os.Process, grace time.Duration, reaped <-chan struct{}) {
	select {
	case <-reaped:
		return
	case <-ctx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-reaped:
	case <-timer.C:
		logger.Debug().Int("pid", p.Pid).Dur("grace", grace).Msg("grace period expired, killing process group")
		if err := killGroup(p); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Warn().Err(err).Int("pid", p.Pid).Msg("killing process group")
		}
	}
}

// relay forwards every chunk read from r to w as soon as it arrives. After a
// write failure the pipe is still drained to EOF.
func relay(stream string, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var (
		total    int64
		writeErr error
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if writeErr == nil {
				if _, werr := w.Write(buf[:n]); werr != nil {
					writeErr = errors.Errorf("writing %s: %w", stream, werr)
				}
			}
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, os.ErrClosed) {
				return total, writeErr
			}
			return total, errors.Errorf("reading %s: %w", stream, err)
		}
	}
}

// lockedWriter serializes writes from the two relays.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
