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

package supervise

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

var baseEnv = map[string]string{"PATH": "/bin:/usr/bin"}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

func TestRun(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name       string
		script     string
		wantStdout string
		wantStderr string
		wantCode   int
	}{
		{
			name:       "interleaved_streams_with_delays",
			script:     "printf out1; sleep 0.05; printf err1 >&2; sleep 0.05; printf out2; sleep 0.05; printf err2 >&2",
			wantStdout: "out1out2",
			wantStderr: "err1err2",
		},
		{
			name:       "trailing_output_right_before_exit",
			script:     "printf 'line\\n'; printf 'last' >&2; exit 0",
			wantStdout: "line\n",
			wantStderr: "last",
		},
		{
			name:     "silent_success",
			script:   "true",
			wantCode: 0,
		},
		{
			name:       "non_zero_exit_still_drains",
			script:     "printf partial; printf boom >&2; exit 3",
			wantStdout: "partial",
			wantStderr: "boom",
			wantCode:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			outcome, err := Run(testContext(t), Command{
				Args:        sh(tt.script),
				Env:         baseEnv,
				Description: "test script",
			}, &stdout, &stderr)

			require.NotNil(t, outcome)
			assert.Equal(t, tt.wantStdout, stdout.String())
			assert.Equal(t, tt.wantStderr, stderr.String())
			assert.Equal(t, tt.wantCode, outcome.ExitCode)
			assert.Equal(t, int64(len(tt.wantStdout)), outcome.StdoutBytes)
			assert.Equal(t, int64(len(tt.wantStderr)), outcome.StderrBytes)

			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tt.wantCode, exitErr.Code)
			assert.Equal(t, "test script failed (see logs)", err.Error())
		})
	}
}

func TestRun_LargeOutputOnOneStream(t *testing.T) {
	skipWithoutShell(t)

	const size = 4 << 20
	var stdout, stderr bytes.Buffer
	outcome, err := Run(testContext(t), Command{
		Args:        sh("head -c 4194304 /dev/zero >&2; printf done"),
		Env:         baseEnv,
		Description: "flood stderr",
	}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, int64(size), outcome.StderrBytes)
	assert.Equal(t, size, stderr.Len())
	assert.Equal(t, "done", stdout.String())
}

func TestRun_ExactEnvironment(t *testing.T) {
	skipWithoutShell(t)
	t.Setenv("STAGERC_LEAK_CHECK", "leaked")

	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{
			name: "only_given_variables",
			args: []string{"env"},
			env:  map[string]string{"PATH": "/bin:/usr/bin", "JAVA_HOME": "/opt/jdk"},
			want: "JAVA_HOME=/opt/jdk\nPATH=/bin:/usr/bin\n",
		},
		{
			name: "empty_environment",
			args: []string{"/usr/bin/env"},
			env:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := os.Stat("/usr/bin/env"); err != nil {
				t.Skip("requires /usr/bin/env")
			}
			var stdout bytes.Buffer
			_, err := Run(testContext(t), Command{Args: tt.args, Env: tt.env, Description: "env"}, &stdout, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout.String())
			assert.NotContains(t, stdout.String(), "STAGERC_LEAK_CHECK")
		})
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	skipWithoutShell(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	var stdout bytes.Buffer
	_, err = Run(testContext(t), Command{
		Args: sh("pwd -P"),
		Env:  baseEnv,
		Dir:  dir,
	}, &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(stdout.String()))
}

func TestRun_CancelInterruptsChild(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(testContext(t), 200*time.Millisecond)
	defer cancel()

	var stdout bytes.Buffer
	start := time.Now()
	outcome, err := Run(ctx, Command{
		Args:        sh("printf started; exec sleep 30"),
		Env:         baseEnv,
		Description: "slow build",
		GracePeriod: time.Second,
	}, &stdout, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "slow build interrupted")
	assert.Less(t, time.Since(start), 10*time.Second)
	require.NotNil(t, outcome)
	assert.Equal(t, "started", stdout.String())
}

func TestRun_CancelReachesDescendants(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name   string
		script string
	}{
		{
			name:   "shell_wrapper_with_child",
			script: "printf started; sleep 30; true",
		},
		{
			name:   "interrupt_ignored_until_kill",
			script: "trap '' INT; printf started; sleep 30; true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(testContext(t), 200*time.Millisecond)
			defer cancel()

			var stdout bytes.Buffer
			start := time.Now()
			outcome, err := Run(ctx, Command{
				Args:        sh(tt.script),
				Env:         baseEnv,
				Description: "wrapped build",
				GracePeriod: 500 * time.Millisecond,
			}, &stdout, nil)
			elapsed := time.Since(start)

			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Contains(t, err.Error(), "wrapped build interrupted")
			assert.Less(t, elapsed, 5*time.Second)
			require.NotNil(t, outcome)
			assert.Equal(t, "started", stdout.String())
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("sink closed")
}

func TestRun_FailingWriterStillDrains(t *testing.T) {
	skipWithoutShell(t)

	outcome, err := Run(testContext(t), Command{
		Args: sh("head -c 1048576 /dev/zero"),
		Env:  baseEnv,
	}, failingWriter{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing stdout")
	assert.Equal(t, int64(1<<20), outcome.StdoutBytes)
	assert.Equal(t, 0, outcome.ExitCode)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		errContains string
	}{
		{
			name:        "empty_command",
			cmd:         Command{},
			errContains: "command is empty",
		},
		{
			name:        "not_on_path",
			cmd:         Command{Args: []string{"stagerc-no-such-tool"}, Env: baseEnv},
			errContains: `executable "stagerc-no-such-tool" not found`,
		},
		{
			name:        "caller_path_not_consulted",
			cmd:         Command{Args: []string{"sh"}, Env: map[string]string{}},
			errContains: `executable "sh" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(testContext(t), tt.cmd, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "plain", args: []string{"gradle", "build"}, want: "gradle build"},
		{name: "space", args: []string{"gradle", "-Pname=a b"}, want: "gradle '-Pname=a b'"},
		{name: "empty_arg", args: []string{"echo", ""}, want: "echo ''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.args))
		})
	}
}

func TestEnviron(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, Environ(map[string]string{"B": "2", "A": "1"}))

	empty := Environ(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
