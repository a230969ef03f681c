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

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/walteh/stagerc/pkg/supervise"
	"gitlab.com/tozd/go/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], streams{console: os.Stderr, stdout: os.Stdout, stderr: os.Stderr}))
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, s streams) int {
	rootCmd := newRootCmd(s)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(s.console)
	rootCmd.SetErr(s.console)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed)
		var exitErr *supervise.ExitError
		if errors.As(err, &exitErr) {
			red.Fprintf(s.console, "❌ %s\n", exitErr.Error())
		} else {
			red.Fprintf(s.console, "❌ %s\n", err.Error())
		}
		return 1
	}
	return 0
}
