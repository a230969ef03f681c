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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/supervise"
	"gitlab.com/tozd/go/errors"
)

// Env merges the config environment with a step's own variables. The result
// is the complete child environment.
func Env(base, step map[string]string) map[string]string {
	env := make(map[string]string, len(base)+len(step))
	for k, v := range base {
		env[k] = v
	}
	for k, v := range step {
		env[k] = v
	}
	return env
}

// StepArgs returns the argv of a step. A clean build inserts clean_args right
// after the executable, an incremental build appends incremental_args.
func StepArgs(step config.StepArgs, clean bool) []string {
	args := make([]string, 0, len(step.Args)+len(step.CleanArgs)+len(step.IncrementalArgs))
	args = append(args, step.Args[0])
	if clean {
		args = append(args, step.CleanArgs...)
	}
	args = append(args, step.Args[1:]...)
	if !clean {
		args = append(args, step.IncrementalArgs...)
	}
	return args
}

// 🛠️ StepCommand builds the supervised command for a step.
func (p *Pipeline) StepCommand(step config.StepArgs, clean bool) supervise.Command {
	return supervise.Command{
		Args:        StepArgs(step, clean),
		Env:         Env(p.cfg.Env, step.Env),
		Dir:         step.Dir,
		Description: step.Description,
	}
}

// 🏗️ Build runs every configured step in order. The first failing step stops
// the build.
func (p *Pipeline) Build(ctx context.Context, clean bool) error {
	if len(p.cfg.Steps) == 0 {
		return nil
	}

	mode := "incremental"
	if clean {
		mode = "clean"
	}
	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "build", Detail: fmt.Sprintf("%s, %s", pluralize(len(p.cfg.Steps), "step"), mode)})
	defer p.logger.EndPhase(ctx)

	for _, step := range p.cfg.Steps {
		if err := p.run(ctx, p.StepCommand(step, clean)); err != nil {
			return errors.Errorf("step %q: %w", step.Name, err)
		}
	}
	return nil
}

// 🏃 Exec runs an ad-hoc command with the config environment inside the
// staging tree.
func (p *Pipeline) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("command is empty")
	}
	return p.run(ctx, supervise.Command{
		Args:        args,
		Env:         Env(p.cfg.Env, nil),
		Dir:         p.RewriteRoot(),
		Description: "Running " + supervise.Quote(args),
	})
}

func (p *Pipeline) run(ctx context.Context, cmd supervise.Command) error {
	p.logger.LogNewline()
	p.logger.Command(cmd.Description, cmd.Args, cmd.Env)
	p.logger.LogNewline()

	outcome, err := p.Run(ctx, cmd, p.Stdout, p.Stderr)
	if err != nil {
		return err
	}
	p.logger.Successf("%s (%s)", cmd.Description, outcome.Elapsed.Round(10*time.Millisecond))
	return nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
