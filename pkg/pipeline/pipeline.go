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
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/ignore"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/rewrite"
	"github.com/walteh/stagerc/pkg/stage"
	"github.com/walteh/stagerc/pkg/status"
	"github.com/walteh/stagerc/pkg/supervise"
	"gitlab.com/tozd/go/errors"
)

// Runner starts a supervised command. supervise.Run is the default.
type Runner func(ctx context.Context, cmd supervise.Command, stdout, stderr io.Writer) (*supervise.Outcome, error)

// 🔧 Options are the per-invocation switches
type Options struct {
	Download   string // release tag; skips sync, rewrite and build
	CleanBuild bool   // run each step with its clean_args
	StageDir   string // copy outputs here instead of publishing
	Verbose    bool   // list unchanged files too
}

// 🏭 Pipeline runs the phases of one config
type Pipeline struct {
	cfg    *config.Config
	logger *log.Logger

	// Stdout and Stderr receive the live output of build steps
	Stdout io.Writer
	Stderr io.Writer
	// Progress receives copy progress during sync, may be nil
	Progress stage.Progress
	// Run starts build steps
	Run Runner
}

// 🏗️ New creates a pipeline for cfg
func New(cfg *config.Config, logger *log.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Run:    supervise.Run,
	}
}

// Config returns the loaded configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// 🏃 Execute runs the whole pipeline.
func (p *Pipeline) Execute(ctx context.Context, opts Options) error {
	p.logger.Header("building " + p.cfg.Name)

	var (
		outs *Outputs
		err  error
	)
	if opts.Download != "" {
		var cleanup func()
		outs, cleanup, err = p.Download(ctx, opts.Download)
		if err != nil {
			return err
		}
		defer cleanup()
	} else {
		if p.cfg.Sync != nil {
			if _, err := p.Sync(ctx); err != nil {
				return err
			}
		}
		if len(p.cfg.Rewrites) > 0 {
			if _, err := p.Rewrite(ctx, opts.Verbose); err != nil {
				return err
			}
		}
		if err := p.Build(ctx, opts.CleanBuild); err != nil {
			return err
		}
		if p.cfg.Outputs == nil {
			p.logger.Success("done")
			return nil
		}
		if outs, err = p.Gather(ctx); err != nil {
			return err
		}
	}

	if err := p.Deliver(ctx, outs, opts); err != nil {
		return err
	}

	p.logger.Success("done")
	return nil
}

// 🧩 Matcher builds the ignore rule set from the ignore file and the inline
// patterns of the sync block.
func (p *Pipeline) Matcher(ctx context.Context) (*ignore.Matcher, error) {
	s := p.cfg.Sync
	if s == nil {
		return nil, nil
	}

	var patterns []string
	if s.IgnoreFile != "" {
		m, err := ignore.Load(ctx, s.IgnoreFile)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, m.Patterns()...)
	}
	patterns = append(patterns, s.Ignore...)
	return ignore.Compile(patterns), nil
}

func (p *Pipeline) stageOptions(ctx context.Context) (stage.Options, error) {
	if p.cfg.Sync == nil {
		return stage.Options{}, errors.New("config has no sync block")
	}
	m, err := p.Matcher(ctx)
	if err != nil {
		return stage.Options{}, err
	}
	return stage.Options{
		Source:      p.cfg.Sync.Source,
		Destination: p.cfg.Sync.Destination,
		Ignore:      m,
		Jobs:        p.cfg.Sync.Jobs,
		Progress:    p.Progress,
	}, nil
}

// 🔄 Sync mirrors the source tree into the staging tree.
func (p *Pipeline) Sync(ctx context.Context) (*stage.Report, error) {
	opts, err := p.stageOptions(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "sync", Detail: p.logger.Rel(opts.Source), Target: opts.Destination})
	defer p.logger.EndPhase(ctx)

	report, err := stage.Synchronize(ctx, opts)
	if err != nil {
		return report, errors.Errorf("synchronizing %s: %w", opts.Source, err)
	}
	status.PrintSyncReport(p.logger.Console(), report)
	return report, nil
}

// 🗂️ Plan reports what Sync would do without copying anything.
func (p *Pipeline) Plan(ctx context.Context, verbose bool) ([]stage.Entry, error) {
	opts, err := p.stageOptions(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := stage.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "status", Detail: p.logger.Rel(opts.Source), Target: opts.Destination})
	defer p.logger.EndPhase(ctx)

	status.LogPlan(ctx, p.logger, entries, verbose)
	copyCount, excluded, upToDate := status.PlanCounts(entries)
	p.logger.Infof("%d to copy, %d up to date, %d excluded", copyCount, upToDate, excluded)
	return entries, nil
}

// RewriteRoot is the tree rewrites apply to: the staging tree when there is
// one, otherwise the workspace.
func (p *Pipeline) RewriteRoot() string {
	if p.cfg.Sync != nil {
		return p.cfg.Sync.Destination
	}
	return p.cfg.Workspace
}

// Rules converts the configured rewrites.
func (p *Pipeline) Rules() []rewrite.Rule {
	rules := make([]rewrite.Rule, 0, len(p.cfg.Rewrites))
	for _, r := range p.cfg.Rewrites {
		rules = append(rules, rewrite.Rule{
			Search:  r.Search,
			Replace: r.Replace,
			Filter:  r.Filter,
			Dir:     r.Dir,
			Literal: r.Literal,
		})
	}
	return rules
}

// ✏️ Rewrite applies every configured rewrite to the staging tree.
func (p *Pipeline) Rewrite(ctx context.Context, verbose bool) ([]*rewrite.Report, error) {
	m, err := p.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	root := p.RewriteRoot()

	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "rewrite", Detail: pluralize(len(p.cfg.Rewrites), "rule"), Target: root})
	defer p.logger.EndPhase(ctx)

	reports, err := rewrite.ApplyRules(ctx, root, p.Rules(), m)
	status.LogRewrites(ctx, p.logger, reports, verbose)
	if err != nil {
		return reports, err
	}
	status.PrintRewriteReport(p.logger.Console(), reports)
	return reports, nil
}

// 🧹 Clean removes the staging tree.
func (p *Pipeline) Clean(ctx context.Context) error {
	if p.cfg.Sync == nil {
		return errors.New("config has no sync block")
	}
	dst := p.cfg.Sync.Destination
	if dst == p.cfg.Workspace || dst == p.cfg.Sync.Source {
		return errors.Errorf("refusing to remove %s", dst)
	}

	zerolog.Ctx(ctx).Debug().Str("dir", dst).Msg("removing staging tree")
	if err := os.RemoveAll(dst); err != nil {
		return errors.Errorf("removing staging tree %s: %w", dst, err)
	}
	p.logger.RelevantFile("Removed", dst)
	return nil
}
