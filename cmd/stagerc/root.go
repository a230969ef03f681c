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
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/commands"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/pipeline"
	"github.com/walteh/stagerc/pkg/status"
	"gitlab.com/tozd/go/errors"

	_ "github.com/walteh/stagerc/pkg/remote/github"
)

const skipConfig = "skip-config"

// rootFlags are the flags shared by every command
type rootFlags struct {
	configFile string
	workspace  string
	debug      bool
	verbose    bool
}

// streams are where the command writes; tests replace them
type streams struct {
	console io.Writer // human output
	stdout  io.Writer // child stdout
	stderr  io.Writer // child stderr and structured logs
}

// newRootCmd builds the command tree.
func newRootCmd(s streams) *cobra.Command {
	flags := &rootFlags{}
	o := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "stagerc",
		Short: "Build IDE plugins from a staged copy of their sources",
		Long: `stagerc mirrors a plugin's sources into a staging tree, patches them,
runs the build with an exact environment and publishes the outputs into the
prebuilts tree.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogging(cmd.Context(), s.stderr, flags.debug)
			cmd.SetContext(ctx)

			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			return newRootOpts(ctx, flags, s, o)
		},
	}

	addRootFlags(rootCmd, flags)

	rootCmd.AddCommand(
		commands.NewBuildCmd(o),
		commands.NewSyncCmd(o),
		commands.NewRewriteCmd(o),
		commands.NewRunCmd(o),
		commands.NewStatusCmd(o),
		commands.NewCleanCmd(o),
		newVersionCmd(s.console),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, f *rootFlags) {
	cmd.PersistentFlags().StringVarP(&f.configFile, "config", "c", ".stagerc.hcl", "config file path")
	cmd.PersistentFlags().StringVarP(&f.workspace, "workspace", "w", "", "workspace root (default: directory of the config file)")
	cmd.PersistentFlags().BoolVarP(&f.debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "list unchanged files too")
}

// withLogging attaches a zerolog logger to ctx
func withLogging(ctx context.Context, w io.Writer, debug bool) context.Context {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
	return logger.WithContext(ctx)
}

// newRootOpts loads the config and fills o
func newRootOpts(ctx context.Context, f *rootFlags, s streams, o *opts.RootOpts) error {
	cfg, err := config.Load(ctx, f.configFile, config.HostVars(f.workspace))
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	logger := log.New(s.console, *zerolog.Ctx(ctx)).WithWorkspace(cfg.Workspace)

	p := pipeline.New(cfg, logger)
	p.Stdout = s.stdout
	p.Stderr = s.stderr
	p.Progress = status.NewProgressBar(s.console, "syncing "+cfg.Name)

	o.Pipeline = p
	o.Logger = logger
	o.Verbose = f.verbose
	return nil
}
