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

package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/pipeline"
)

// NewBuildCmd creates the build command
func NewBuildCmd(o *opts.RootOpts) *cobra.Command {
	var (
		download   string
		cleanBuild bool
		stageDir   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the plugin and update prebuilts",
		Long: `Build runs the whole pipeline:
1. Mirror the plugin sources into the staging tree
2. Apply the configured rewrites
3. Run every build step
4. Publish the outputs into prebuilts, then write METADATA and the
   IntelliJ library file

With --download the first three steps are replaced by fetching the outputs
of a release. With --stage the outputs are copied to a directory instead of
being published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Pipeline.Execute(cmd.Context(), pipeline.Options{
				Download:   download,
				CleanBuild: cleanBuild,
				StageDir:   stageDir,
				Verbose:    o.Verbose,
			})
		},
	}

	cmd.Flags().StringVar(&download, "download", "", "fetch the outputs of this release tag instead of building")
	cmd.Flags().BoolVar(&cleanBuild, "clean-build", false, "run every step with its clean arguments")
	cmd.Flags().StringVar(&stageDir, "stage", "", "copy the outputs into this directory instead of publishing")

	return cmd
}
