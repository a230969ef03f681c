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
)

// NewRewriteCmd creates the rewrite command
func NewRewriteCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite",
		Short: "Apply the configured rewrites to the staging tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := o.Pipeline.Rewrite(cmd.Context(), o.Verbose)
			return err
		},
	}
}
