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
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// buildInfo is what the binary knows about its own build
type buildInfo struct {
	version  string
	revision string
	built    string
	dirty    bool
}

// readBuildInfo reads the module version and VCS stamp embedded by go build
func readBuildInfo() buildInfo {
	info := buildInfo{version: "dev"}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.revision = s.Value
		case "vcs.time":
			info.built = s.Value
		case "vcs.modified":
			info.dirty = s.Value == "true"
		}
	}
	return info
}

// short renders the version and, when known, the abbreviated revision
func (b buildInfo) short() string {
	if b.revision == "" {
		return b.version
	}
	rev := b.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if b.dirty {
		rev += "-dirty"
	}
	return b.version + " (" + rev + ")"
}

// long renders every known field, one per line
func (b buildInfo) long() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚀 stagerc %s\n", b.short())
	if b.built != "" {
		fmt.Fprintf(&sb, "Built:     %s\n", b.built)
	}
	fmt.Fprintf(&sb, "Go:        %s\n", runtime.Version())
	fmt.Fprintf(&sb, "Platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return sb.String()
}

func newVersionCmd(w io.Writer) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			info := readBuildInfo()
			if short {
				fmt.Fprintln(w, info.short())
				return
			}
			fmt.Fprint(w, info.long())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
