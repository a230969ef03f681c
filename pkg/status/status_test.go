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

package status

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/rewrite"
	"github.com/walteh/stagerc/pkg/stage"
)

func TestFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry stage.Entry
		want  log.FileOperation
	}{
		{
			name:  "copy",
			entry: stage.Entry{Rel: "a/b.kt", Decision: stage.Copy},
			want:  log.FileOperation{Path: "a/b.kt", Kind: "sync", Status: "COPY", IsNew: true},
		},
		{
			name:  "excluded",
			entry: stage.Entry{Rel: "build/x", Decision: stage.SkipExcluded},
			want:  log.FileOperation{Path: "build/x", Kind: "sync", Status: "EXCLUDED", IsSkipped: true},
		},
		{
			name:  "up_to_date",
			entry: stage.Entry{Rel: "README.md", Decision: stage.SkipUpToDate},
			want:  log.FileOperation{Path: "README.md", Kind: "sync", Status: "UP-TO-DATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromEntry(tt.entry))
		})
	}
}

func TestFromRewrite(t *testing.T) {
	tests := []struct {
		name   string
		result rewrite.FileResult
		want   log.FileOperation
	}{
		{
			name:   "modified",
			result: rewrite.FileResult{Rel: "plugin.xml", Result: rewrite.Modified, Replacements: 2},
			want:   log.FileOperation{Path: "plugin.xml", Kind: "rewrite", Status: "MODIFIED", IsModified: true, Replacements: 2},
		},
		{
			name:   "unchanged",
			result: rewrite.FileResult{Rel: "other.xml", Result: rewrite.Unchanged},
			want:   log.FileOperation{Path: "other.xml", Kind: "rewrite", Status: "UNCHANGED"},
		},
		{
			name:   "excluded",
			result: rewrite.FileResult{Rel: "gen/x.xml", Result: rewrite.SkipExcluded},
			want:   log.FileOperation{Path: "gen/x.xml", Kind: "rewrite", Status: "EXCLUDED", IsSkipped: true},
		},
		{
			name:   "undecodable",
			result: rewrite.FileResult{Rel: "icon.xml", Result: rewrite.SkipUndecodable},
			want:   log.FileOperation{Path: "icon.xml", Kind: "rewrite", Status: "UNDECODABLE", IsFailed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromRewrite(tt.result))
		})
	}
}

func TestLogPlan(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	entries := []stage.Entry{
		{Rel: "new.kt", Decision: stage.Copy},
		{Rel: "same.kt", Decision: stage.SkipUpToDate},
		{Rel: "out/x", Decision: stage.SkipExcluded},
	}

	tests := []struct {
		name    string
		verbose bool
		want    []string
	}{
		{name: "quiet", verbose: false, want: []string{"new.kt", "out/x"}},
		{name: "verbose", verbose: true, want: []string{"new.kt", "same.kt", "out/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := log.New(buf, zerolog.Nop())
			LogPlan(context.Background(), logger, entries, tt.verbose)

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, strings.Fields(lines[i])[1])
			}
		})
	}
}

func TestLogRewrites(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	reports := []*rewrite.Report{
		{Files: []rewrite.FileResult{
			{Rel: "a.xml", Result: rewrite.Modified, Replacements: 1},
			{Rel: "b.xml", Result: rewrite.Unchanged},
		}},
		{Files: []rewrite.FileResult{
			{Rel: "c.xml", Result: rewrite.SkipUndecodable},
		}},
	}

	buf := &bytes.Buffer{}
	LogRewrites(context.Background(), log.New(buf, zerolog.Nop()), reports, false)

	out := buf.String()
	assert.Contains(t, out, "a.xml")
	assert.NotContains(t, out, "b.xml")
	assert.Contains(t, out, "c.xml")
}

func TestSummaries(t *testing.T) {
	copyCount, excluded, upToDate := PlanCounts([]stage.Entry{
		{Decision: stage.Copy},
		{Decision: stage.Copy},
		{Decision: stage.SkipExcluded},
		{Decision: stage.SkipUpToDate},
	})
	assert.Equal(t, 2, copyCount)
	assert.Equal(t, 1, excluded)
	assert.Equal(t, 1, upToDate)

	assert.Equal(t,
		"10 files considered, 3 copied, 5 up to date, 2 excluded in 1.5s",
		SyncSummary(&stage.Report{Considered: 10, Copied: 3, UpToDate: 5, Excluded: 2, Elapsed: 1500 * time.Millisecond}))

	assert.Equal(t,
		"2 rules applied, 1 files modified, 3 replacements, 1 undecodable",
		RewriteSummary([]*rewrite.Report{
			{Files: []rewrite.FileResult{{Result: rewrite.Modified, Replacements: 3}, {Result: rewrite.Unchanged}}},
			{Files: []rewrite.FileResult{{Result: rewrite.SkipUndecodable}}},
		}))
}

func TestPrintReports(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	buf := &bytes.Buffer{}
	PrintSyncReport(buf, &stage.Report{Considered: 1, Copied: 1})
	PrintRewriteReport(buf, nil)

	assert.Contains(t, buf.String(), "1 files considered, 1 copied")
	assert.Contains(t, buf.String(), "0 rules applied")
}

func TestProgressBar(t *testing.T) {
	bar := NewProgressBar(io.Discard, "staging")

	bar.Start(3)
	bar.Copied("a")
	bar.Copied("b")
	bar.Copied("c")
	bar.Finish()

	total, copied := bar.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, copied)
	assert.Equal(t, "c", bar.Last())

	// nothing to copy never starts a bar
	empty := NewProgressBar(io.Discard, "staging")
	empty.Start(0)
	empty.Finish()
	total, copied = empty.Counts()
	assert.Zero(t, total)
	assert.Zero(t, copied)
}
