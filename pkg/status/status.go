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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/rewrite"
	"github.com/walteh/stagerc/pkg/stage"
)

// 🔄 FromEntry describes a staging decision as a file operation
func FromEntry(e stage.Entry) log.FileOperation {
	op := log.FileOperation{Path: e.Rel, Kind: "sync"}
	switch e.Decision {
	case stage.Copy:
		op.Status = "COPY"
		op.IsNew = true
	case stage.SkipExcluded:
		op.Status = "EXCLUDED"
		op.IsSkipped = true
	case stage.SkipUpToDate:
		op.Status = "UP-TO-DATE"
	default:
		op.Status = "UNKNOWN"
	}
	return op
}

// 🔄 FromRewrite describes a rewrite result as a file operation
func FromRewrite(f rewrite.FileResult) log.FileOperation {
	op := log.FileOperation{Path: f.Rel, Kind: "rewrite", Replacements: f.Replacements}
	switch f.Result {
	case rewrite.Modified:
		op.Status = "MODIFIED"
		op.IsModified = true
	case rewrite.SkipExcluded:
		op.Status = "EXCLUDED"
		op.IsSkipped = true
	case rewrite.SkipUndecodable:
		op.Status = "UNDECODABLE"
		op.IsFailed = true
	default:
		op.Status = "UNCHANGED"
	}
	return op
}

// 📝 LogPlan prints the planned decision for every entry. Up-to-date files
// are only listed when verbose is set.
func LogPlan(ctx context.Context, logger *log.Logger, entries []stage.Entry, verbose bool) {
	for _, e := range entries {
		if e.Decision == stage.SkipUpToDate && !verbose {
			continue
		}
		logger.LogFileOperation(ctx, FromEntry(e))
	}
}

// 📝 LogRewrites prints the rewritten files of every report. Unchanged files
// are only listed when verbose is set.
func LogRewrites(ctx context.Context, logger *log.Logger, reports []*rewrite.Report, verbose bool) {
	for _, r := range reports {
		for _, f := range r.Files {
			if f.Result == rewrite.Unchanged && !verbose {
				continue
			}
			logger.LogFileOperation(ctx, FromRewrite(f))
		}
	}
}

// PlanCounts tallies entries by decision.
func PlanCounts(entries []stage.Entry) (copyCount, excluded, upToDate int) {
	for _, e := range entries {
		switch e.Decision {
		case stage.Copy:
			copyCount++
		case stage.SkipExcluded:
			excluded++
		case stage.SkipUpToDate:
			upToDate++
		}
	}
	return copyCount, excluded, upToDate
}

// 📊 SyncSummary renders a one-line synchronization summary
func SyncSummary(r *stage.Report) string {
	return fmt.Sprintf("%d files considered, %d copied, %d up to date, %d excluded in %s",
		r.Considered, r.Copied, r.UpToDate, r.Excluded, r.Elapsed.Round(time.Millisecond))
}

// 📊 RewriteSummary renders a one-line rewrite summary
func RewriteSummary(reports []*rewrite.Report) string {
	var modified, undecodable, replacements int
	for _, r := range reports {
		modified += r.Count(rewrite.Modified)
		undecodable += r.Count(rewrite.SkipUndecodable)
		for _, f := range r.Modified() {
			replacements += f.Replacements
		}
	}
	return fmt.Sprintf("%d rules applied, %d files modified, %d replacements, %d undecodable",
		len(reports), modified, replacements, undecodable)
}

// 📢 PrintSyncReport prints the synchronization summary
func PrintSyncReport(w io.Writer, r *stage.Report) {
	pterm.Success.WithPrefix(pterm.Prefix{Text: "📦", Style: pterm.Success.Prefix.Style}).
		WithWriter(w).
		Println(SyncSummary(r))
}

// 📢 PrintRewriteReport prints the rewrite summary
func PrintRewriteReport(w io.Writer, reports []*rewrite.Report) {
	pterm.Info.WithPrefix(pterm.Prefix{Text: "🔄", Style: pterm.Info.Prefix.Style}).
		WithWriter(w).
		Println(RewriteSummary(reports))
}
