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

package rewrite

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/fileutil"
	"github.com/walteh/stagerc/pkg/ignore"
	"gitlab.com/tozd/go/errors"
)

// 📊 Result is what the rewrite pass did with one file
type Result int

const (
	Unchanged       Result = iota // decoded, pattern absent
	Modified                      // pattern found and file written back
	SkipExcluded                  // matched the ignore rule set, never opened
	SkipUndecodable               // unreadable or not valid text
)

// String returns a string representation of Result
func (r Result) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case SkipExcluded:
		return "excluded"
	case SkipUndecodable:
		return "undecodable"
	default:
		return "unknown"
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// 🔧 Options configures one rewrite pass
type Options struct {
	Root        string          // tree to rewrite in place
	Search      *regexp.Regexp  // all non-overlapping matches are replaced
	Replacement string          // supports $1 / ${name} expansion
	Filter      string          // base name glob (e.g. "*.xml") or bare suffix (".xml")
	Ignore      *ignore.Matcher // matched against paths relative to Root

	// LiteralReplacement inserts Replacement verbatim, with no $ expansion
	LiteralReplacement bool
}

// 📄 FileResult is the outcome for one eligible file
type FileResult struct {
	Rel          string
	Result       Result
	Replacements int
	Err          error // why a file was skipped as undecodable
}

// 📊 Report lists the outcome of every eligible file
type Report struct {
	Files []FileResult
}

// Modified returns the files that were written back.
func (r *Report) Modified() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Result == Modified {
			out = append(out, f)
		}
	}
	return out
}

// Count returns how many files ended with the given result.
func (r *Report) Count(result Result) int {
	n := 0
	for _, f := range r.Files {
		if f.Result == result {
			n++
		}
	}
	return n
}

// 🔄 RewriteAll applies the substitution to every file under opts.Root whose
// name passes opts.Filter. Undecodable files are logged and skipped; a write
// failure aborts the pass.
func RewriteAll(ctx context.Context, opts Options) (*Report, error) {
	logger := zerolog.Ctx(ctx)

	if opts.Search == nil {
		return nil, errors.New("search pattern is required")
	}
	if err := ValidateFilter(opts.Filter); err != nil {
		return nil, err
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, errors.Errorf("reading rewrite root %s: %w", opts.Root, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("rewrite root %s is not a directory", opts.Root)
	}

	report := &Report{}
	err = filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Errorf("walking %s: %w", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !matchFilter(opts.Filter, d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(opts.Root, path)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if opts.Ignore.Match(rel) {
			report.Files = append(report.Files, FileResult{Rel: rel, Result: SkipExcluded})
			return nil
		}

		fr, err := rewriteFile(path, rel, opts)
		if err != nil {
			return err
		}

		switch fr.Result {
		case SkipUndecodable:
			logger.Warn().Str("path", rel).Err(fr.Err).Msg("skipping file that cannot be decoded as text")
		case Modified:
			logger.Info().Str("path", rel).Int("replacements", fr.Replacements).Msg("rewrote file")
		default:
			logger.Trace().Str("path", rel).Stringer("result", fr.Result).Msg("rewrite checked")
		}

		report.Files = append(report.Files, fr)
		return nil
	})
	if err != nil {
		return report, err
	}

	logger.Debug().
		Str("root", opts.Root).
		Str("search", opts.Search.String()).
		Int("modified", report.Count(Modified)).
		Int("undecodable", report.Count(SkipUndecodable)).
		Msg("rewrite pass complete")

	return report, nil
}

func rewriteFile(path, rel string, opts Options) (FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Rel: rel, Result: SkipUndecodable, Err: errors.Errorf("reading: %w", err)}, nil
	}

	text, bom := bytes.CutPrefix(content, utf8BOM)
	if !utf8.Valid(text) {
		return FileResult{Rel: rel, Result: SkipUndecodable, Err: errors.New("invalid UTF-8")}, nil
	}

	matches := opts.Search.FindAllIndex(text, -1)
	if len(matches) == 0 {
		return FileResult{Rel: rel, Result: Unchanged}, nil
	}

	var replaced []byte
	if opts.LiteralReplacement {
		replaced = opts.Search.ReplaceAllLiteral(text, []byte(opts.Replacement))
	} else {
		replaced = opts.Search.ReplaceAll(text, []byte(opts.Replacement))
	}
	if bytes.Equal(replaced, text) {
		return FileResult{Rel: rel, Result: Unchanged}, nil
	}
	if bom {
		replaced = append(append([]byte{}, utf8BOM...), replaced...)
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{}, errors.Errorf("reading metadata of %s: %w", rel, err)
	}
	if err := fileutil.WriteFileAtomic(path, replaced, info.Mode().Perm()); err != nil {
		return FileResult{}, errors.Errorf("writing %s: %w", rel, err)
	}

	return FileResult{Rel: rel, Result: Modified, Replacements: len(matches)}, nil
}

// ValidateFilter checks that a filter is a usable glob.
func ValidateFilter(filter string) error {
	if filter == "" || isSuffixFilter(filter) {
		return nil
	}
	if !doublestar.ValidatePattern(filter) {
		return errors.Errorf("invalid file filter %q", filter)
	}
	return nil
}

func matchFilter(filter, name string) bool {
	if filter == "" {
		return true
	}
	if isSuffixFilter(filter) {
		return strings.HasSuffix(name, filter)
	}
	ok, err := doublestar.Match(filter, name)
	return err == nil && ok
}

func isSuffixFilter(filter string) bool {
	return strings.HasPrefix(filter, ".") && !strings.ContainsAny(filter, `*?[{\`)
}
