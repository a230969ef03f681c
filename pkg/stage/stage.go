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

package stage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/fileutil"
	"github.com/walteh/stagerc/pkg/ignore"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 📈 Progress receives live feedback while files are copied
type Progress interface {
	// Start is called once with the number of files that will be copied
	Start(total int)
	// Copied is called once per copied file, as soon as it lands
	Copied(rel string)
	// Finish is called when copying stops, successfully or not
	Finish()
}

// 🔧 Options configures a synchronization pass
type Options struct {
	Source      string          // tree to mirror
	Destination string          // staging tree, created if missing
	Ignore      *ignore.Matcher // nil ignores nothing
	Jobs        int             // parallel copies, <= 1 means sequential
	Progress    Progress        // optional
}

// 📄 Entry is one file considered by a pass
type Entry struct {
	Rel      string // slash-separated path relative to both roots
	Decision Decision
	Size     int64
}

// 📊 Report summarizes a synchronization pass
type Report struct {
	Considered int
	Copied     int
	Excluded   int
	UpToDate   int
	Elapsed    time.Duration
}

// 🗂️ Plan walks the source tree and decides, without touching the destination,
// what a synchronization pass would do with every file.
func Plan(ctx context.Context, opts Options) ([]Entry, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(opts.Source)
	if err != nil {
		return nil, errors.Errorf("reading source root %s: %w", opts.Source, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("source root %s is not a directory", opts.Source)
	}
	if opts.Destination == "" {
		return nil, errors.New("destination root is required")
	}

	var entries []Entry
	err = filepath.WalkDir(opts.Source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Errorf("walking %s: %w", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(opts.Source, path)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", path, err)
		}
		dstPath := filepath.Join(opts.Destination, rel)

		// patterns describe positions in the destination layout
		ignoreRel, err := filepath.Rel(opts.Destination, dstPath)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", dstPath, err)
		}

		if opts.Ignore.Match(ignoreRel) {
			entries = append(entries, Entry{Rel: filepath.ToSlash(rel), Decision: SkipExcluded})
			return nil
		}

		srcInfo, err := os.Stat(path)
		if err != nil {
			return errors.Errorf("reading %s: %w", path, err)
		}
		if srcInfo.IsDir() {
			// symlinked directory: listed but never descended
			logger.Debug().Str("path", rel).Msg("skipping symlinked directory")
			return nil
		}

		dstInfo, err := os.Stat(dstPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return errors.Errorf("reading %s: %w", dstPath, err)
			}
			dstInfo = nil
		}

		decision := Copy
		if UpToDate(srcInfo, dstInfo) {
			decision = SkipUpToDate
		}
		logger.Trace().Str("path", rel).Stringer("decision", decision).Msg("decided")

		entries = append(entries, Entry{
			Rel:      filepath.ToSlash(rel),
			Decision: decision,
			Size:     srcInfo.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// 🔄 Synchronize mirrors opts.Source into opts.Destination. Excluded files are
// never copied, up-to-date files are left alone, everything else is copied
// with its metadata. The first I/O error aborts the whole pass.
func Synchronize(ctx context.Context, opts Options) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	entries, err := Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{Considered: len(entries)}
	var toCopy []Entry
	for _, e := range entries {
		switch e.Decision {
		case SkipExcluded:
			report.Excluded++
		case SkipUpToDate:
			report.UpToDate++
		case Copy:
			toCopy = append(toCopy, e)
		}
	}

	logger.Debug().
		Str("source", opts.Source).
		Str("destination", opts.Destination).
		Int("considered", report.Considered).
		Int("to_copy", len(toCopy)).
		Msg("synchronizing")

	copied, err := copyAll(ctx, opts, toCopy)
	report.Copied = copied
	report.Elapsed = time.Since(start)
	if err != nil {
		return report, err
	}

	logger.Info().
		Int("considered", report.Considered).
		Int("copied", report.Copied).
		Int("excluded", report.Excluded).
		Int("up_to_date", report.UpToDate).
		Dur("elapsed", report.Elapsed).
		Msg("synchronized")

	return report, nil
}

func copyAll(ctx context.Context, opts Options, entries []Entry) (int, error) {
	if opts.Progress != nil {
		opts.Progress.Start(len(entries))
		defer opts.Progress.Finish()
	}

	var (
		mu     sync.Mutex
		copied int
	)
	done := func(rel string) {
		mu.Lock()
		defer mu.Unlock()
		copied++
		if opts.Progress != nil {
			opts.Progress.Copied(rel)
		}
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := copyOne(opts, e.Rel); err != nil {
				return errors.Errorf("copying %s: %w", e.Rel, err)
			}
			done(e.Rel)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return copied, err
}

func copyOne(opts Options, rel string) error {
	src := filepath.Join(opts.Source, filepath.FromSlash(rel))
	dst := filepath.Join(opts.Destination, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}
	return fileutil.CopyFile(src, dst)
}
