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

package stage_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/stagerc/pkg/ignore"
	"github.com/walteh/stagerc/pkg/stage"
)

// 🧪 recordingProgress captures progress events
type recordingProgress struct {
	mu       sync.Mutex
	total    int
	copied   []string
	started  int
	finished int
}

func (p *recordingProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	p.total = total
}

func (p *recordingProgress) Copied(rel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.copied = append(p.copied, rel)
}

func (p *recordingProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func listFiles(t *testing.T, root string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = info.Size()
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestSynchronize_EndToEnd(t *testing.T) {
	ctx := testContext(t)
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "stage")
	past := time.Now().Add(-time.Hour)

	writeFile(t, filepath.Join(src, "a.txt"), "0123456789", past)
	writeFile(t, filepath.Join(src, "b", "ignored.xml"), "<x/>\n", past)

	progress := &recordingProgress{}
	opts := stage.Options{
		Source:      src,
		Destination: dst,
		Ignore:      ignore.Compile([]string{"b/ignored.xml"}),
		Progress:    progress,
	}

	report, err := stage.Synchronize(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Considered)
	assert.Equal(t, 1, report.Copied)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 0, report.UpToDate)
	assert.Equal(t, map[string]int64{"a.txt": 10}, listFiles(t, dst))

	assert.Equal(t, 1, progress.started)
	assert.Equal(t, 1, progress.total)
	assert.Equal(t, []string{"a.txt"}, progress.copied)
	assert.Equal(t, 1, progress.finished)

	// second pass copies nothing
	report, err = stage.Synchronize(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Copied)
	assert.Equal(t, 1, report.UpToDate)
	assert.Equal(t, 1, report.Excluded)
}

func TestSynchronize_Idempotent(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "stage")
	past := time.Now().Add(-time.Hour)

	for _, rel := range []string{"a.txt", "dir/b.txt", "dir/nested/c.txt", "other/d.bin"} {
		writeFile(t, filepath.Join(src, rel), "content of "+rel, past)
	}

	first, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Copied)

	second, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Copied)
	assert.Equal(t, 4, second.UpToDate)

	entries, err := stage.Plan(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, stage.SkipUpToDate, e.Decision, e.Rel)
	}
}

func TestSynchronize_CopiesChangedSource(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := t.TempDir()
	past := time.Now().Add(-2 * time.Hour)

	writeFile(t, filepath.Join(src, "a.txt"), "one", past)
	_, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)

	// same size, newer source
	writeFile(t, filepath.Join(src, "a.txt"), "two", past.Add(time.Hour))

	report, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Copied)

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestSynchronize_SizeChangeCopiesEvenWhenDestinationNewer(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := t.TempDir()
	past := time.Now().Add(-2 * time.Hour)

	writeFile(t, filepath.Join(src, "a.txt"), "source", past)
	writeFile(t, filepath.Join(dst, "a.txt"), "much longer destination", time.Now())

	report, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Copied)

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "source", string(got))
}

func TestSynchronize_NewerDestinationSameSizeIsUpToDate(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := t.TempDir()
	past := time.Now().Add(-2 * time.Hour)

	writeFile(t, filepath.Join(src, "a.txt"), "abc", past)
	writeFile(t, filepath.Join(dst, "a.txt"), "xyz", past.Add(time.Minute))

	report, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Copied)

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(got), "up-to-date destination must be left untouched")
}

func TestSynchronize_ExclusionPrecedence(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := t.TempDir()
	past := time.Now().Add(-2 * time.Hour)

	// stale counterpart exists, source is newer and a different size
	writeFile(t, filepath.Join(dst, "out", "gen.xml"), "old", past)
	writeFile(t, filepath.Join(src, "out", "gen.xml"), "new and longer", time.Now())
	// no counterpart at all
	writeFile(t, filepath.Join(src, "out", "fresh.xml"), "fresh", time.Now())
	writeFile(t, filepath.Join(src, "keep.xml"), "keep", past)

	report, err := stage.Synchronize(ctx, stage.Options{
		Source:      src,
		Destination: dst,
		Ignore:      ignore.Compile([]string{"out/*"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Excluded)
	assert.Equal(t, 1, report.Copied)

	got, err := os.ReadFile(filepath.Join(dst, "out", "gen.xml"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assert.NoFileExists(t, filepath.Join(dst, "out", "fresh.xml"))
	assert.FileExists(t, filepath.Join(dst, "keep.xml"))
}

func TestSynchronize_PresenceMatchesIgnoreRules(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "nested", "stage")
	past := time.Now().Add(-time.Hour)

	files := []string{
		"README.md",
		"lib/a.jar",
		"lib/b.jar",
		"lib/src/a-sources.jar",
		"deps/kotlin/xmltestdata/test.xml",
		"deps/kotlin/other/test.xml",
		"build/tmp/x.class",
	}
	for _, rel := range files {
		writeFile(t, filepath.Join(src, rel), rel, past)
	}

	m := ignore.Compile([]string{"deps/kotlin/xmltestdata/test.xml", "build/*", "lib/src/*"})

	_, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst, Ignore: m, Jobs: 4})
	require.NoError(t, err)

	got := listFiles(t, dst)
	var present []string
	for rel := range got {
		present = append(present, rel)
	}
	sort.Strings(present)

	for _, rel := range files {
		_, ok := got[rel]
		assert.Equal(t, !m.Match(rel), ok, rel)
	}
	assert.Equal(t, []string{"README.md", "deps/kotlin/other/test.xml", "lib/a.jar", "lib/b.jar"}, present)
}

func TestSynchronize_ParallelMatchesSequential(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	past := time.Now().Add(-time.Hour)
	for i := 0; i < 50; i++ {
		writeFile(t, filepath.Join(src, "d", string(rune('a'+i%26)), time.Duration(i).String()+".txt"), "x", past)
	}

	seqDst := t.TempDir()
	parDst := t.TempDir()

	progress := &recordingProgress{}
	seq, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: seqDst})
	require.NoError(t, err)
	par, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: parDst, Jobs: 8, Progress: progress})
	require.NoError(t, err)

	assert.Equal(t, seq.Copied, par.Copied)
	assert.Equal(t, listFiles(t, seqDst), listFiles(t, parDst))
	assert.Len(t, progress.copied, par.Copied)
}

func TestSynchronize_PreservesExecutableBit(t *testing.T) {
	ctx := testContext(t)
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "gradlew"), "#!/bin/sh\n", time.Now().Add(-time.Hour))
	require.NoError(t, os.Chmod(filepath.Join(src, "gradlew"), 0o755))

	_, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: dst})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "gradlew"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
}

func TestSynchronize_Errors(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T) stage.Options
		errContains string
	}{
		{
			name: "missing_source",
			setup: func(t *testing.T) stage.Options {
				return stage.Options{Source: filepath.Join(t.TempDir(), "missing"), Destination: t.TempDir()}
			},
			errContains: "reading source root",
		},
		{
			name: "source_is_file",
			setup: func(t *testing.T) stage.Options {
				path := filepath.Join(t.TempDir(), "file")
				writeFile(t, path, "x", time.Now())
				return stage.Options{Source: path, Destination: t.TempDir()}
			},
			errContains: "is not a directory",
		},
		{
			name: "missing_destination",
			setup: func(t *testing.T) stage.Options {
				return stage.Options{Source: t.TempDir()}
			},
			errContains: "destination root is required",
		},
		{
			name: "destination_parent_is_file",
			setup: func(t *testing.T) stage.Options {
				src := t.TempDir()
				dst := t.TempDir()
				writeFile(t, filepath.Join(src, "dir", "a.txt"), "x", time.Now())
				writeFile(t, filepath.Join(dst, "dir"), "i am a file", time.Now())
				return stage.Options{Source: src, Destination: dst}
			},
			errContains: "dir/a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stage.Synchronize(testContext(t), tt.setup(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestSynchronize_CancelledContext(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "x", time.Now())

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	_, err := stage.Synchronize(ctx, stage.Options{Source: src, Destination: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "copy", stage.Copy.String())
	assert.Equal(t, "excluded", stage.SkipExcluded.String())
	assert.Equal(t, "up-to-date", stage.SkipUpToDate.String())
	assert.Equal(t, "unknown", stage.Decision(42).String())
}
