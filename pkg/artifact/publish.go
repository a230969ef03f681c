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

// Package artifact moves build outputs into a prebuilts tree and writes the
// files that describe them.
package artifact

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/fileutil"
	"gitlab.com/tozd/go/errors"
)

// 📦 PublishOptions names the build outputs and where they land
type PublishOptions struct {
	PluginZip      string // archive whose top-level directory is PluginDirName
	SourcesZip     string // optional
	PrebuiltsDir   string
	PluginDirName  string // directory under PrebuiltsDir replaced by the unpacked plugin
	SourcesJarName string // file under PrebuiltsDir receiving SourcesZip
}

// 📊 Published describes what Publish left on disk
type Published struct {
	PluginDir  string
	SourcesJar string
	Files      int
}

// 🚚 Publish replaces the previous plugin directory and sources jar under
// opts.PrebuiltsDir with the new build outputs.
func Publish(ctx context.Context, opts PublishOptions) (*Published, error) {
	logger := zerolog.Ctx(ctx)

	if opts.PluginZip == "" || opts.PrebuiltsDir == "" || opts.PluginDirName == "" {
		return nil, errors.New("plugin zip, prebuilts dir and plugin dir name are required")
	}
	if err := os.MkdirAll(opts.PrebuiltsDir, 0o755); err != nil {
		return nil, errors.Errorf("creating prebuilts dir: %w", err)
	}

	out := &Published{PluginDir: filepath.Join(opts.PrebuiltsDir, opts.PluginDirName)}

	if err := os.RemoveAll(out.PluginDir); err != nil {
		return nil, errors.Errorf("removing old plugin dir %s: %w", out.PluginDir, err)
	}
	if opts.SourcesJarName != "" {
		out.SourcesJar = filepath.Join(opts.PrebuiltsDir, opts.SourcesJarName)
		if err := os.Remove(out.SourcesJar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("removing old sources jar %s: %w", out.SourcesJar, err)
		}
	}

	n, err := Unzip(opts.PluginZip, opts.PrebuiltsDir)
	if err != nil {
		return nil, errors.Errorf("unpacking %s: %w", opts.PluginZip, err)
	}
	out.Files = n
	logger.Info().Str("zip", opts.PluginZip).Str("dir", opts.PrebuiltsDir).Int("files", n).Msg("unpacked plugin")

	if _, err := os.Stat(out.PluginDir); err != nil {
		logger.Warn().Str("dir", out.PluginDir).Msg("plugin archive did not contain the expected top-level directory")
	}

	if opts.SourcesZip != "" && out.SourcesJar != "" {
		if err := fileutil.CopyFile(opts.SourcesZip, out.SourcesJar); err != nil {
			return nil, errors.Errorf("copying sources %s: %w", opts.SourcesZip, err)
		}
		logger.Info().Str("jar", out.SourcesJar).Msg("copied sources")
	}

	return out, nil
}

// 📥 Stage copies each file into dir, keeping base names.
func Stage(ctx context.Context, dir string, files ...string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating stage dir: %w", err)
	}

	staged := make([]string, 0, len(files))
	for _, f := range files {
		dst := filepath.Join(dir, filepath.Base(f))
		if err := fileutil.CopyFile(f, dst); err != nil {
			return staged, errors.Errorf("staging %s: %w", f, err)
		}
		zerolog.Ctx(ctx).Info().Str("file", dst).Msg("staged")
		staged = append(staged, dst)
	}
	return staged, nil
}

// Unzip extracts every entry of the archive into dir and returns the number
// of files written. Entries escaping dir are rejected.
func Unzip(archive, dir string) (int, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, errors.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, errors.Errorf("resolving %s: %w", dir, err)
	}

	count := 0
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return count, errors.Errorf("entry %q escapes %s", f.Name, dir)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, errors.Errorf("creating %s: %w", target, err)
			}
			continue
		}

		if err := extract(f, target); err != nil {
			return count, errors.Errorf("extracting %s: %w", f.Name, err)
		}
		count++
	}
	return count, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return fileutil.EnsureExecutable(target, perm)
}
