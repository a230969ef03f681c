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

// Package fileutil holds the filesystem primitives shared by staging and rewriting.
package fileutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

const execBits fs.FileMode = 0o111

// 💾 WriteFileAtomic writes content to a temp file next to path and renames it into place
func WriteFileAtomic(path string, content []byte, perm fs.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

// 📋 CopyFile copies src to dst byte-for-byte, then carries over the
// permission bits and modification time of src. Parent directories of dst
// must already exist.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Errorf("reading source metadata: %w", err)
	}

	err = writeAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Errorf("setting modification time: %w", err)
	}

	// the rename above does not always keep exec bits on every filesystem
	if err := EnsureExecutable(dst, info.Mode()); err != nil {
		return err
	}

	return nil
}

// EnsureExecutable re-applies the executable bits of srcMode to path.
func EnsureExecutable(path string, srcMode fs.FileMode) error {
	if srcMode&execBits == 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Errorf("reading destination metadata: %w", err)
	}
	want := info.Mode().Perm() | (srcMode.Perm() & execBits)
	if want == info.Mode().Perm() {
		return nil
	}
	if err := os.Chmod(path, want); err != nil {
		return errors.Errorf("setting executable bit: %w", err)
	}
	return nil
}

// IsExecutable reports whether any executable bit is set.
func IsExecutable(mode fs.FileMode) bool {
	return mode&execBits != 0
}

func writeAtomic(path string, perm fs.FileMode, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := fill(tmp); err != nil {
		cleanup()
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return errors.Errorf("setting permissions on temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}
