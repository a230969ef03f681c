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

package artifact

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// FindAll returns the sorted paths under dir matching a doublestar pattern.
func FindAll(dir, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Errorf("matching %q in %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return out, nil
}

// FindOne returns the single path under dir matching pattern.
func FindOne(dir, pattern string) (string, error) {
	matches, err := FindAll(dir, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", errors.Errorf("expected exactly one match for %q in %s, found %d", pattern, dir, len(matches))
	}
	return matches[0], nil
}
