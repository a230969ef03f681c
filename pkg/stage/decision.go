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

import "os"

// 📊 Decision is what a synchronization pass does with one source file
type Decision int

const (
	Copy         Decision = iota // destination missing or stale
	SkipExcluded                 // matched by the ignore rule set
	SkipUpToDate                 // same size and destination not older
)

// String returns a string representation of Decision
func (d Decision) String() string {
	switch d {
	case Copy:
		return "copy"
	case SkipExcluded:
		return "excluded"
	case SkipUpToDate:
		return "up-to-date"
	default:
		return "unknown"
	}
}

// UpToDate reports whether dst exists with the size of src and a
// modification time that is not older than src's.
func UpToDate(src, dst os.FileInfo) bool {
	if dst == nil || !dst.Mode().IsRegular() {
		return false
	}
	if dst.Size() != src.Size() {
		return false
	}
	return !dst.ModTime().Before(src.ModTime())
}
