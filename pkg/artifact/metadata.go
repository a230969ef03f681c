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
	"bytes"
	"fmt"

	"github.com/walteh/stagerc/pkg/fileutil"
	"gitlab.com/tozd/go/errors"
)

// LocalBuildID marks artifacts that were built on this machine.
const LocalBuildID = "<local_build>"

// KV is one METADATA line.
type KV struct {
	Key   string
	Value string
}

// 📝 WriteMetadata writes "key: value" lines in the given order.
func WriteMetadata(path string, kvs []KV) error {
	var buf bytes.Buffer
	for _, kv := range kvs {
		if kv.Key == "" {
			return errors.New("metadata key is empty")
		}
		fmt.Fprintf(&buf, "%s: %s\n", kv.Key, kv.Value)
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return errors.Errorf("writing metadata %s: %w", path, err)
	}
	return nil
}
