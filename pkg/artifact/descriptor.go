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
	"encoding/xml"
	"io"

	"github.com/klauspost/compress/zip"
	"gitlab.com/tozd/go/errors"
)

// PluginXMLPath is where a plugin jar keeps its descriptor.
const PluginXMLPath = "META-INF/plugin.xml"

// ErrMissingIdeaVersion is returned for descriptors without an idea-version element.
var ErrMissingIdeaVersion = errors.Base("plugin descriptor has no idea-version")

// 🔌 PluginDescriptor is the subset of plugin.xml written to METADATA
type PluginDescriptor struct {
	XMLName     xml.Name     `xml:"idea-plugin"`
	ID          string       `xml:"id"`
	Name        string       `xml:"name"`
	Version     string       `xml:"version"`
	IdeaVersion *IdeaVersion `xml:"idea-version"`
}

// IdeaVersion is the platform compatibility range of a plugin.
type IdeaVersion struct {
	SinceBuild string `xml:"since-build,attr"`
	UntilBuild string `xml:"until-build,attr"`
}

// Platform returns the since-build of the descriptor.
func (d *PluginDescriptor) Platform() string {
	if d.IdeaVersion == nil {
		return ""
	}
	return d.IdeaVersion.SinceBuild
}

// ReadPluginDescriptor reads META-INF/plugin.xml out of a plugin jar.
func ReadPluginDescriptor(jar string) (*PluginDescriptor, error) {
	r, err := zip.OpenReader(jar)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", jar, err)
	}
	defer r.Close()

	f, err := r.Open(PluginXMLPath)
	if err != nil {
		return nil, errors.Errorf("reading %s from %s: %w", PluginXMLPath, jar, err)
	}
	defer f.Close()

	desc, err := ParsePluginDescriptor(f)
	if err != nil {
		return nil, errors.Errorf("%s: %w", jar, err)
	}
	return desc, nil
}

// ParsePluginDescriptor decodes a plugin.xml document.
func ParsePluginDescriptor(r io.Reader) (*PluginDescriptor, error) {
	var desc PluginDescriptor
	if err := xml.NewDecoder(r).Decode(&desc); err != nil {
		return nil, errors.Errorf("decoding plugin descriptor: %w", err)
	}
	if desc.IdeaVersion == nil {
		return nil, ErrMissingIdeaVersion
	}
	return &desc, nil
}
