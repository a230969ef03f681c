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
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/fileutil"
	"gitlab.com/tozd/go/errors"
)

// ProjectDirMacro is how IntelliJ spells the project root in library files.
const ProjectDirMacro = "$PROJECT_DIR$"

// 📚 LibraryOptions describes one project library file
type LibraryOptions struct {
	Name        string   // library name, e.g. "studio-plugin-rust"
	ProjectDir  string   // IntelliJ project root
	JarDir      string   // directory searched for class jars
	JarPattern  string   // doublestar pattern under JarDir, default "*.jar"
	Exclude     []string // jar base names left out of CLASSES
	SourceRoots []string // jars/zips become jar:// roots, anything else file://
	Output      string   // default <ProjectDir>/.idea/libraries/<name>.xml
}

type libraryTable struct {
	XMLName xml.Name `xml:"component"`
	Name    string   `xml:"name,attr"`
	Library library  `xml:"library"`
}

type library struct {
	Name    string   `xml:"name,attr"`
	Classes rootList `xml:"CLASSES"`
	Javadoc rootList `xml:"JAVADOC"`
	Sources rootList `xml:"SOURCES"`
}

type rootList struct {
	Roots []root `xml:"root"`
}

type root struct {
	URL string `xml:"url,attr"`
}

// DefaultLibraryFile returns where IntelliJ expects the named library.
func DefaultLibraryFile(projectDir, name string) string {
	file := strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name) + ".xml"
	return filepath.Join(projectDir, ".idea", "libraries", file)
}

// 🏗️ WriteLibraryXML writes the library table file and returns its path.
func WriteLibraryXML(ctx context.Context, opts LibraryOptions) (string, error) {
	if opts.Name == "" || opts.ProjectDir == "" || opts.JarDir == "" {
		return "", errors.New("library name, project dir and jar dir are required")
	}

	pattern := opts.JarPattern
	if pattern == "" {
		pattern = "*.jar"
	}
	jars, err := FindAll(opts.JarDir, pattern)
	if err != nil {
		return "", err
	}

	table := libraryTable{Name: "libraryTable", Library: library{Name: opts.Name}}
	for _, jar := range jars {
		if slices.Contains(opts.Exclude, filepath.Base(jar)) {
			continue
		}
		url, err := rootURL(opts.ProjectDir, jar)
		if err != nil {
			return "", err
		}
		table.Library.Classes.Roots = append(table.Library.Classes.Roots, root{URL: url})
	}
	for _, src := range opts.SourceRoots {
		url, err := rootURL(opts.ProjectDir, src)
		if err != nil {
			return "", err
		}
		table.Library.Sources.Roots = append(table.Library.Sources.Roots, root{URL: url})
	}

	content, err := xml.MarshalIndent(table, "", "  ")
	if err != nil {
		return "", errors.Errorf("encoding library %s: %w", opts.Name, err)
	}

	out := opts.Output
	if out == "" {
		out = DefaultLibraryFile(opts.ProjectDir, opts.Name)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", errors.Errorf("creating library dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(out, content, 0o644); err != nil {
		return "", errors.Errorf("writing library %s: %w", out, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("library", opts.Name).
		Str("file", out).
		Int("classes", len(table.Library.Classes.Roots)).
		Int("sources", len(table.Library.Sources.Roots)).
		Msg("wrote library")

	return out, nil
}

// rootURL renders path relative to projectDir as an IntelliJ root url.
func rootURL(projectDir, path string) (string, error) {
	rel, err := filepath.Rel(projectDir, path)
	if err != nil {
		return "", errors.Errorf("relativizing %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		return "jar://" + ProjectDirMacro + "/" + rel + "!/", nil
	default:
		return "file://" + ProjectDirMacro + "/" + strings.TrimSuffix(rel, "/") + "/", nil
	}
}
