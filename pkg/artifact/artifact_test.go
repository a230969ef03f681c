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
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustPluginXML = `<idea-plugin>
  <id>org.rust.lang</id>
  <name>Rust</name>
  <version>0.4.200</version>
  <idea-version since-build="232.8660" until-build="232.*"/>
</idea-plugin>`

type zipEntry struct {
	name    string
	content string
	mode    os.FileMode
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func writeZip(t *testing.T, path string, entries ...zipEntry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		hdr.SetMode(mode)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestPublish(t *testing.T) {
	ctx := testContext(t)
	tmp := t.TempDir()

	jar := filepath.Join(tmp, "plugin.jar")
	writeZip(t, jar, zipEntry{name: PluginXMLPath, content: rustPluginXML})
	jarBytes, err := os.ReadFile(jar)
	require.NoError(t, err)

	pluginZip := filepath.Join(tmp, "build", "intellij-rust-0.4.200.zip")
	writeZip(t, pluginZip,
		zipEntry{name: "intellij-rust/", mode: os.ModeDir | 0o755},
		zipEntry{name: "intellij-rust/lib/intellij-rust-0.4.200.jar", content: string(jarBytes)},
		zipEntry{name: "intellij-rust/bin/native-helper", content: "#!/bin/sh\n", mode: 0o755},
	)
	sourcesZip := filepath.Join(tmp, "build", "rust-plugin-sources.zip")
	require.NoError(t, os.WriteFile(sourcesZip, []byte("sources"), 0o644))

	prebuilts := filepath.Join(tmp, "prebuilts")
	stale := filepath.Join(prebuilts, "intellij-rust", "lib", "intellij-rust-0.3.0.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(prebuilts, "rust-plugin-sources.jar"), []byte("old"), 0o644))

	published, err := Publish(ctx, PublishOptions{
		PluginZip:      pluginZip,
		SourcesZip:     sourcesZip,
		PrebuiltsDir:   prebuilts,
		PluginDirName:  "intellij-rust",
		SourcesJarName: "rust-plugin-sources.jar",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, published.Files)
	assert.Equal(t, filepath.Join(prebuilts, "intellij-rust"), published.PluginDir)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(prebuilts, "intellij-rust", "lib", "intellij-rust-0.4.200.jar"))

	info, err := os.Stat(filepath.Join(prebuilts, "intellij-rust", "bin", "native-helper"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	got, err := os.ReadFile(published.SourcesJar)
	require.NoError(t, err)
	assert.Equal(t, "sources", string(got))

	desc, err := ReadPluginDescriptor(filepath.Join(published.PluginDir, "lib", "intellij-rust-0.4.200.jar"))
	require.NoError(t, err)
	assert.Equal(t, "0.4.200", desc.Version)
	assert.Equal(t, "232.8660", desc.Platform())
}

func TestPublish_WithoutSources(t *testing.T) {
	tmp := t.TempDir()
	pluginZip := filepath.Join(tmp, "Kotlin.zip")
	writeZip(t, pluginZip, zipEntry{name: "Kotlin/lib/kotlin-plugin.jar", content: "jar"})

	published, err := Publish(testContext(t), PublishOptions{
		PluginZip:     pluginZip,
		PrebuiltsDir:  filepath.Join(tmp, "prebuilts"),
		PluginDirName: "Kotlin",
	})
	require.NoError(t, err)
	assert.Empty(t, published.SourcesJar)
	assert.FileExists(t, filepath.Join(tmp, "prebuilts", "Kotlin", "lib", "kotlin-plugin.jar"))
}

func TestUnzip_RejectsEscapingEntries(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	writeZip(t, archive, zipEntry{name: "../outside.txt", content: "x"})

	_, err := Unzip(archive, filepath.Join(tmp, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	assert.NoFileExists(t, filepath.Join(tmp, "outside.txt"))
}

func TestStage(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a.zip")
	b := filepath.Join(tmp, "b.zip")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	dir := filepath.Join(tmp, "stage", "nested")
	staged, err := Stage(testContext(t), dir, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.zip"), filepath.Join(dir, "b.zip")}, staged)

	_, err = Stage(testContext(t), dir, filepath.Join(tmp, "missing.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestParsePluginDescriptor(t *testing.T) {
	tests := []struct {
		name        string
		xml         string
		wantVersion string
		wantSince   string
		wantErr     error
		errContains string
	}{
		{
			name:        "full_descriptor",
			xml:         rustPluginXML,
			wantVersion: "0.4.200",
			wantSince:   "232.8660",
		},
		{
			name:    "missing_idea_version",
			xml:     "<idea-plugin><version>1.0</version></idea-plugin>",
			wantErr: ErrMissingIdeaVersion,
		},
		{
			name:        "not_xml",
			xml:         "{}",
			errContains: "decoding plugin descriptor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := ParsePluginDescriptor(strings.NewReader(tt.xml))
			if tt.wantErr != nil || tt.errContains != "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, desc.Version)
			assert.Equal(t, tt.wantSince, desc.Platform())
		})
	}
}

func TestReadPluginDescriptor_MissingEntry(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "empty.jar")
	writeZip(t, jar, zipEntry{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0\n"})

	_, err := ReadPluginDescriptor(jar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), PluginXMLPath)
}

func TestWriteMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "METADATA")
	err := WriteMetadata(path, []KV{
		{Key: "build_id", Value: LocalBuildID},
		{Key: "rust_plugin_version", Value: "0.4.200"},
		{Key: "rust_plugin_platform", Value: "232.8660"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "build_id: <local_build>\nrust_plugin_version: 0.4.200\nrust_plugin_platform: 232.8660\n", string(got))

	require.Error(t, WriteMetadata(path, []KV{{Value: "x"}}))
}

func TestWriteLibraryXML(t *testing.T) {
	ws := t.TempDir()
	projectDir := filepath.Join(ws, "tools", "adt", "idea")
	libDir := filepath.Join(ws, "prebuilts", "Kotlin", "lib")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	for _, name := range []string{"z.jar", "a.jar", "kotlinc_kotlin-stdlib.jar", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(libDir, name), nil, 0o644))
	}

	out, err := WriteLibraryXML(testContext(t), LibraryOptions{
		Name:       "studio-plugin-Kotlin",
		ProjectDir: projectDir,
		JarDir:     libDir,
		Exclude:    []string{"kotlinc_kotlin-stdlib.jar"},
		SourceRoots: []string{
			filepath.Join(ws, "prebuilts", "kotlin-plugin-sources.jar"),
			filepath.Join(ws, "external", "rust", "src", "main"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, ".idea", "libraries", "studio_plugin_Kotlin.xml"), out)

	content, err := os.ReadFile(out)
	require.NoError(t, err)

	var table libraryTable
	require.NoError(t, xml.Unmarshal(content, &table))
	assert.Equal(t, "libraryTable", table.Name)
	assert.Equal(t, "studio-plugin-Kotlin", table.Library.Name)
	assert.Equal(t, []root{
		{URL: "jar://$PROJECT_DIR$/../../../prebuilts/Kotlin/lib/a.jar!/"},
		{URL: "jar://$PROJECT_DIR$/../../../prebuilts/Kotlin/lib/z.jar!/"},
	}, table.Library.Classes.Roots)
	assert.Equal(t, []root{
		{URL: "jar://$PROJECT_DIR$/../../../prebuilts/kotlin-plugin-sources.jar!/"},
		{URL: "file://$PROJECT_DIR$/../../../external/rust/src/main/"},
	}, table.Library.Sources.Roots)
	assert.Contains(t, string(content), "<JAVADOC></JAVADOC>")
}

func TestFindOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "distributions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "distributions", "rust-1.zip"), nil, 0o644))

	tests := []struct {
		name        string
		setup       func(t *testing.T)
		pattern     string
		want        string
		errContains string
	}{
		{
			name:    "exactly_one",
			pattern: "distributions/*.zip",
			want:    filepath.Join(dir, "distributions", "rust-1.zip"),
		},
		{
			name:        "none",
			pattern:     "distributions/*.tar",
			errContains: "found 0",
		},
		{
			name: "two",
			setup: func(t *testing.T) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "distributions", "rust-2.zip"), nil, 0o644))
			},
			pattern:     "distributions/*.zip",
			errContains: "found 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			got, err := FindOne(dir, tt.pattern)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
