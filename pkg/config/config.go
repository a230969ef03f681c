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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte, filename string, vars Vars) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// DefaultPath is the PATH handed to child processes when the config sets none.
const DefaultPath = "/bin:/usr/bin"

// 🌍 Vars are the values a config file can reference as ${name}
type Vars struct {
	Workspace string
	GOOS      string
	GOARCH    string
	JavaHome  string // filled from the jdk block while parsing
}

// Map returns the variables by the names used inside config files.
func (v Vars) Map() map[string]string {
	m := map[string]string{
		"workspace": v.Workspace,
		"os":        v.GOOS,
		"arch":      v.GOARCH,
	}
	if v.JavaHome != "" {
		m["java_home"] = v.JavaHome
	}
	return m
}

// 🔄 RewriteArgs is one search and replace over the staged tree
type RewriteArgs struct {
	Search  string `json:"search" yaml:"search" hcl:"search"`
	Replace string `json:"replace" yaml:"replace" hcl:"replace"`
	Filter  string `json:"filter,omitempty" yaml:"filter,omitempty" hcl:"filter,optional"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty" hcl:"dir,optional"`
	Literal bool   `json:"literal,omitempty" yaml:"literal,omitempty" hcl:"literal,optional"`
}

// 📂 SyncArgs configures the staging mirror
type SyncArgs struct {
	Source      string   `json:"source" yaml:"source" hcl:"source"`
	Destination string   `json:"destination" yaml:"destination" hcl:"destination"`
	IgnoreFile  string   `json:"ignore_file,omitempty" yaml:"ignore_file,omitempty" hcl:"ignore_file,optional"`
	Ignore      []string `json:"ignore,omitempty" yaml:"ignore,omitempty" hcl:"ignore,optional"`
	Jobs        int      `json:"jobs,omitempty" yaml:"jobs,omitempty" hcl:"jobs,optional"`
}

// ☕ JDKArgs points at the bundled JDKs; JAVA_HOME is derived per platform
type JDKArgs struct {
	Base string `json:"base" yaml:"base" hcl:"base"`
}

// 🛠️ StepArgs is one supervised build command
type StepArgs struct {
	Name            string            `json:"name" yaml:"name" hcl:"name,label"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty" hcl:"description,optional"`
	Args            []string          `json:"args" yaml:"args" hcl:"args"`
	Dir             string            `json:"dir,omitempty" yaml:"dir,omitempty" hcl:"dir,optional"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty" hcl:"env,optional"`
	CleanArgs       []string          `json:"clean_args,omitempty" yaml:"clean_args,omitempty" hcl:"clean_args,optional"`
	IncrementalArgs []string          `json:"incremental_args,omitempty" yaml:"incremental_args,omitempty" hcl:"incremental_args,optional"`
}

// 🎁 OutputArgs locates the build outputs
type OutputArgs struct {
	Dir     string `json:"dir" yaml:"dir" hcl:"dir"`
	Plugin  string `json:"plugin" yaml:"plugin" hcl:"plugin"`
	Sources string `json:"sources,omitempty" yaml:"sources,omitempty" hcl:"sources,optional"`
}

// 📥 DownloadArgs fetches prebuilt outputs instead of building
type DownloadArgs struct {
	Provider   string `json:"provider,omitempty" yaml:"provider,omitempty" hcl:"provider,optional"`
	Repository string `json:"repository" yaml:"repository" hcl:"repository"`
	Plugin     string `json:"plugin" yaml:"plugin" hcl:"plugin"`
	Sources    string `json:"sources,omitempty" yaml:"sources,omitempty" hcl:"sources,optional"`
}

// 📦 PublishArgs says where outputs land in the prebuilts tree
type PublishArgs struct {
	PrebuiltsDir   string `json:"prebuilts_dir" yaml:"prebuilts_dir" hcl:"prebuilts_dir"`
	PluginDirName  string `json:"plugin_dir_name" yaml:"plugin_dir_name" hcl:"plugin_dir_name"`
	SourcesJarName string `json:"sources_jar_name,omitempty" yaml:"sources_jar_name,omitempty" hcl:"sources_jar_name,optional"`
}

// 📝 MetadataArgs configures the METADATA file
type MetadataArgs struct {
	File       string            `json:"file,omitempty" yaml:"file,omitempty" hcl:"file,optional"`
	Prefix     string            `json:"prefix" yaml:"prefix" hcl:"prefix"`
	PluginJar  string            `json:"plugin_jar" yaml:"plugin_jar" hcl:"plugin_jar"`
	ValueFiles map[string]string `json:"value_files,omitempty" yaml:"value_files,omitempty" hcl:"value_files,optional"`
}

// 📚 LibraryArgs configures the IntelliJ project library file
type LibraryArgs struct {
	Name        string   `json:"name" yaml:"name" hcl:"name"`
	ProjectDir  string   `json:"project_dir" yaml:"project_dir" hcl:"project_dir"`
	JarDir      string   `json:"jar_dir,omitempty" yaml:"jar_dir,omitempty" hcl:"jar_dir,optional"`
	JarPattern  string   `json:"jar_pattern,omitempty" yaml:"jar_pattern,omitempty" hcl:"jar_pattern,optional"`
	Exclude     []string `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
	SourceRoots []string `json:"source_roots,omitempty" yaml:"source_roots,omitempty" hcl:"source_roots,optional"`
	Output      string   `json:"output,omitempty" yaml:"output,omitempty" hcl:"output,optional"`
}

// 📚 Config represents the complete pipeline configuration
type Config struct {
	Name     string            `json:"name" yaml:"name" hcl:"name"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty" hcl:"env,optional"`
	JDK      *JDKArgs          `json:"jdk,omitempty" yaml:"jdk,omitempty" hcl:"jdk,block"`
	Sync     *SyncArgs         `json:"sync,omitempty" yaml:"sync,omitempty" hcl:"sync,block"`
	Rewrites []RewriteArgs     `json:"rewrites,omitempty" yaml:"rewrites,omitempty" hcl:"rewrite,block"`
	Steps    []StepArgs        `json:"steps,omitempty" yaml:"steps,omitempty" hcl:"step,block"`
	Outputs  *OutputArgs       `json:"outputs,omitempty" yaml:"outputs,omitempty" hcl:"outputs,block"`
	Download *DownloadArgs     `json:"download,omitempty" yaml:"download,omitempty" hcl:"download,block"`
	Publish  *PublishArgs      `json:"publish,omitempty" yaml:"publish,omitempty" hcl:"publish,block"`
	Metadata *MetadataArgs     `json:"metadata,omitempty" yaml:"metadata,omitempty" hcl:"metadata,block"`
	Library  *LibraryArgs      `json:"library,omitempty" yaml:"library,omitempty" hcl:"library,block"`

	// Workspace is the root every relative path is resolved against
	Workspace string `json:"-" yaml:"-"`
	// JavaHome is derived from JDK for the host platform
	JavaHome string `json:"-" yaml:"-"`
	location string
}

// HostVars returns Vars for the running platform rooted at workspace.
func HostVars(workspace string) Vars {
	return Vars{Workspace: workspace, GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
}

// 🎯 Load loads the configuration from a file. When vars.Workspace is empty
// the directory holding the file is used.
func Load(ctx context.Context, path string, vars Vars) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	if vars.Workspace == "" {
		vars.Workspace = filepath.Dir(path)
	}
	if vars.Workspace, err = filepath.Abs(vars.Workspace); err != nil {
		return nil, errors.Errorf("resolving workspace: %w", err)
	}
	if vars.GOOS == "" {
		vars.GOOS = runtime.GOOS
	}
	if vars.GOARCH == "" {
		vars.GOARCH = runtime.GOARCH
	}

	cfg, err := p.Parse(ctx, data, path, vars)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

// Location returns the file the config was loaded from.
func (cfg *Config) Location() string {
	return cfg.location
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	src := "download"
	if cfg.Sync != nil {
		src = cfg.Sync.Source
	}
	return fmt.Sprintf("%s: %s -> %d steps", cfg.Name, src, len(cfg.Steps))
}
