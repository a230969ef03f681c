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
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔍 Validate checks the configuration, fills defaults and makes every path
// absolute against Workspace.
func (cfg *Config) Validate() error {
	if cfg.Name == "" {
		return errors.Errorf("name is required")
	}
	if cfg.Workspace == "" {
		return errors.Errorf("workspace is required")
	}
	cfg.Workspace = filepath.Clean(cfg.Workspace)

	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	if _, ok := cfg.Env["PATH"]; !ok {
		cfg.Env["PATH"] = DefaultPath
	}
	if cfg.JDK != nil {
		if cfg.JDK.Base == "" {
			return errors.Errorf("jdk.base is required")
		}
		cfg.JDK.Base = cfg.abs(cfg.JDK.Base)
	}
	if cfg.JavaHome != "" {
		cfg.JavaHome = cfg.abs(cfg.JavaHome)
		if _, ok := cfg.Env["JAVA_HOME"]; !ok {
			cfg.Env["JAVA_HOME"] = cfg.JavaHome
		}
	}

	if s := cfg.Sync; s != nil {
		if s.Source == "" {
			return errors.Errorf("sync.source is required")
		}
		if s.Destination == "" {
			return errors.Errorf("sync.destination is required")
		}
		s.Source = cfg.abs(s.Source)
		s.Destination = cfg.abs(s.Destination)
		if s.IgnoreFile != "" {
			s.IgnoreFile = cfg.abs(s.IgnoreFile)
		}
		if s.Jobs < 1 {
			s.Jobs = 1
		}
	}

	for i, r := range cfg.Rewrites {
		if r.Search == "" {
			return errors.Errorf("rewrites[%d].search is required", i)
		}
		if cfg.Sync == nil && r.Dir == "" {
			return errors.Errorf("rewrites[%d].dir is required without a sync block", i)
		}
	}

	seen := map[string]bool{}
	for i := range cfg.Steps {
		s := &cfg.Steps[i]
		if s.Name == "" {
			return errors.Errorf("steps[%d].name is required", i)
		}
		if seen[s.Name] {
			return errors.Errorf("duplicate step %q", s.Name)
		}
		seen[s.Name] = true
		if len(s.Args) == 0 {
			return errors.Errorf("step %q: args are required", s.Name)
		}
		if s.Description == "" {
			s.Description = s.Name
		}
		s.Dir = cfg.abs(s.Dir)
		if strings.ContainsRune(s.Args[0], '/') && !filepath.IsAbs(s.Args[0]) {
			s.Args[0] = cfg.abs(s.Args[0])
		}
	}

	if o := cfg.Outputs; o != nil {
		if o.Dir == "" || o.Plugin == "" {
			return errors.Errorf("outputs.dir and outputs.plugin are required")
		}
		o.Dir = cfg.abs(o.Dir)
	}

	if d := cfg.Download; d != nil {
		if d.Repository == "" || d.Plugin == "" {
			return errors.Errorf("download.repository and download.plugin are required")
		}
		if d.Provider == "" {
			d.Provider = "github"
		}
	}

	if p := cfg.Publish; p != nil {
		if p.PrebuiltsDir == "" || p.PluginDirName == "" {
			return errors.Errorf("publish.prebuilts_dir and publish.plugin_dir_name are required")
		}
		if cfg.Outputs == nil && cfg.Download == nil {
			return errors.Errorf("publish needs an outputs or a download block")
		}
		p.PrebuiltsDir = cfg.abs(p.PrebuiltsDir)
	}

	if m := cfg.Metadata; m != nil {
		if cfg.Publish == nil {
			return errors.Errorf("metadata needs a publish block")
		}
		if m.Prefix == "" || m.PluginJar == "" {
			return errors.Errorf("metadata.prefix and metadata.plugin_jar are required")
		}
		if m.File == "" {
			m.File = filepath.Join(cfg.Publish.PrebuiltsDir, "METADATA")
		}
		m.File = cfg.abs(m.File)
	}

	if l := cfg.Library; l != nil {
		if l.Name == "" || l.ProjectDir == "" {
			return errors.Errorf("library.name and library.project_dir are required")
		}
		if l.JarDir == "" {
			if cfg.Publish == nil {
				return errors.Errorf("library.jar_dir is required without a publish block")
			}
			l.JarDir = filepath.Join(cfg.Publish.PrebuiltsDir, cfg.Publish.PluginDirName, "lib")
		}
		l.ProjectDir = cfg.abs(l.ProjectDir)
		l.JarDir = cfg.abs(l.JarDir)
		if l.Output != "" {
			l.Output = cfg.abs(l.Output)
		}
		for i, src := range l.SourceRoots {
			l.SourceRoots[i] = cfg.abs(src)
		}
	}

	return nil
}

func (cfg *Config) abs(p string) string {
	if p == "" {
		return cfg.Workspace
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cfg.Workspace, p)
}
