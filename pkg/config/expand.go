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
	"regexp"

	"github.com/walteh/stagerc/pkg/toolchain"
	"gitlab.com/tozd/go/errors"
)

var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces ${name} references with vars; unknown names are kept.
func Expand(s string, vars map[string]string) string {
	return varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return ref
	})
}

// resolveJavaHome fills vars.JavaHome from a jdk base that may itself use vars.
func resolveJavaHome(jdk *JDKArgs, vars Vars) (Vars, error) {
	if jdk == nil || jdk.Base == "" {
		return vars, nil
	}
	base := Expand(jdk.Base, vars.Map())
	if !filepath.IsAbs(base) {
		base = filepath.Join(vars.Workspace, base)
	}
	home, err := toolchain.JavaHome(base, vars.GOOS, vars.GOARCH)
	if err != nil {
		return vars, errors.Errorf("computing java home: %w", err)
	}
	vars.JavaHome = home
	return vars, nil
}

// expandAll rewrites every user-facing string of cfg through fn.
func (cfg *Config) expandAll(fn func(string) string) {
	cfg.Name = fn(cfg.Name)
	expandMap(cfg.Env, fn)

	if cfg.JDK != nil {
		cfg.JDK.Base = fn(cfg.JDK.Base)
	}
	if s := cfg.Sync; s != nil {
		s.Source = fn(s.Source)
		s.Destination = fn(s.Destination)
		s.IgnoreFile = fn(s.IgnoreFile)
		expandSlice(s.Ignore, fn)
	}
	for i := range cfg.Rewrites {
		r := &cfg.Rewrites[i]
		r.Search = fn(r.Search)
		r.Replace = fn(r.Replace)
		r.Filter = fn(r.Filter)
		r.Dir = fn(r.Dir)
	}
	for i := range cfg.Steps {
		s := &cfg.Steps[i]
		s.Description = fn(s.Description)
		s.Dir = fn(s.Dir)
		expandSlice(s.Args, fn)
		expandSlice(s.CleanArgs, fn)
		expandSlice(s.IncrementalArgs, fn)
		expandMap(s.Env, fn)
	}
	if o := cfg.Outputs; o != nil {
		o.Dir = fn(o.Dir)
		o.Plugin = fn(o.Plugin)
		o.Sources = fn(o.Sources)
	}
	if d := cfg.Download; d != nil {
		d.Repository = fn(d.Repository)
		d.Plugin = fn(d.Plugin)
		d.Sources = fn(d.Sources)
	}
	if p := cfg.Publish; p != nil {
		p.PrebuiltsDir = fn(p.PrebuiltsDir)
		p.PluginDirName = fn(p.PluginDirName)
		p.SourcesJarName = fn(p.SourcesJarName)
	}
	if m := cfg.Metadata; m != nil {
		m.File = fn(m.File)
		m.PluginJar = fn(m.PluginJar)
		expandMap(m.ValueFiles, fn)
	}
	if l := cfg.Library; l != nil {
		l.Name = fn(l.Name)
		l.ProjectDir = fn(l.ProjectDir)
		l.JarDir = fn(l.JarDir)
		l.JarPattern = fn(l.JarPattern)
		l.Output = fn(l.Output)
		expandSlice(l.Exclude, fn)
		expandSlice(l.SourceRoots, fn)
	}
}

func expandSlice(s []string, fn func(string) string) {
	for i := range s {
		s[i] = fn(s[i])
	}
}

func expandMap(m map[string]string, fn func(string) string) {
	for k, v := range m {
		m[k] = fn(v)
	}
}
