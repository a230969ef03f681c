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

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/artifact"
	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// 🎁 Outputs are the build artifacts handed to Deliver
type Outputs struct {
	Plugin  string // plugin zip
	Sources string // sources zip, may be empty
}

// Files returns the non-empty output paths.
func (o *Outputs) Files() []string {
	files := []string{o.Plugin}
	if o.Sources != "" {
		files = append(files, o.Sources)
	}
	return files
}

// 🔍 Gather locates the outputs of a local build.
func (p *Pipeline) Gather(ctx context.Context) (*Outputs, error) {
	o := p.cfg.Outputs
	if o == nil {
		return nil, errors.New("config has no outputs block")
	}

	plugin, err := artifact.FindOne(o.Dir, o.Plugin)
	if err != nil {
		return nil, errors.Errorf("locating plugin zip: %w", err)
	}
	outs := &Outputs{Plugin: plugin}

	if o.Sources != "" {
		if outs.Sources, err = artifact.FindOne(o.Dir, o.Sources); err != nil {
			return nil, errors.Errorf("locating sources zip: %w", err)
		}
	}

	p.logger.RelevantFile("Plugin zip:", outs.Plugin)
	if outs.Sources != "" {
		p.logger.RelevantFile("Sources zip:", outs.Sources)
	}
	return outs, nil
}

// 📥 Download fetches prebuilt outputs of a release instead of building them.
// The returned cleanup removes the download directory.
func (p *Pipeline) Download(ctx context.Context, tag string) (*Outputs, func(), error) {
	d := p.cfg.Download
	if d == nil {
		return nil, nil, errors.New("config has no download block")
	}

	provider, err := remote.GetProvider(d.Provider)
	if err != nil {
		return nil, nil, err
	}

	safeTag := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(tag)
	dir, err := os.MkdirTemp("", p.cfg.Name+"-"+safeTag+"-")
	if err != nil {
		return nil, nil, errors.Errorf("creating download dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("removing download dir")
		}
	}

	patterns := []string{d.Plugin}
	if d.Sources != "" {
		patterns = append(patterns, d.Sources)
	}

	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "download", Detail: d.Repository + " " + tag, Target: dir})
	defer p.logger.EndPhase(ctx)

	paths, err := provider.Download(ctx, d.Repository, tag, patterns, dir)
	if err != nil {
		cleanup()
		return nil, nil, errors.Errorf("downloading %s from %s: %w", tag, d.Repository, err)
	}
	if len(paths) != len(patterns) {
		cleanup()
		return nil, nil, errors.Errorf("downloading %s from %s: expected %d files, got %d", tag, d.Repository, len(patterns), len(paths))
	}

	outs := &Outputs{Plugin: paths[0]}
	if d.Sources != "" {
		outs.Sources = paths[1]
	}
	for _, f := range outs.Files() {
		p.logger.RelevantFile("Downloaded", f)
	}
	return outs, cleanup, nil
}

// 🚚 Deliver copies outputs into the stage directory when one is given,
// otherwise publishes them to prebuilts and writes the metadata and library
// files.
func (p *Pipeline) Deliver(ctx context.Context, outs *Outputs, opts Options) error {
	if opts.StageDir != "" {
		dir, err := filepath.Abs(opts.StageDir)
		if err != nil {
			return errors.Errorf("resolving stage dir: %w", err)
		}
		staged, err := artifact.Stage(ctx, dir, outs.Files()...)
		if err != nil {
			return err
		}
		for _, f := range staged {
			p.logger.RelevantFile("Staged", f)
		}
		return nil
	}

	if p.cfg.Publish == nil {
		p.logger.Warning("no publish block, outputs left in place")
		return nil
	}

	if err := p.Publish(ctx, outs); err != nil {
		return err
	}

	if p.cfg.Metadata != nil {
		buildID := opts.Download
		if buildID == "" {
			buildID = artifact.LocalBuildID
		}
		if err := p.WriteMetadata(ctx, buildID); err != nil {
			return err
		}
	}

	if p.cfg.Library != nil {
		if err := p.WriteLibrary(ctx); err != nil {
			return err
		}
	}
	return nil
}

// 📦 Publish replaces the plugin in the prebuilts tree.
func (p *Pipeline) Publish(ctx context.Context, outs *Outputs) error {
	pub := p.cfg.Publish

	p.logger.StartPhase(ctx, log.PhaseOperation{Name: "publish", Detail: pub.PluginDirName, Target: pub.PrebuiltsDir})
	defer p.logger.EndPhase(ctx)

	published, err := artifact.Publish(ctx, artifact.PublishOptions{
		PluginZip:      outs.Plugin,
		SourcesZip:     outs.Sources,
		PrebuiltsDir:   pub.PrebuiltsDir,
		PluginDirName:  pub.PluginDirName,
		SourcesJarName: pub.SourcesJarName,
	})
	if err != nil {
		return errors.Errorf("publishing: %w", err)
	}

	p.logger.RelevantFile("Plugin dir:", published.PluginDir)
	if published.SourcesJar != "" && outs.Sources != "" {
		p.logger.RelevantFile("Sources jar:", published.SourcesJar)
	}
	return nil
}

// MetadataEntries gathers the METADATA lines: the build id, each value file
// in key order, then the plugin version and platform read from the plugin jar.
func (p *Pipeline) MetadataEntries(buildID string) ([]artifact.KV, error) {
	m := p.cfg.Metadata
	prebuilts := p.cfg.Publish.PrebuiltsDir

	kvs := []artifact.KV{{Key: "build_id", Value: buildID}}

	keys := make([]string, 0, len(m.ValueFiles))
	for k := range m.ValueFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := m.ValueFiles[k]
		if !filepath.IsAbs(path) {
			path = filepath.Join(prebuilts, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", k, err)
		}
		kvs = append(kvs, artifact.KV{Key: k, Value: strings.TrimSpace(string(data))})
	}

	jar, err := artifact.FindOne(prebuilts, m.PluginJar)
	if err != nil {
		return nil, errors.Errorf("locating plugin jar: %w", err)
	}
	desc, err := artifact.ReadPluginDescriptor(jar)
	if err != nil {
		return nil, err
	}

	kvs = append(kvs,
		artifact.KV{Key: m.Prefix + "_version", Value: desc.Version},
		artifact.KV{Key: m.Prefix + "_platform", Value: desc.Platform()},
	)
	return kvs, nil
}

// 📝 WriteMetadata writes the METADATA file next to the published plugin.
func (p *Pipeline) WriteMetadata(ctx context.Context, buildID string) error {
	kvs, err := p.MetadataEntries(buildID)
	if err != nil {
		return errors.Errorf("gathering metadata: %w", err)
	}
	if err := artifact.WriteMetadata(p.cfg.Metadata.File, kvs); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("file", p.cfg.Metadata.File).Int("entries", len(kvs)).Msg("wrote metadata")
	p.logger.RelevantFile("Metadata:", p.cfg.Metadata.File)
	return nil
}

// 📚 WriteLibrary regenerates the IntelliJ project library file.
func (p *Pipeline) WriteLibrary(ctx context.Context) error {
	l := p.cfg.Library
	out, err := artifact.WriteLibraryXML(ctx, artifact.LibraryOptions{
		Name:        l.Name,
		ProjectDir:  l.ProjectDir,
		JarDir:      l.JarDir,
		JarPattern:  l.JarPattern,
		Exclude:     l.Exclude,
		SourceRoots: l.SourceRoots,
		Output:      l.Output,
	})
	if err != nil {
		return errors.Errorf("writing library %s: %w", l.Name, err)
	}
	p.logger.RelevantFile("Library:", out)
	return nil
}
