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

package github

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// ReleaseClient defines the GitHub API operations we need
type ReleaseClient interface {
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error)
	DownloadReleaseAsset(ctx context.Context, owner, repo string, id int64, followRedirectsClient *http.Client) (io.ReadCloser, string, error)
}

// Provider implements remote.Provider for GitHub releases
type Provider struct {
	client ReleaseClient
}

func init() {
	remote.RegisterProvider("github", NewProvider())
}

// NewProvider creates a provider authenticated with GITHUB_TOKEN when set
func NewProvider() *Provider {
	client := github.NewClient(nil)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	return NewProviderWithClient(client)
}

// NewProviderWithClient wraps an already configured go-github client
func NewProviderWithClient(client *github.Client) *Provider {
	return &Provider{client: &clientWrapper{client: client}}
}

// NewProviderFromReleaseClient is used with fakes in tests
func NewProviderFromReleaseClient(client ReleaseClient) *Provider {
	return &Provider{client: client}
}

// clientWrapper adapts *github.Client to ReleaseClient
type clientWrapper struct {
	client *github.Client
}

func (w *clientWrapper) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error) {
	return w.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
}

func (w *clientWrapper) DownloadReleaseAsset(ctx context.Context, owner, repo string, id int64, followRedirectsClient *http.Client) (io.ReadCloser, string, error) {
	return w.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, followRedirectsClient)
}

// Name returns the name of the provider
func (p *Provider) Name() string {
	return "github"
}

// 📥 Download fetches one asset per pattern from the release tagged tag.
func (p *Provider) Download(ctx context.Context, repository, tag string, patterns []string, dir string) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	owner, repo, err := remote.SplitRepository(repository)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, errors.New("empty release tag")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("context error: %w", err)
	}

	logger.Debug().Str("repo", repository).Str("tag", tag).Strs("patterns", patterns).Msg("getting release")

	release, resp, err := p.client.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Errorf("context error: %w", ctx.Err())
		}
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			var rateErr *github.RateLimitError
			if errors.As(err, &rateErr) {
				return nil, errors.Errorf("rate limit exceeded: %w", err)
			}
		}
		return nil, errors.Errorf("getting release %s of %s: %w", tag, repository, err)
	}

	assets, err := selectAssets(release.Assets, patterns)
	if err != nil {
		return nil, errors.Errorf("release %s of %s: %w", tag, repository, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating download dir: %w", err)
	}

	paths := make([]string, 0, len(assets))
	for _, asset := range assets {
		path := filepath.Join(dir, filepath.Base(asset.GetName()))
		if err := p.downloadAsset(ctx, owner, repo, asset, path); err != nil {
			return paths, err
		}
		logger.Info().Str("asset", asset.GetName()).Str("path", path).Msg("downloaded release asset")
		paths = append(paths, path)
	}
	return paths, nil
}

func (p *Provider) downloadAsset(ctx context.Context, owner, repo string, asset *github.ReleaseAsset, path string) error {
	rc, redirect, err := p.client.DownloadReleaseAsset(ctx, owner, repo, asset.GetID(), http.DefaultClient)
	if err != nil {
		return errors.Errorf("downloading %s: %w", asset.GetName(), err)
	}
	if rc == nil {
		return errors.Errorf("downloading %s: unexpected redirect to %s", asset.GetName(), redirect)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return errors.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return errors.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// selectAssets returns, for each pattern, the only asset whose name matches.
func selectAssets(assets []*github.ReleaseAsset, patterns []string) ([]*github.ReleaseAsset, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no asset patterns given")
	}

	out := make([]*github.ReleaseAsset, 0, len(patterns))
	for _, pattern := range patterns {
		var matched []*github.ReleaseAsset
		for _, a := range assets {
			ok, err := doublestar.Match(pattern, a.GetName())
			if err != nil {
				return nil, errors.Errorf("invalid asset pattern %q: %w", pattern, err)
			}
			if ok {
				matched = append(matched, a)
			}
		}
		if len(matched) != 1 {
			return nil, errors.Errorf("expected exactly one asset matching %q, found %d", pattern, len(matched))
		}
		out = append(out, matched[0])
	}
	return out, nil
}
