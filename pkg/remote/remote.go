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

// Package remote fetches prebuilt artifacts instead of building them.
package remote

import (
	"context"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var registry = map[string]Provider{}

// RegisterProvider makes a provider available by name.
func RegisterProvider(name string, provider Provider) {
	registry[name] = provider
}

// GetProvider returns the provider registered under name.
func GetProvider(name string) (Provider, error) {
	provider, ok := registry[name]
	if !ok {
		options := make([]string, 0, len(registry))
		for k := range registry {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("provider %s not found, options: %s", name, strings.Join(options, ", "))
	}
	return provider, nil
}

// Provider downloads release artifacts from a hosting service (e.g. GitHub)
type Provider interface {
	// Name returns the name of the provider (e.g. "github")
	Name() string
	// Download fetches, for each pattern, the single asset of release tag
	// whose name matches it into dir and returns the local paths in
	// pattern order
	Download(ctx context.Context, repository, tag string, patterns []string, dir string) ([]string, error)
}

// SplitRepository splits "owner/repo".
func SplitRepository(name string) (owner, repo string, err error) {
	if name == "" {
		return "", "", errors.New("empty repository name")
	}
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return "", "", errors.Errorf("invalid repository name: %s", name)
	}
	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", errors.Errorf("invalid repository name: %s", name)
	}
	return owner, repo, nil
}
