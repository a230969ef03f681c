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

package rewrite

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/walteh/stagerc/pkg/ignore"
	"gitlab.com/tozd/go/errors"
)

// 🔄 Rule is a configured substitution over a subtree
type Rule struct {
	Search  string // regular expression, or plain text when Literal is set
	Replace string // inserted verbatim when Literal is set
	Filter  string // file name filter, e.g. "*.xml"
	Dir     string // optional subdirectory; ignore patterns are relative to it
	Literal bool
}

// Compile returns the rule's search expression.
func (r Rule) Compile() (*regexp.Regexp, error) {
	if r.Search == "" {
		return nil, errors.New("search is required")
	}
	expr := r.Search
	if r.Literal {
		expr = regexp.QuoteMeta(expr)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Errorf("compiling search %q: %w", r.Search, err)
	}
	return re, nil
}

// ValidateRules checks every rule before any file is touched.
func ValidateRules(rules []Rule) error {
	for i, rule := range rules {
		if _, err := rule.Compile(); err != nil {
			return errors.Errorf("rule %d: %w", i, err)
		}
		if err := ValidateFilter(rule.Filter); err != nil {
			return errors.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// 🏃 ApplyRules runs one rewrite pass per rule, in order, under root.
func ApplyRules(ctx context.Context, root string, rules []Rule, m *ignore.Matcher) ([]*Report, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(rules))
	for i, rule := range rules {
		re, _ := rule.Compile()

		dir := root
		if rule.Dir != "" {
			dir = filepath.Join(root, rule.Dir)
		}

		report, err := RewriteAll(ctx, Options{
			Root:        dir,
			Search:      re,
			Replacement: rule.Replace,
			Filter:      rule.Filter,
			Ignore:      m,

			LiteralReplacement: rule.Literal,
		})
		if err != nil {
			return reports, errors.Errorf("applying rule %d (%s): %w", i, rule.Search, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
