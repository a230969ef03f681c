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

// Package ignore compiles shell-glob ignore patterns into a path predicate.
//
// Patterns are matched against the whole relative path string, not the base
// name, and '*' also matches '/'. There is no negation and no directory-only
// syntax: an ignore file is a flat list of globs.
package ignore

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var matchNothing = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)

// 🎯 Matcher is an immutable, compiled ignore rule set
type Matcher struct {
	patterns []string
	compiled []*regexp.Regexp
}

// 🏭 Compile builds a Matcher from raw glob patterns. It never fails.
func Compile(patterns []string) *Matcher {
	m := &Matcher{
		patterns: make([]string, 0, len(patterns)),
		compiled: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(translate(p))
		if err != nil {
			// an empty range like [z-a] matches nothing
			re = matchNothing
		}
		m.patterns = append(m.patterns, p)
		m.compiled = append(m.compiled, re)
	}
	return m
}

// 🔍 Match reports whether the relative path matches any pattern
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, re := range m.compiled {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the source patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.compiled)
}

// 📥 Load reads an ignore file: one pattern per line, '#' comments and blank lines skipped
func Load(ctx context.Context, path string) (*Matcher, error) {
	logger := zerolog.Ctx(ctx)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening ignore file %s: %w", path, err)
	}
	defer f.Close()

	patterns, err := parse(f)
	if err != nil {
		return nil, errors.Errorf("reading ignore file %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Int("patterns", len(patterns)).Msg("loaded ignore file")

	return Compile(patterns), nil
}

func parse(f *os.File) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// translate converts a shell glob into an anchored regular expression.
// An unterminated '[' is kept as a literal so no pattern is ever rejected.
func translate(pattern string) string {
	var sb strings.Builder
	sb.WriteString(`(?s)^`)

	runes := []rune(pattern)
	n := len(runes)
	for i := 0; i < n; {
		c := runes[i]
		i++
		switch c {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		case '[':
			j := i
			if j < n && runes[j] == '!' {
				j++
			}
			if j < n && runes[j] == ']' {
				j++
			}
			for j < n && runes[j] != ']' {
				j++
			}
			if j >= n {
				sb.WriteString(`\[`)
				continue
			}
			sb.WriteString(bracket(runes[i:j]))
			i = j + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString(`$`)
	return sb.String()
}

func bracket(class []rune) string {
	var sb strings.Builder
	sb.WriteByte('[')
	if len(class) > 0 && class[0] == '!' {
		sb.WriteByte('^')
		class = class[1:]
	}
	for _, r := range class {
		if r == '-' {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(r)))
	}
	sb.WriteByte(']')
	return sb.String()
}
