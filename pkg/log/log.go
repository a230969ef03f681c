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

package log

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 45 // Base width for filename
	kindWidth   = 10 // Width for the phase that touched the file
	statusWidth = 12 // Width for status text
)

// 🎯 FileOperation represents what a phase did with one file
type FileOperation struct {
	Path         string // File path, relative to the tree being processed
	Kind         string // Phase (sync/rewrite/publish)
	Status       string // Operation status
	IsNew        bool   // Whether the file was written
	IsModified   bool   // Whether the file was changed in place
	IsSkipped    bool   // Whether the file was left alone on purpose
	IsFailed     bool   // Whether the file could not be processed
	Replacements int    // Number of replacements made
}

// 📦 PhaseOperation represents one pipeline phase for logging
type PhaseOperation struct {
	Name   string // Phase name
	Detail string // Short detail, e.g. a tag or a file count
	Target string // Directory the phase writes into
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	workspace  string
	mu         sync.Mutex
	currentOp  *PhaseOperation
	operations []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// WithWorkspace makes printed paths relative to workspace.
func (l *Logger) WithWorkspace(workspace string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workspace = workspace
	return l
}

// Console returns the writer used for human output.
func (l *Logger) Console() io.Writer {
	return l.console
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// Rel returns path relative to the workspace, if one is set.
func (l *Logger) Rel(path string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.relative(path)
}

func (l *Logger) relative(path string) string {
	if l.workspace == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(l.workspace, path)
	if err != nil {
		return path
	}
	return rel
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsNew:
		symbol = '✓'
		symbolColor = color.FgGreen
	case op.IsModified:
		symbol = '⟳'
		symbolColor = color.FgBlue
	case op.IsSkipped:
		symbol = '-'
		symbolColor = color.FgYellow
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	var kindColor color.Attribute
	switch op.Kind {
	case "sync":
		kindColor = color.FgCyan
	case "rewrite":
		kindColor = color.FgMagenta
	default:
		kindColor = color.FgBlue
	}

	status := op.Status
	if op.Replacements > 0 {
		status = fmt.Sprintf("%s (%d)", status, op.Replacements)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", kindWidth, op.Kind)),
		fmt.Sprintf("%-*s", statusWidth, status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)

	fmt.Fprintln(l.console, l.formatFileOperation(op))

	l.zlog.Debug().
		Str("file", op.Path).
		Str("kind", op.Kind).
		Str("status", op.Status).
		Bool("is_new", op.IsNew).
		Bool("is_modified", op.IsModified).
		Bool("is_skipped", op.IsSkipped).
		Bool("is_failed", op.IsFailed).
		Int("replacements", op.Replacements).
		Msg("file operation")
}

// 📝 StartPhase starts a new pipeline phase
func (l *Logger) StartPhase(ctx context.Context, op PhaseOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	if op.Target != "" {
		fmt.Fprintf(l.console, "[%s %s]\n", op.Name,
			color.New(color.FgCyan).Sprint(l.relative(op.Target)))
	}

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Name),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Detail))

	l.zlog.Info().
		Str("phase", op.Name).
		Str("detail", op.Detail).
		Str("target", op.Target).
		Msg("starting phase")
}

// 📝 EndPhase ends the current phase
func (l *Logger) EndPhase(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	l.zlog.Info().
		Str("phase", l.currentOp.Name).
		Int("files", len(l.operations)).
		Msg("phase complete")

	l.currentOp = nil
	l.operations = nil
}

// 📝 Command prints the description, the quoted command line and the exact
// child environment before a supervised command runs
func (l *Logger) Command(description string, args []string, env map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	shown := append([]string(nil), args...)
	if len(shown) > 0 {
		shown[0] = l.relative(shown[0])
	}

	fmt.Fprintf(l.console, "%s\n  %s\n", color.New(color.Bold, color.FgCyan).Sprint(description), shellquote.Join(shown...))

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(l.console, "    %s\n", color.New(color.Faint, color.FgYellow).Sprint(k+"="+env[k]))
	}

	l.zlog.Info().
		Str("description", description).
		Strs("args", args).
		Msg("running command")
}

// 📝 RelevantFile prints a file being used or written
func (l *Logger) RelevantFile(description, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "%s %s\n", description, color.New(color.FgCyan).Sprint(l.relative(path)))
	l.zlog.Debug().Str("path", path).Msg(strings.TrimSuffix(description, ":"))
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	brand := color.New(color.Bold, color.FgCyan).Sprint("stagerc")
	fmt.Fprintf(l.console, "\n%s %s\n\n", brand, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
