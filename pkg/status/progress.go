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

package status

import (
	"io"
	"sync"

	"github.com/pterm/pterm"
	"github.com/walteh/stagerc/pkg/stage"
)

var _ stage.Progress = (*ProgressBar)(nil)

// 📈 ProgressBar reports copy progress on a terminal
type ProgressBar struct {
	w     io.Writer
	title string

	mu     sync.Mutex
	bar    *pterm.ProgressbarPrinter
	total  int
	copied int
	last   string
}

// 🏭 NewProgressBar creates a progress bar writing to w
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{w: w, title: title}
}

// Start implements stage.Progress.
func (p *ProgressBar) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.copied = 0
	if total == 0 {
		return
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(p.title).
		WithWriter(p.w).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return
	}
	p.bar = bar
}

// Copied implements stage.Progress.
func (p *ProgressBar) Copied(rel string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.copied++
	p.last = rel
	if p.bar != nil {
		p.bar.Increment()
	}
}

// Finish implements stage.Progress.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}

// Counts returns how many files were announced and how many were copied.
func (p *ProgressBar) Counts() (total, copied int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.copied
}

// Last returns the most recently copied path.
func (p *ProgressBar) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
