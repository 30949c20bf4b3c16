package cliui

import (
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"
)

// ReasoningPrinter prints a growing reasoning text as it streams in. Callers
// pass the full text seen so far and only the new suffix is written, faint on
// color terminals and plain otherwise.
type ReasoningPrinter struct {
	mu      sync.Mutex
	out     *termenv.Output
	printed string
}

// NewReasoningPrinter returns a printer writing to w.
func NewReasoningPrinter(w io.Writer) *ReasoningPrinter {
	return &ReasoningPrinter{out: termenv.NewOutput(w)}
}

// Update writes the part of text not yet printed. A text that does not
// extend what was printed starts a new line and is written in full.
func (p *ReasoningPrinter) Update(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delta, ok := strings.CutPrefix(text, p.printed)
	if !ok {
		_, _ = p.out.WriteString("\n")
		delta = text
	}
	p.printed = text
	if delta == "" {
		return
	}

	if p.out.Profile == termenv.Ascii {
		_, _ = p.out.WriteString(delta)
		return
	}
	_, _ = p.out.WriteString(p.out.String(delta).Faint().String())
}

// Printed returns everything written so far.
func (p *ReasoningPrinter) Printed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}
