package reasoning

import "strings"

// Accumulator buffers all text seen for one logical request. It is owned by a
// single request and is not safe for concurrent use.
type Accumulator struct {
	b      strings.Builder
	chunks int
}

// Append adds a chunk to the buffer.
func (a *Accumulator) Append(chunk string) {
	if chunk == "" {
		return
	}
	a.b.WriteString(chunk)
	a.chunks++
}

// String returns everything accumulated so far.
func (a *Accumulator) String() string {
	return a.b.String()
}

// Len returns the accumulated length in bytes.
func (a *Accumulator) Len() int {
	return a.b.Len()
}

// Chunks returns the number of non-empty chunks appended.
func (a *Accumulator) Chunks() int {
	return a.chunks
}

// Reset discards the buffer.
func (a *Accumulator) Reset() {
	a.b.Reset()
	a.chunks = 0
}
