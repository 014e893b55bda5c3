// Package lineproto reassembles terminator-delimited lines from
// arbitrary string chunks. Scanner subprocesses write their chatter in
// whatever chunk sizes the pipe delivers; the Reader re-buffers partial
// trailing data so callers always see complete lines.
package lineproto

import "strings"

// Reader buffers chunks and emits complete lines to a handler. It is
// entirely synchronous: Add and End emit from the caller's goroutine,
// so no locking is needed when driven by a single I/O loop.
type Reader struct {
	terminator string
	handler    func(line string)
	buf        string
	ended      bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithTerminator overrides the line terminator. The default is "\n".
func WithTerminator(terminator string) Option {
	return func(r *Reader) {
		if terminator != "" {
			r.terminator = terminator
		}
	}
}

// NewReader creates a Reader that calls handler once per complete line.
// Emitted lines include their trailing terminator; the final flush from
// End does not.
func NewReader(handler func(line string), opts ...Option) *Reader {
	r := &Reader{
		terminator: "\n",
		handler:    handler,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add appends a chunk to the buffer and synchronously emits every
// complete line it now contains. Concatenating all emitted lines plus
// the final End flush always reproduces the input exactly.
func (r *Reader) Add(chunk string) {
	r.buf += chunk
	for {
		idx := strings.Index(r.buf, r.terminator)
		if idx < 0 {
			return
		}
		end := idx + len(r.terminator)
		line := r.buf[:end]
		r.buf = r.buf[end:]
		r.handler(line)
	}
}

// End flushes any non-empty remainder as a final line. Calling End
// again is a no-op.
func (r *Reader) End() {
	if r.ended {
		return
	}
	r.ended = true
	if r.buf != "" {
		line := r.buf
		r.buf = ""
		r.handler(line)
	}
}
