// Package output implements the user facing "DX Mate" channel. It carries
// the human readable trace of every command, the structured logs go to slog.
package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

const Name = "DX Mate"

// Channel is a line oriented writer safe for concurrent use. Partial writes
// are buffered until a newline arrives or Flush is called.
type Channel struct {
	mx      sync.Mutex
	name    string
	w       io.Writer
	partial []byte
}

func NewChannel(w io.Writer) *Channel {
	if w == nil {
		w = io.Discard
	}
	return &Channel{name: Name, w: w}
}

// Discard is a channel dropping everything, handy for tests.
func Discard() *Channel {
	return NewChannel(io.Discard)
}

func (c *Channel) Name() string {
	return c.name
}

// AppendLine writes s followed by a newline.
func (c *Channel) AppendLine(s string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.flushLocked()
	_, _ = io.WriteString(c.w, s+"\n")
}

func (c *Channel) Printf(format string, args ...any) {
	c.AppendLine(fmt.Sprintf(format, args...))
}

// Write implements io.Writer for streamed process output. Only complete
// lines are passed through so concurrent streams don't interleave mid line.
func (c *Channel) Write(p []byte) (int, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.partial = append(c.partial, p...)
	idx := bytes.LastIndexByte(c.partial, '\n')
	if idx < 0 {
		return len(p), nil
	}
	if _, err := c.w.Write(c.partial[:idx+1]); err != nil {
		return 0, err
	}
	c.partial = append(c.partial[:0], c.partial[idx+1:]...)
	return len(p), nil
}

// Flush writes out a pending partial line.
func (c *Channel) Flush() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.flushLocked()
}

func (c *Channel) flushLocked() {
	if len(c.partial) == 0 {
		return
	}
	_, _ = c.w.Write(append(c.partial, '\n'))
	c.partial = c.partial[:0]
}
