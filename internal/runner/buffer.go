package runner

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// streamBuffer accumulates the lines of one output stream. done is closed
// once the stream reaches end-of-stream, which is distinct from the buffer
// being empty.
type streamBuffer struct {
	mu    sync.Mutex
	lines []string

	done     chan struct{}
	doneOnce sync.Once
}

func newStreamBuffer() *streamBuffer {
	return &streamBuffer{done: make(chan struct{})}
}

func (b *streamBuffer) append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

func (b *streamBuffer) finish() {
	b.doneOnce.Do(func() { close(b.done) })
}

// Done is closed at end-of-stream.
func (b *streamBuffer) Done() <-chan struct{} {
	return b.done
}

// Text joins the received lines with "\n".
func (b *streamBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// drain reads r line by line until end-of-stream. Line terminators are
// stripped and invalid UTF-8 is replaced. A reader closed underneath
// drain counts as end-of-stream.
func (b *streamBuffer) drain(r io.Reader) error {
	defer b.finish()

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			b.append(strings.ToValidUTF8(line, "�"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
