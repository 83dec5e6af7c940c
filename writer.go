package rtmp

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

type Writer struct {
	WriteFlusher

	writer *bufio.Writer
}

type WriteFlusher interface {
	io.Writer
	Flusher
}

type Flusher interface {
	Flush() error
}

func NewWriter(writer *bufio.Writer) (*Writer, error) {
	if writer == nil {
		return nil, ErrNilWriter
	}
	return &Writer{writer: writer}, nil
}

// Write writes the contents of p into the underlying bufio.Writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.writer.Write(p)
}

// Flush writes any buffered data in the underlying bufio.Writer.
func (w *Writer) Flush() error {
	return w.writer.Flush()
}

// send writes b and flushes it. Anything short of the full length is a
// failure of the whole send: the peer cannot resynchronise on a partial chunk.
func send(writer WriteFlusher, b []byte) error {
	n, err := writer.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errors.Wrapf(ErrShortWrite, "wrote %d of %d bytes", n, len(b))
	}
	return writer.Flush()
}
