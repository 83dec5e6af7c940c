package rtmp

import (
	"bufio"
	"io"

	"go.uber.org/atomic"
)

// Reader wraps the transport's bufio.Reader, reading exact lengths and
// counting every byte consumed. The count is what bytes-read acknowledgements
// report, so it is read from the caller's goroutine while the receive loop
// advances it.
type Reader struct {
	ReadByteReaderCounter

	reader *bufio.Reader
	n      atomic.Uint64
}

type ByteCounter interface {
	ReadBytes() uint64
}

type ByteReader interface {
	ReadByte() (byte, error)
}

// ReadByteReaderCounter is the interface that groups Reader, ByteReader, and ByteCounter interfaces.
type ReadByteReaderCounter interface {
	io.Reader
	ByteCounter
	ByteReader
}

func NewReader(reader *bufio.Reader) (*Reader, error) {
	if reader == nil {
		return nil, ErrNilReader
	}
	return &Reader{reader: reader}, nil
}

// Read reads exactly len(p) bytes from the underlying bufio.Reader into p.
// The error is EOF only if no bytes were read. If an EOF happens after reading
// some but not all the bytes, Read returns ErrUnexpectedEOF.
// On return, n == len(p) if and only if err == nil.
func (r *Reader) Read(p []byte) (n int, err error) {
	n, err = io.ReadFull(r.reader, p)
	r.n.Add(uint64(n))
	return n, err
}

// ReadByte reads and returns a single byte from the underlying bufio.Reader.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.reader.ReadByte()
	if err == nil {
		r.n.Inc()
	}
	return b, err
}

// ReadBytes returns the number of bytes read since the Reader was created.
func (r *Reader) ReadBytes() uint64 {
	return r.n.Load()
}
