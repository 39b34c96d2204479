package relay

import (
	"bytes"
	"fmt"
	"io"

	"github.com/juju/errors"
)

const (
	readChunkSize    = 4 << 10
	DefaultReadLimit = 16 << 10
)

var ErrFrameTooLong = fmt.Errorf("frame exceeds read limit")

// frameReader reassembles newline delimited frames from a byte stream.
// Bytes of an incomplete frame stay buffered between reads. A peer that
// streams more than max bytes without a newline is broken; the error
// tears the connection down rather than dispatching a truncated frame.
type frameReader struct {
	r   io.Reader
	max int
	buf []byte // read chunk
	acc []byte // partial frame accumulator
	err error  // sticky, delivered after buffered frames drain
}

func newFrameReader(r io.Reader, max int) *frameReader {
	if max <= 0 {
		max = DefaultReadLimit
	}
	return &frameReader{r: r, max: max, buf: make([]byte, readChunkSize)}
}

// ReadFrame returns the next complete frame without its newline, blocking
// on the underlying reader as needed. Frames already buffered are returned
// before a pending read error. The returned slice is valid until the next
// ReadFrame call.
func (f *frameReader) ReadFrame() ([]byte, error) {
	for {
		if i := bytes.IndexByte(f.acc, '\n'); i >= 0 {
			frame := f.acc[:i]
			f.acc = f.acc[i+1:]
			return frame, nil
		}
		if f.err != nil {
			return nil, f.err
		}
		if len(f.acc) > f.max {
			f.err = errors.Annotatef(ErrFrameTooLong, "buffered=%d max=%d", len(f.acc), f.max)
			return nil, f.err
		}

		n, err := f.r.Read(f.buf)
		if n > 0 {
			f.acc = append(f.acc, f.buf[:n]...)
		}
		switch {
		case err != nil:
			f.err = err
		case n == 0:
			// zero byte read without error: peer closed
			f.err = io.EOF
		}
	}
}
