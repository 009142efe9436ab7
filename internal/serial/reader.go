package serial

import (
	"bytes"
	"context"
	"io"
)

// lineReader accumulates bytes from r across repeated, possibly
// short/timed-out reads and yields one line per call to ReadLine. Unlike
// bufio.Reader, it tolerates an unbounded run of zero-byte/nil-error
// reads (the behavior go.bug.st/serial uses to signal "read timeout, try
// again") instead of giving up after a fixed number of empty reads.
type lineReader struct {
	r   io.Reader
	buf bytes.Buffer
	tmp [256]byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r}
}

// ReadLine blocks until a newline-terminated line is available, ctx is
// cancelled, or the underlying reader returns a real error. It checks for
// ctx cancellation between underlying Read calls, so the caller's Read
// timeout bounds how promptly shutdown is observed.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	for {
		if idx := bytes.IndexByte(lr.buf.Bytes(), '\n'); idx >= 0 {
			line := lr.buf.Next(idx + 1)
			return string(bytes.TrimRight(line, "\r\n")), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		n, err := lr.r.Read(lr.tmp[:])
		if n > 0 {
			lr.buf.Write(lr.tmp[:n])
			continue
		}
		if err != nil {
			return "", err
		}
		// n == 0, err == nil: a read timeout elapsed with nothing to
		// report. Loop and try again; ctx.Done() above bounds the wait.
	}
}
