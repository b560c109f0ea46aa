package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ChunkSize is the size of a single read from the connection.
const ChunkSize = 4096

// ReadUntil reads ChunkSize blocks from r until the accumulated bytes
// contain delim. Everything read so far, including bytes past delim, is
// returned.
func ReadUntil(r io.Reader, delim []byte) ([]byte, error) {
	var accumulated []byte
	chunk := make([]byte, ChunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			// only the tail can complete a delimiter split across reads
			from := max(len(accumulated)-len(delim)+1, 0)
			accumulated = append(accumulated, chunk[:n]...)
			if bytes.Contains(accumulated[from:], delim) {
				return accumulated, nil
			}
		}

		if errors.Is(err, io.EOF) {
			return accumulated, fmt.Errorf("%w: %d bytes before peer closed", ErrIncompleteRequest, len(accumulated))
		}
		if err != nil {
			return accumulated, fmt.Errorf("read request: %w", err)
		}
	}
}

// ReadExactly reads n bytes from r in chunks of at most ChunkSize.
func ReadExactly(r io.Reader, n int) ([]byte, error) {
	out := make([]byte, 0, min(n, 64*ChunkSize))
	chunk := make([]byte, min(n, ChunkSize))

	for len(out) < n {
		want := min(n-len(out), ChunkSize)
		got, err := r.Read(chunk[:want])
		out = append(out, chunk[:got]...)

		if len(out) == n {
			return out, nil
		}
		if errors.Is(err, io.EOF) {
			return out, fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteBody, len(out), n)
		}
		if err != nil {
			return out, fmt.Errorf("read body: %w", err)
		}
	}

	return out, nil
}
