package response

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/devwelkin/hermes-static/internal/headers"
)

// ChunkSize bounds a single write of a streamed body.
const ChunkSize = 4096

type StatusCode int

const (
	StatusOK                  StatusCode = 200
	StatusBadRequest          StatusCode = 400
	StatusNotFound            StatusCode = 404
	StatusInternalServerError StatusCode = 500
)

var reasonPhrases = map[StatusCode]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

var ErrWrongState = errors.New("response written out of order")

type writerState int

const (
	stateStatus  writerState = iota // can write status
	stateHeaders                    // can write headers
	stateBody                       // can write body
)

// Writer is a stateful writer for constructing an http response.
type Writer struct {
	w       io.Writer   // connection
	state   writerState // state machine
	status  StatusCode
	written int64
}

// NewWriter creates a new response Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStatus,
	}
}

// WriteStatusLine writes the status line. can only be called once, and first.
func (w *Writer) WriteStatusLine(statusCode StatusCode) error {
	if w.state != stateStatus {
		return fmt.Errorf("%w: status line after headers", ErrWrongState)
	}
	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", statusCode, reasonPhrases[statusCode])

	if err := w.write([]byte(statusLine)); err != nil {
		return err
	}
	w.status = statusCode
	w.state = stateHeaders
	return nil
}

// WriteHeaders writes the headers in key order, then the blank line.
// must be called after status and before body.
func (w *Writer) WriteHeaders(h headers.Headers) error {
	if w.state != stateHeaders {
		return fmt.Errorf("%w: headers before status line or after body", ErrWrongState)
	}

	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		line := fmt.Sprintf("%s: %s\r\n", key, h[key])
		if err := w.write([]byte(line)); err != nil {
			return err
		}
	}

	// final crlf to separate headers from body
	if err := w.write([]byte("\r\n")); err != nil {
		return err
	}

	w.state = stateBody
	return nil
}

// WriteBody writes to the response body. can be called multiple times, but
// only after headers have been written.
func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.state != stateBody {
		return 0, fmt.Errorf("%w: body before headers", ErrWrongState)
	}
	n, err := w.w.Write(p)
	w.written += int64(n)
	return n, err
}

// StreamFrom copies r into the body in ChunkSize writes until r is
// exhausted. Bytes already sent stay sent when a write fails.
func (w *Writer) StreamFrom(r io.Reader) (int64, error) {
	if w.state != stateBody {
		return 0, fmt.Errorf("%w: body before headers", ErrWrongState)
	}

	var total int64
	buf := make([]byte, ChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			m, werr := w.WriteBody(buf[:n])
			total += int64(m)
			if werr != nil {
				return total, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// Status is the status code written so far, 0 before the status line.
func (w *Writer) Status() StatusCode { return w.status }

// Written counts every byte sent, including status line and headers.
func (w *Writer) Written() int64 { return w.written }

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.written += int64(n)
	return err
}

// GetDefaultHeaders returns the headers every response carries.
func GetDefaultHeaders(contentType string) headers.Headers {
	h := headers.NewHeaders()
	h.Set("Content-Type", contentType)
	h.Set("Connection", "close")
	return h
}
