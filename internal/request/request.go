// request.go

package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/devwelkin/hermes-static/internal/body"
	"github.com/devwelkin/hermes-static/internal/headers"
	"github.com/devwelkin/hermes-static/internal/value"
)

// Custom errors
var (
	ErrIncompleteRequest    = errors.New("incomplete request: peer closed before end of headers")
	ErrIncompleteBody       = errors.New("incomplete body: peer closed before content-length bytes")
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrUnsupportedHTTP      = errors.New("unsupported http version")
	ErrInvalidContentLength = errors.New("invalid content-length")
)

var (
	headerTerminator = []byte("\r\n\r\n")
	lineTerminator   = []byte("\r\n")
)

var methods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"OPTIONS": true,
	"CONNECT": true,
	"TRACE":   true,
}

type Request struct {
	RequestLine RequestLine
	Path        string
	Query       map[string]value.Value
	Headers     headers.Headers
	RawBody     []byte
	Body        body.Body

	// RemoteAddr is filled in by the server, not the parser.
	RemoteAddr net.Addr
}

type RequestLine struct {
	HTTPVersion   string
	RequestTarget string
	Method        string
}

// Parse reads one request from r: headers up to the blank line, then
// Content-Length bytes of body, decoded according to Content-Type.
func Parse(r io.Reader) (*Request, error) {
	req, bodyPrefix, err := ReadHead(r)
	if err != nil {
		return nil, err
	}
	if err := req.ReadBody(r, bodyPrefix); err != nil {
		return nil, err
	}
	req.DecodeBody()
	return req, nil
}

// ReadHead reads and parses the request line and headers. The bytes that
// arrived after the blank line are returned as the start of the body.
func ReadHead(r io.Reader) (req *Request, bodyPrefix []byte, err error) {
	raw, err := ReadUntil(r, headerTerminator)
	if err != nil {
		return nil, nil, err
	}

	idx := bytes.Index(raw, headerTerminator)
	req, err = parseHead(raw[:idx+len(headerTerminator)])
	if err != nil {
		return nil, nil, err
	}
	return req, raw[idx+len(headerTerminator):], nil
}

// ReadBody completes RawBody up to Content-Length, reading from r only what
// bodyPrefix lacks. Without Content-Length the body is empty.
func (r *Request) ReadBody(rd io.Reader, bodyPrefix []byte) error {
	contentLength, err := r.ContentLength()
	if err != nil {
		return err
	}

	if contentLength <= len(bodyPrefix) {
		r.RawBody = bodyPrefix[:contentLength]
		return nil
	}

	rest, err := ReadExactly(rd, contentLength-len(bodyPrefix))
	if err != nil {
		return err
	}
	r.RawBody = append(bodyPrefix, rest...)
	return nil
}

// DecodeBody fills Body from RawBody according to Content-Type, keeping
// the raw text when the header is absent.
func (r *Request) DecodeBody() {
	if ct, ok := r.Headers.Get("Content-Type"); ok {
		r.Body = body.Decode(string(r.RawBody), ct.String())
		return
	}
	r.Body = body.Raw(string(r.RawBody))
}

// parseHead parses the request line and header lines. head ends with the
// blank line.
func parseHead(head []byte) (*Request, error) {
	lineEnd := bytes.Index(head, lineTerminator)

	reqLine, err := parseRequestLine(head[:lineEnd])
	if err != nil {
		return nil, fmt.Errorf("failed to parse request line: %w", err)
	}

	path, rawQuery, _ := strings.Cut(reqLine.RequestTarget, "?")
	req := &Request{
		RequestLine: *reqLine,
		Path:        path,
		Query:       ParseQuery(rawQuery),
		Headers:     headers.NewHeaders(),
	}

	rest := head[lineEnd+len(lineTerminator):]
	for {
		consumed, done := req.Headers.Parse(rest)
		if consumed == 0 || done {
			break
		}
		rest = rest[consumed:]
	}

	return req, nil
}

func parseRequestLine(line []byte) (*RequestLine, error) {
	parts := strings.Split(string(line), " ")
	// panic guard
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrMalformedRequestLine, len(parts))
	}

	method := parts[0]
	target := parts[1]
	versionRaw := parts[2]

	if !methods[method] {
		return nil, fmt.Errorf("%w: unknown method %q", ErrMalformedRequestLine, method)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("%w: target %q must start with '/'", ErrMalformedRequestLine, target)
	}

	http, httpv, ok := strings.Cut(versionRaw, "/")

	if !ok || http != "HTTP" || (httpv != "1.1" && httpv != "1.0") {
		return nil, fmt.Errorf("%w: expected 'HTTP/1.1', got '%s'", ErrUnsupportedHTTP, versionRaw)
	}

	return &RequestLine{
		Method:        method,
		RequestTarget: target,
		HTTPVersion:   httpv,
	}, nil
}

// ContentLength returns 0 when the header is absent.
func (r *Request) ContentLength() (int, error) {
	v, ok := r.Headers.Get("Content-Length")
	if !ok {
		return 0, nil
	}
	n, ok := v.Int()
	if !ok || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, v.String())
	}
	return int(n), nil
}

// ContentType returns the declared body encoding, TypeOther when absent.
func (r *Request) ContentType() body.ContentType {
	v, ok := r.Headers.Get("Content-Type")
	if !ok {
		return body.TypeOther
	}
	return body.ParseContentType(v.String())
}

func (r *Request) Method() string {
	return r.RequestLine.Method
}
