// Package site answers parsed requests with either a static file or the
// JSON listing of the public root.
package site

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/devwelkin/hermes-static/internal/body"
	"github.com/devwelkin/hermes-static/internal/request"
	"github.com/devwelkin/hermes-static/internal/resolve"
	"github.com/devwelkin/hermes-static/internal/response"
)

const DefaultAPIMarker = "api"

type Site struct {
	resolver  *resolve.Resolver
	apiMarker string
	log       zerolog.Logger
}

type Option func(*Site)

// WithAPIMarker sets the path segment that routes to the JSON listing.
func WithAPIMarker(marker string) Option {
	return func(s *Site) { s.apiMarker = marker }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Site) { s.log = l }
}

func New(resolver *resolve.Resolver, opts ...Option) *Site {
	s := &Site{
		resolver:  resolver,
		apiMarker: DefaultAPIMarker,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WantsJSON reports whether req goes to the listing: an Accept header of
// exactly application/json, or a path segment equal to the API marker.
func (s *Site) WantsJSON(req *request.Request) bool {
	if accept, ok := req.Headers.Get("Accept"); ok && accept.String() == body.MediaJSON {
		return true
	}
	if s.apiMarker == "" {
		return false
	}
	for _, segment := range strings.Split(req.Path, "/") {
		if segment == s.apiMarker {
			return true
		}
	}
	return false
}

// Respond writes the whole response for req. An error returned before any
// byte was written leaves the writer untouched so the caller can still send
// an error page.
func (s *Site) Respond(w *response.Writer, req *request.Request) error {
	if s.WantsJSON(req) {
		return s.writeListing(w, req)
	}
	return s.writeFile(w, req, s.resolver.Resolve(req.Path))
}

func (s *Site) writeListing(w *response.Writer, req *request.Request) error {
	entries, err := s.resolver.List()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}

	if err := w.WriteStatusLine(response.StatusOK); err != nil {
		return err
	}
	if err := w.WriteHeaders(response.GetDefaultHeaders(body.MediaJSON)); err != nil {
		return err
	}
	if req.Method() == "HEAD" {
		return nil
	}
	_, err = w.WriteBody(payload)
	return err
}

func (s *Site) writeFile(w *response.Writer, req *request.Request, res resolve.Resource) error {
	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", res.Path, err)
	}
	defer f.Close()

	if err := w.WriteStatusLine(response.StatusCode(res.Status())); err != nil {
		return err
	}
	if err := w.WriteHeaders(response.GetDefaultHeaders(res.MIME)); err != nil {
		return err
	}
	if req.Method() == "HEAD" {
		return nil
	}

	n, err := w.StreamFrom(f)
	if err != nil {
		return fmt.Errorf("stream %s after %d bytes: %w", res.Path, n, err)
	}
	s.log.Debug().Str("file", res.Path).Int64("bytes", n).Int("status", res.Status()).Msg("file sent")
	return nil
}
