package server

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/devwelkin/hermes-static/internal/body"
	"github.com/devwelkin/hermes-static/internal/reqlog"
	"github.com/devwelkin/hermes-static/internal/request"
	"github.com/devwelkin/hermes-static/internal/response"
)

// HandlerError is a structured error for http handlers
type HandlerError struct {
	StatusCode response.StatusCode
	Message    string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Handler writes the complete response for req. If it fails before writing
// anything, the server sends an error page instead.
type Handler func(w *response.Writer, req *request.Request) error

type Config struct {
	// Addr is a host:port to listen on. Port 0 picks a free port.
	Addr string
	// ReadTimeout bounds reading the whole request. Zero means no deadline.
	ReadTimeout time.Duration
	// Logger receives diagnostics. nil disables them.
	Logger *zerolog.Logger
	// RequestLog receives one entry per parsed request. nil disables it.
	RequestLog *reqlog.Logger
}

// Server holds the state for our http server
type Server struct {
	listener    net.Listener
	handler     Handler // the user-provided handler
	readTimeout time.Duration
	log         zerolog.Logger
	reqLog      *reqlog.Logger
	closed      atomic.Bool
}

// Serve starts accepting connections in the background.
func Serve(cfg Config, handler Handler) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	return ServeListener(listener, cfg, handler), nil
}

// ServeListener is Serve for a listener the caller already bound.
func ServeListener(listener net.Listener, cfg Config, handler Handler) *Server {
	s := &Server{
		listener:    listener,
		handler:     handler, // store the handler
		readTimeout: cfg.ReadTimeout,
		log:         zerolog.Nop(),
		reqLog:      cfg.RequestLog,
	}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	}

	go s.listen()

	return s
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting connections. Connections already accepted keep
// running until they finish on their own.
func (s *Server) Close() error {
	s.closed.Store(true)
	return s.listener.Close()
}

// listen is the main accept loop
func (s *Server) listen() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				s.log.Info().Msg("listener closed, server shutting down")
				return
			}
			s.log.Error().Err(err).Msg("error accepting connection")
			continue
		}
		go s.handle(conn)
	}
}

// writeErrorResponse is our dry helper for sending error pages
func (s *Server) writeErrorResponse(w *response.Writer, handlerErr *HandlerError) {
	msg := []byte(handlerErr.Message)
	h := response.GetDefaultHeaders("text/plain")
	h.Set("Content-Length", fmt.Sprint(len(msg)))

	// 1. write status
	if err := w.WriteStatusLine(handlerErr.StatusCode); err != nil {
		s.log.Warn().Err(err).Msg("error writing error status line")
		return
	}

	// 2. write headers
	if err := w.WriteHeaders(h); err != nil {
		s.log.Warn().Err(err).Msg("error writing error headers")
		return
	}

	// 3. write body
	if _, err := w.WriteBody(msg); err != nil {
		s.log.Warn().Err(err).Msg("error writing error body")
	}
}

func (s *Server) handle(conn net.Conn) {
	state := stateAccepted
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing connection")
		}
	}()

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			log.Warn().Err(err).Msg("error setting read deadline")
			return
		}
	}

	w := response.NewWriter(conn)

	// 1. parse the request
	req, err := s.readRequest(conn, &state)
	if err != nil {
		log.Warn().Err(err).Stringer("state", state).Msg("error parsing request")
		if isClientError(err) {
			s.writeErrorResponse(w, &HandlerError{
				StatusCode: response.StatusBadRequest,
				Message:    "Bad Request\n",
			})
		}
		return
	}
	req.RemoteAddr = conn.RemoteAddr()
	s.logRequest(log, req)

	// 2. call the handler
	state = stateResponding
	err = s.handler(w, req)
	if err == nil {
		return
	}

	log.Error().Err(err).Int64("sent", w.Written()).Msg("error writing response")

	// 3. nothing sent yet, so an error page can still go out
	if w.Status() == 0 {
		var handlerErr *HandlerError
		if !errors.As(err, &handlerErr) {
			handlerErr = &HandlerError{
				StatusCode: response.StatusInternalServerError,
				Message:    "Internal Server Error\n",
			}
		}
		s.writeErrorResponse(w, handlerErr)
	}
}

// readRequest runs request.Parse step by step so a failure can be
// reported with the state it happened in.
func (s *Server) readRequest(conn net.Conn, state *connState) (*request.Request, error) {
	*state = stateReadingHeaders
	req, bodyPrefix, err := request.ReadHead(conn)
	if err != nil {
		return nil, err
	}

	*state = stateReadingBody
	if err := req.ReadBody(conn, bodyPrefix); err != nil {
		return nil, err
	}

	*state = stateDecodingBody
	req.DecodeBody()
	return req, nil
}

// isClientError reports parse failures that deserve a 400. A peer that went
// away or timed out gets no response.
func isClientError(err error) bool {
	return errors.Is(err, request.ErrMalformedRequestLine) ||
		errors.Is(err, request.ErrUnsupportedHTTP) ||
		errors.Is(err, request.ErrInvalidContentLength)
}

func (s *Server) logRequest(log zerolog.Logger, req *request.Request) {
	ip, port := splitAddr(req.RemoteAddr)

	ct := req.ContentType()
	decoded := ct == body.TypeJSON || ct == body.TypeForm

	event := log.Info().
		Str("ip", ip).
		Str("port", port).
		Str("method", req.Method()).
		Str("url", req.Path)
	if len(req.Query) > 0 {
		event = event.Interface("query", req.Query)
	}
	if !req.Body.IsEmpty() {
		event = event.Str("body", req.Body.String())
	}
	event.Msg("request")

	if s.reqLog == nil {
		return
	}
	err := s.reqLog.Log(reqlog.Entry{
		Time:    time.Now(),
		IP:      ip,
		Method:  req.Method(),
		URL:     req.Path,
		Body:    req.Body.String(),
		HasBody: decoded,
	})
	if err != nil {
		log.Error().Err(err).Msg("error writing request log")
	}
}

func splitAddr(addr net.Addr) (ip, port string) {
	if addr == nil {
		return "", ""
	}
	ip, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return ip, port
}
