// Command tcplistener accepts connections one at a time and prints each
// parsed request instead of answering it.
package main

import (
	"flag"
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/devwelkin/hermes-static/internal/request"
)

func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("listen")
	}
	logger.Info().Str("addr", listener.Addr().String()).Msg("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Fatal().Err(err).Msg("accept")
		}
		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection has accepted")

		req, err := request.Parse(conn)
		conn.Close()
		if err != nil {
			logger.Warn().Err(err).Msg("parse")
			continue
		}

		logger.Info().
			Str("method", req.Method()).
			Str("target", req.RequestLine.RequestTarget).
			Str("version", req.RequestLine.HTTPVersion).
			Interface("query", req.Query).
			Interface("headers", req.Headers).
			Str("body", req.Body.String()).
			Msg("request")
	}
}
