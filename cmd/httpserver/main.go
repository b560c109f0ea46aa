package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/devwelkin/hermes-static/internal/config"
	"github.com/devwelkin/hermes-static/internal/reqlog"
	"github.com/devwelkin/hermes-static/internal/resolve"
	"github.com/devwelkin/hermes-static/internal/server"
	"github.com/devwelkin/hermes-static/internal/site"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(cfg.LogLevel).
		With().Timestamp().Logger()

	var opts []resolve.Option
	if cfg.Unconfined {
		opts = append(opts, resolve.WithoutConfinement())
	}
	resolver, err := resolve.New(cfg.ViewsRoot, cfg.PublicRoot, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("error resolving static roots")
	}

	var reqLog *reqlog.Logger
	if cfg.LogPath != "" {
		reqLog, err = reqlog.Open(cfg.LogPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("error opening request log")
		}
		defer reqLog.Close()
	}

	handler := site.New(resolver,
		site.WithAPIMarker(cfg.APIMarker),
		site.WithLogger(logger),
	).Respond

	srv, err := server.Serve(server.Config{
		Addr:        cfg.Addr(),
		ReadTimeout: cfg.ReadTimeout,
		Logger:      &logger,
		RequestLog:  reqLog,
	}, handler)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Addr()).Msg("error starting server")
	}
	defer srv.Close()

	logger.Info().
		Str("url", "http://"+srv.Addr().String()).
		Str("views", resolver.ViewsRoot()).
		Str("public", resolver.PublicRoot()).
		Msg("server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutting down, in-flight connections are not drained")
}
