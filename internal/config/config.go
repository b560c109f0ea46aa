// Package config loads startup settings from flags, with environment
// variables overriding the defaults and flags overriding both.
package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Host        string
	Port        int
	ViewsRoot   string
	PublicRoot  string
	LogPath     string
	APIMarker   string
	ReadTimeout time.Duration
	LogLevel    zerolog.Level
	// Unconfined resolves URL paths without confining them to the roots.
	Unconfined bool
}

func Default() Config {
	return Config{
		Host:       "localhost",
		Port:       8080,
		ViewsRoot:  "views",
		PublicRoot: "public",
		LogPath:    "requests.log",
		APIMarker:  "api",
		LogLevel:   zerolog.InfoLevel,
	}
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load parses args (without the program name). getenv is consulted for
// HERMES_* variables; pass os.Getenv in production.
func Load(name string, args []string, getenv func(string) string, output io.Writer) (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "host to listen on")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.ViewsRoot, "views", cfg.ViewsRoot, "views root, searched first")
	fs.StringVar(&cfg.PublicRoot, "public", cfg.PublicRoot, "public root, searched second and listed by the JSON endpoint")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "request log file, empty to disable")
	fs.StringVar(&cfg.APIMarker, "api-marker", cfg.APIMarker, "path segment routed to the JSON listing")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "deadline for reading a request, 0 for none")
	fs.BoolVar(&cfg.Unconfined, "unconfined", cfg.Unconfined, "do not confine URL paths to the roots")
	level := fs.String("log-level", cfg.LogLevel.String(), "diagnostic log level")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		return cfg, fmt.Errorf("log-level: %w", err)
	}
	cfg.LogLevel = lvl

	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("port %d out of range", cfg.Port)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("HERMES_HOST"); v != "" {
		cfg.Host = v
	}
	if v := getenv("HERMES_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HERMES_PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := getenv("HERMES_VIEWS"); v != "" {
		cfg.ViewsRoot = v
	}
	if v := getenv("HERMES_PUBLIC"); v != "" {
		cfg.PublicRoot = v
	}
	if v := getenv("HERMES_LOG"); v != "" {
		cfg.LogPath = v
	}
	if v := getenv("HERMES_READ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HERMES_READ_TIMEOUT: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if v := getenv("HERMES_LOG_LEVEL"); v != "" {
		lvl, err := zerolog.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("HERMES_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return nil
}
