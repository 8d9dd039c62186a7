package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	catstatus "github.com/always-cache/catstatus"
	"github.com/always-cache/catstatus/cache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// this is set by goreleaser
var version string

func init() {
	if version == "" {
		version = "DEV"
	}
}

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse configuration")
	}
	if err := setupLogging(cfg); err != nil {
		log.Fatal().Err(err).Msg("Cannot open log file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// setupLogging sets up log output to stdout,
// and also to the log file if specified.
func setupLogging(cfg Config) error {
	logLevel := zerolog.DebugLevel
	if cfg.Trace {
		logLevel = zerolog.TraceLevel
	}
	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if cfg.LogFile != "" {
		logFileOutput, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		logOutputs = append(logOutputs, logFileOutput)
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()
	return nil
}

// run wires the components together and serves until ctx is done.
func run(ctx context.Context, cfg Config) error {
	store, err := cache.New(cfg.Store)
	if err != nil {
		return err
	}
	images, err := catstatus.NewImageCache(catstatus.ImageCacheConfig{
		Store: store,
		Provider: catstatus.NewHTTPProvider(catstatus.HTTPProviderConfig{
			BaseURL: cfg.ImageBaseURL,
			Timeout: cfg.FetchTimeout,
		}),
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("init image cache: %w", err)
	}
	defer images.Close()

	server := catstatus.NewServer(catstatus.ServerConfig{
		Resolver: catstatus.NewResolver(catstatus.ResolverConfig{
			Timeout: cfg.ResolveTimeout,
		}),
		Cache: images,
	})
	log.Info().
		Str("store", cfg.Store).
		Str("images", cfg.ImageBaseURL).
		Msgf("Serving cat status images on %s", cfg.Addr)
	return server.ListenAndServe(ctx, cfg.Addr)
}
