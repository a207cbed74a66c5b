package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/audit"
	"github.com/contentkit/schemaload/internal/config"
	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/loader"
	"github.com/contentkit/schemaload/internal/manifest"
	"github.com/contentkit/schemaload/internal/observability"
	"github.com/contentkit/schemaload/internal/source"
	"github.com/contentkit/schemaload/internal/store"
	"github.com/contentkit/schemaload/internal/writer"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel)

	log.Info().
		Str("version", version).
		Str("strategy", cfg.Writer.Strategy).
		Msg("Starting schema loader")

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "schemaload",
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Load failed")
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := store.NewHTTPClient(store.Options{
		BaseURL:  cfg.Store.URL,
		Username: cfg.Store.Username,
		Password: cfg.Store.Password,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	opts := loader.Options{ValidationTarget: cfg.ValidationTarget}

	if cfg.ManifestPath != "" {
		m, err := manifest.Open(cfg.ManifestPath)
		if err != nil {
			return err
		}
		defer m.Close()
		opts.Manifest = m
	}

	if cfg.Audit.Enabled {
		auditClient, err := audit.NewClient(cfg.Audit.Host, cfg.Audit.Port, cfg.Audit.Database)
		if err != nil {
			return err
		}
		defer auditClient.Close()
		opts.Audit = audit.NewSink(auditClient)
	}

	newWriter := func() writer.BatchWriter {
		if cfg.Writer.Strategy == config.StrategyPooled {
			return writer.NewPooledWriter(client, cfg.Writer.BatchSize, cfg.Writer.ThreadCount)
		}
		return writer.NewSequentialWriter(client, cfg.Writer.BatchSize)
	}

	src := source.New(source.Config{
		Roots:              cfg.Source.Roots,
		IncludePatterns:    cfg.Source.IncludePatterns,
		ExcludePatterns:    cfg.Source.ExcludePatterns,
		TemplatesDir:       cfg.Source.TemplatesDir,
		DefaultPermissions: capabilitiesFor(cfg.Source.Permissions),
		DefaultCollections: cfg.Source.Collections,
	})

	docs, err := src.Documents()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		log.Warn().Strs("roots", cfg.Source.Roots).Msg("No documents found, nothing to load")
		return nil
	}

	orch := loader.New(client, newWriter, opts)
	result, err := orch.Load(ctx, docs)
	if err != nil {
		return err
	}

	log.Info().
		Int("loaded", len(result.Loaded)).
		Int("validated", len(result.Validated)).
		Int("skipped", len(result.Skipped)).
		Msg("Schema load finished")

	return nil
}

// capabilitiesFor converts the config's string capabilities to domain ones
func capabilitiesFor(perms map[string][]string) map[string][]domain.Capability {
	if len(perms) == 0 {
		return nil
	}
	out := make(map[string][]domain.Capability, len(perms))
	for role, caps := range perms {
		for _, c := range caps {
			out[role] = append(out[role], domain.Capability(c))
		}
	}
	return out
}
