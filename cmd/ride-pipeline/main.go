package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/config"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/logging"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/metadata"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/metrics"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/pipeline"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/source"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [input]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "input is a local path or a file://, gs://, s3:// or mem:// URL.")
		fmt.Fprintf(flag.CommandLine.Output(), "Configuration is read from $%s and %s_* variables.\n\n", config.FileEnv, config.EnvPrefix)
		flag.PrintDefaults()
	}
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s %s (%s)\n", pipeline.ProducerName, pipeline.Version, pipeline.GitSHA)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if flag.NArg() > 0 {
		cfg.Input.Path = flag.Arg(0)
	}

	log := logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	log.Info("ride pipeline starting", "version", pipeline.Version, "git_sha", pipeline.GitSHA)

	if cfg.Input.Path == "" {
		log.Error("no input given: pass a path or set RIDE_INPUT_PATH")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init(cfg.Metrics.Namespace)

	src, err := source.NewLoader()
	if err != nil {
		log.Error("failed to create source", "error", err)
		return 1
	}
	defer src.Close()

	store, err := storage.NewStore(storage.Config{
		Backend:    cfg.Output.Backend,
		LocalDir:   cfg.Output.LocalDir,
		Bucket:     cfg.Output.Bucket,
		S3Endpoint: cfg.Output.S3Endpoint,
		S3Region:   cfg.Output.S3Region,
		Prefix:     cfg.Output.Prefix,
	})
	if err != nil {
		log.Error("failed to create storage", "error", err)
		return 1
	}
	defer store.Close()

	catalog, err := metadata.NewWriter(metadata.CatalogConfig{
		PostgresDSN: cfg.Catalog.PostgresDSN,
		Namespace:   cfg.Catalog.Namespace,
	})
	if err != nil {
		log.Warn("catalog unavailable, continuing without it", "error", err)
		catalog = nil
	}
	if catalog != nil {
		defer catalog.Close()
	}

	p := pipeline.New(cfg, src, store, catalog, m)
	res, runErr := p.Run(ctx, cfg.Input.Path)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("failed to write metrics", "error", err)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			log.Info("run interrupted", "error", runErr)
		}
		fmt.Fprintf(os.Stderr, "pipeline failed at stage %q: %v\n", pipeline.FailedStage(runErr), runErr)
		return 1
	}

	for _, a := range res.Published.Artifacts {
		fmt.Println(a.URI)
	}
	log.Info("pipeline finished", "run_id", res.RunID, "manifest", res.Published.ManifestURI)
	return 0
}
