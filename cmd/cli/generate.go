package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dvloznov/artifact-engine/internal/config"
	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/export"
	"github.com/dvloznov/artifact-engine/internal/fabricate"
	"github.com/dvloznov/artifact-engine/internal/gcsuploader"
	infraBQ "github.com/dvloznov/artifact-engine/internal/infra/bigquery"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/dvloznov/artifact-engine/internal/pipeline"
	"github.com/dvloznov/artifact-engine/internal/rasterize"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/dvloznov/artifact-engine/internal/render"
	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func runGenerate(args []string) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 1
	}

	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	cfg, warnings, err := config.Load(fs, args, os.Getenv)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: "+w))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return exitUsage
	}
	if cfg.Total() == 0 {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Nothing to generate: pass at least one of -invoices, -receipts or -statements."))
		return exitUsage
	}

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	fmt.Println(banner(cfg))

	started := time.Now()
	reports, publishCounts, err := generate(ctx, log, cfg)
	fmt.Println(renderSummary(cfg, reports, publishCounts, time.Since(started)))
	if err != nil {
		log.Error().Err(err).Bool("fatal", errs.IsFatal(err)).Msg("Generation failed")
		if errors.Is(err, errs.ErrConfiguration) {
			return exitUsage
		}
		return 1
	}

	if cfg.GCSBucket != "" {
		bucket, prefix, err := splitBucket(cfg.GCSBucket)
		if err != nil {
			log.Error().Err(err).Msg("Invalid GCS bucket")
			return exitUsage
		}
		n, err := uploadTree(ctx, bucket, prefix, cfg.OutputDir)
		if err != nil {
			log.Error().Err(err).Msg("Upload failed")
			return 1
		}
		fmt.Printf("Uploaded %d files to gs://%s/%s\n", n, bucket, prefix)
	}
	return 0
}

// generate wires the collaborators from cfg and runs every requested kind.
// The returned map holds BigQuery row counts read back per kind when
// publishing is enabled.
func generate(ctx context.Context, log zerolog.Logger, cfg *config.Config) ([]*pipeline.Report, map[record.Kind]int64, error) {
	profile, err := loadProfile(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	deps, closeDeps, err := buildDeps(ctx, cfg, profile)
	if err != nil {
		return nil, nil, err
	}
	defer closeDeps()

	tier, err := degrade.ParseTier(cfg.Tier)
	if err != nil {
		return nil, nil, err
	}
	coord, err := pipeline.NewCoordinator(deps, pipeline.Options{
		OutputDir: cfg.OutputDir,
		Profile:   degrade.ProfileFor(string(tier)),
		KeepClean: cfg.KeepClean,
		Template:  cfg.Template,
	})
	if err != nil {
		return nil, nil, err
	}

	reports, runErr := coord.RunAll(ctx, cfg.Counts())

	var counts map[record.Kind]int64
	if sink, ok := deps.Publisher.(*infraBQ.Sink); ok {
		counts = map[record.Kind]int64{}
		for _, r := range reports {
			if r.PublishErr != nil {
				continue
			}
			n, err := sink.CountRows(ctx, r.Kind)
			if err != nil {
				log.Warn().Err(err).Str("kind", string(r.Kind)).Msg("Could not read back published rows")
				continue
			}
			counts[r.Kind] = n
		}
	}
	return reports, counts, runErr
}

func loadProfile(ctx context.Context, cfg *config.Config) (*vocab.Profile, error) {
	var (
		p   *vocab.Profile
		err error
	)
	switch {
	case cfg.ProfilePath == "":
		p, err = vocab.Default()
	case strings.HasPrefix(cfg.ProfilePath, "gs://"):
		data, ferr := gcsuploader.FetchFromGCS(ctx, cfg.ProfilePath)
		if ferr != nil {
			return nil, errs.Configf("profile", "fetch %s: %v", cfg.ProfilePath, ferr)
		}
		p, err = vocab.Parse(data)
	default:
		p, err = vocab.Load(cfg.ProfilePath)
	}
	if err != nil {
		return nil, err
	}

	if cfg.LLMVocab {
		mv, err := vocab.NewGeminiVocabulary(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		if err := mv.Enrich(ctx, p, cfg.LLMVocabItems); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func buildDeps(ctx context.Context, cfg *config.Config, profile *vocab.Profile) (pipeline.Deps, func(), error) {
	var (
		fabOpts    []fabricate.Option
		renderOpts []render.Option
		degOpts    []degrade.Option
	)
	if cfg.Seed != nil {
		fabOpts = append(fabOpts, fabricate.WithSeed(*cfg.Seed))
		renderOpts = append(renderOpts, render.WithSeed(*cfg.Seed))
		degOpts = append(degOpts, degrade.WithSeed(*cfg.Seed))
	}
	noop := func() {}

	engine, err := fabricate.New(profile, fabOpts...)
	if err != nil {
		return pipeline.Deps{}, noop, err
	}
	log := logger.FromContext(ctx)
	log.Info().Int64("seed", engine.Seed()).Msg("Fabrication engine ready")

	conv, err := render.DetectConverter()
	if err != nil {
		return pipeline.Deps{}, noop, err
	}
	renderer, err := render.NewRenderer(cfg.TemplatesDir, conv, renderOpts...)
	if err != nil {
		return pipeline.Deps{}, noop, err
	}
	raster, err := rasterize.New(cfg.DPI, rasterize.Format(cfg.ImageFormat))
	if err != nil {
		return pipeline.Deps{}, noop, err
	}
	if err := raster.CheckAvailable(); err != nil {
		return pipeline.Deps{}, noop, err
	}
	writer, err := export.NewWriter(cfg.ExportFormat)
	if err != nil {
		return pipeline.Deps{}, noop, err
	}

	deps := pipeline.Deps{
		Fabricator: engine,
		Renderer:   renderer,
		Rasterizer: raster,
		Degrader:   degrade.NewDegrader(degOpts...),
		Exporter:   export.NewExporter(writer, cfg.ImageFormat),
	}
	if cfg.BQProject == "" {
		return deps, noop, nil
	}

	sink, err := infraBQ.NewSink(ctx, cfg.BQProject, cfg.BQDataset, uuid.NewString())
	if err != nil {
		return pipeline.Deps{}, noop, errs.Configf("bq-project", "%v", err)
	}
	var kinds []record.Kind
	counts := cfg.Counts()
	for _, kind := range record.Kinds {
		if counts[kind] > 0 {
			kinds = append(kinds, kind)
		}
	}
	if err := sink.EnsureTables(ctx, kinds); err != nil {
		sink.Close()
		return pipeline.Deps{}, noop, err
	}
	log = logger.FromContext(ctx)
	log.Info().Str("run_id", sink.RunID()).Msg("Publishing summaries to BigQuery")
	deps.Publisher = sink
	return deps, func() { sink.Close() }, nil
}
