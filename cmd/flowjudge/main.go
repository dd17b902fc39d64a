package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/justuju/flowjudge/blobstore"
	"github.com/justuju/flowjudge/conf"
	"github.com/justuju/flowjudge/gemini"
	"github.com/justuju/flowjudge/httpapi"
	"github.com/justuju/flowjudge/judge"
	"github.com/justuju/flowjudge/lifecycle"
	"github.com/justuju/flowjudge/manifest"
	"github.com/justuju/flowjudge/problems"
	"github.com/justuju/flowjudge/prompt"
	"github.com/justuju/flowjudge/recordstore"
)

func main() {
	// .env is optional; real deployments set the environment directly
	godotenv.Load()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	})))

	cmd := &cli.Command{
		Name:  "flowjudge",
		Usage: "grade hand-drawn flowcharts through code generation and an automated judge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
				Value: "flowjudge.toml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "process-gemini",
				Usage: "generate code for every new submission, one model call per row",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = orch.ProcessGemini(ctx)
					return err
				},
			},
			{
				Name:  "enqueue-batch",
				Usage: "collect new submissions into one asynchronous batch job",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = orch.EnqueueGeminiBatch(ctx)
					return err
				},
			},
			{
				Name:  "ingest-batches",
				Usage: "check registered batch jobs and ingest finished results",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = orch.IngestBatches(ctx)
					return err
				},
			},
			{
				Name:  "process-judge",
				Usage: "submit generated code to the judge",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = orch.ProcessJudge(ctx)
					return err
				},
			},
			{
				Name:  "poll-verdicts",
				Usage: "fetch verdicts for judged submissions",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					_, err = orch.PollVerdicts(ctx)
					return err
				},
			},
			{
				Name:  "serve",
				Usage: "serve the trigger and record API over http",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "listen address",
						Value: ":8080",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					orch, err := buildOrchestrator(cmd.String("config"))
					if err != nil {
						return err
					}
					address := cmd.String("address")
					slog.Info("starting server", "address", address)
					return httpapi.NewHttpServer(orch).Start(address)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildOrchestrator(configPath string) (*lifecycle.Orchestrator, error) {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blobs, err := blobstore.NewS3Blobs(cfg.Storage.Region, cfg.Storage.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}
	master, err := recordstore.NewDdbDataset(cfg.Storage.Region, cfg.Data.Table, cfg.Data.MasterDataset)
	if err != nil {
		return nil, fmt.Errorf("failed to init master dataset: %w", err)
	}
	catalogDs, err := recordstore.NewDdbDataset(cfg.Storage.Region, cfg.Data.Table, cfg.Data.CatalogDataset)
	if err != nil {
		return nil, fmt.Errorf("failed to init catalog dataset: %w", err)
	}
	registry, err := recordstore.NewDdbDataset(cfg.Storage.Region, cfg.Data.Table, cfg.Data.RegistryDataset)
	if err != nil {
		return nil, fmt.Errorf("failed to init registry dataset: %w", err)
	}

	ai := gemini.NewClient(cfg.Gemini, blobs, gemini.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	})
	catalog := problems.NewCatalog(catalogDs, cfg.Judge.CoerceNumericProblemIDs)

	return lifecycle.New(
		cfg,
		blobs,
		master,
		catalog,
		ai,
		judge.NewClient(cfg.Judge),
		manifest.NewTracker(blobs, registry),
		prompt.Text(),
		prompt.Version(),
	), nil
}
