package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dea-registry/app/services"
	"github.com/dea-registry/internal/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dea-worker",
		Short:         "Tareas por lotes del registro DEA: preprocesado y carga del callejero",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPreprocessCmd(false), newPreprocessCmd(true), newSeedCmd())
	return root
}

// withContainer runs fn with the wired services and a context cancelled on
// SIGINT/SIGTERM
func withContainer(fn func(ctx context.Context, app *bootstrap.Container) error) error {
	bootstrap.LoadConfig()
	logger := bootstrap.InitLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	return fn(ctx, app)
}

func newPreprocessCmd(retryFailed bool) *cobra.Command {
	var limit int
	use, short := "preprocess", "Valida todos los registros pendientes"
	if retryFailed {
		use, short = "retry-failed", "Reintenta los registros pendientes y los fallidos reintentables"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, app *bootstrap.Container) error {
				run, err := app.Preprocess.Run(ctx, services.PreprocessOptions{RetryFailed: retryFailed, Limit: limit})
				if err != nil {
					return err
				}
				app.Logger.Info("preprocessing finished",
					zap.String("run_id", run.RunID),
					zap.String("status", run.Status),
					zap.Int("total", run.Total),
					zap.Int("succeeded", run.Succeeded),
					zap.Int("failed", run.Failed),
					zap.Int("permanently_failed", run.PermanentlyFailed))
				if run.Status == services.RunStatusCancelled {
					return fmt.Errorf("run %s cancelled", run.RunID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "máximo de registros a procesar (0 = todos)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var (
		file           string
		version        string
		dryRun         bool
		rebuildIndexes bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Carga una versión del callejero desde un fichero JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := services.LoadGazetteerFile(file)
			if err != nil {
				return err
			}
			return withContainer(func(ctx context.Context, app *bootstrap.Container) error {
				result, err := app.Admin.SeedGazetteer(ctx, version, data, services.SeedOptions{
					DryRun:         dryRun,
					RebuildIndexes: rebuildIndexes,
				})
				if result != nil && result.Validation != nil {
					for _, w := range result.Validation.Warnings {
						app.Logger.Warn("gazetteer validation", zap.String("warning", w))
					}
				}
				if err != nil {
					return err
				}
				app.Logger.Info("seed finished",
					zap.String("gazetteer_version", result.GazetteerVersion),
					zap.Int("records", result.RecordsProcessed),
					zap.Int("written", result.RecordsWritten),
					zap.Bool("dry_run", result.DryRun))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fichero JSON con los registros del callejero")
	cmd.Flags().StringVar(&version, "version", "", "versión del callejero")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "sólo validar, sin escribir")
	cmd.Flags().BoolVar(&rebuildIndexes, "rebuild-indexes", true, "reconstruir el índice de Meilisearch")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
