package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kvilt1/merger-simple/internal"
	"github.com/Kvilt1/merger-simple/internal/di"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/Kvilt1/merger-simple/internal/validator"
	"github.com/spf13/cobra"
)

var (
	flags   structures.CliFlags
	rootCmd = &cobra.Command{
		Use:           "snapdays",
		Short:         "Rebuild a messaging export into a day-first media archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flags.OutputDir, "output", "o", "", "Output directory")
	rootCmd.PersistentFlags().BoolVar(&flags.DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.Compact, "compact", false, "Write compact JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fuse overlays, map media to messages and write the day index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), func(ctx context.Context, app *internal.App) (*validator.Report, error) {
				return app.Run(ctx)
			})
		},
	}
	runCmd.Flags().StringVarP(&flags.ExportDir, "input", "i", "", "Export folder, or a directory containing one")
	runCmd.Flags().BoolVar(&flags.NoHash, "no-hash", false, "Keep original file names in the media pool")
	runCmd.Flags().BoolVar(&flags.NoValidate, "no-validate", false, "Skip output validation")
	runCmd.Flags().BoolVar(&flags.KeepWorkDir, "keep-work", false, "Keep the working media pool after the run")
	runCmd.Flags().IntVarP(&flags.Workers, "workers", "w", 0, "I/O worker count")
	rootCmd.AddCommand(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-validate an existing output against its saved trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.ValidateOnly = true
			return execute(cmd.Context(), func(ctx context.Context, app *internal.App) (*validator.Report, error) {
				return app.Validate(ctx)
			})
		},
	}
	rootCmd.AddCommand(validateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, fn func(context.Context, *internal.App) (*validator.Report, error)) error {
	app, err := di.InitApp(&flags)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := fn(ctx, app)
	if err != nil {
		if errors.Is(err, validator.ErrValidationFailed) {
			app.Logger().Errorf(providers.TypeApp, "Validation failed, see %s", validator.ReportFile)
		}
		return err
	}
	if report != nil {
		app.Logger().Infof(providers.TypeApp, "Validation OK (run %s)", report.RunID)
	}
	return nil
}
