// Package cli provides the command-line interface for dictate.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/app"
	"github.com/raphaelgruber/dictate-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	cfg         config.Config
	logger      *slog.Logger
	closeLog    func() error
	application *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dictate",
	Short: "Turn dictated text into workspace records",
	Long: `Dictate sorts a piece of dictated text into a category (task, note,
ingredient, recipe, recommendation, idea, wordle, restaurant or person update),
extracts its fields, links the people, companies and other records it mentions,
and saves it to your workspace.

Every run prints an action log: one line per record matched, created or
updated.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		consoleLevel := slog.LevelWarn
		if verbose {
			consoleLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel, consoleLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			application = nil
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// getApp wires the pipeline on first use. Commands that only read the
// schema never connect to the model or the store.
func getApp(ctx context.Context) (*app.App, error) {
	if application != nil {
		return application, nil
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	application = a
	return a, nil
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
