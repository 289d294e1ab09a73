package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bulkops/internal/config"
	"bulkops/internal/logger"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "bulkops",
		Short: "Bulk record mutation engine for fleet data",
		Long:  "bulkops applies chunked bulk edits, imports and exports over tabular record sets",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional)")

	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(undoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes the application.
func setup(ctx context.Context) (*App, logger.Logger, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	app := NewApp(cfg, log)
	if err := app.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	return app, log, nil
}

func applyCmd() *cobra.Command {
	var opts applyOptions
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a bulk edit batch to a records file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()

			return app.Apply(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.RecordsFile, "records", "", "Records JSON file")
	cmd.Flags().StringVar(&opts.SchemaFile, "schema", "", "Schema JSON file")
	cmd.Flags().StringVar(&opts.OperationsFile, "operations", "", "Operations JSON file")
	cmd.Flags().StringVar(&opts.OutFile, "out", "", "Write mutated records to this file")
	cmd.Flags().StringVar(&opts.UndoOutFile, "undo-out", "", "Write the undo entry to this file")
	cmd.Flags().StringVar(&opts.Level, "level", "", "Validation level: strict, moderate or permissive")
	cmd.Flags().BoolVar(&opts.UpdateExisting, "update-existing", true, "Overwrite fields that already hold a value")
	cmd.Flags().BoolVar(&opts.PreserveEmpty, "preserve-empty", false, "Leave empty fields untouched")
	return cmd
}

func importCmd() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a tabular file (csv or xlsx) as new records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()

			return app.Import(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "Tabular input file")
	cmd.Flags().StringVar(&opts.SchemaFile, "schema", "", "Schema JSON file")
	cmd.Flags().StringVar(&opts.ExistingFile, "existing", "", "Existing records JSON file for duplicate screening")
	cmd.Flags().StringVar(&opts.OutFile, "out", "", "Write created records to this file")
	cmd.Flags().BoolVar(&opts.PreviewOnly, "preview", false, "Print column mappings without importing")
	cmd.Flags().BoolVar(&opts.AcceptAll, "accept-mappings", false, "Accept auto-scored mappings, review flags included")
	cmd.Flags().StringVar(&opts.Level, "level", "", "Validation level: strict, moderate or permissive")
	return cmd
}

func exportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records to csv or json",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()

			return app.Export(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.RecordsFile, "records", "", "Records JSON file")
	cmd.Flags().StringVar(&opts.SchemaFile, "schema", "", "Schema JSON file")
	cmd.Flags().StringVar(&opts.OutFile, "out", "", "Output filename (default export-<id>.<format>)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "all", "Export scope: all, filtered or selected")
	cmd.Flags().StringVar(&opts.Format, "format", "csv", "Export format: csv or json")
	cmd.Flags().StringVar(&opts.Columns, "columns", "", "Comma-separated column projection")
	cmd.Flags().StringVar(&opts.SelectedIDs, "ids", "", "Comma-separated record ids for scope=selected")
	cmd.Flags().BoolVar(&opts.IncludeInternal, "include-internal", false, "Keep identifier and bookkeeping columns")
	return cmd
}

func undoCmd() *cobra.Command {
	var opts undoOptions
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Apply an undo entry back onto a records file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()

			return app.Undo(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.RecordsFile, "records", "", "Records JSON file")
	cmd.Flags().StringVar(&opts.EntryFile, "entry", "", "Undo entry JSON file")
	cmd.Flags().StringVar(&opts.OutFile, "out", "", "Output file (defaults to the records file)")
	return cmd
}
