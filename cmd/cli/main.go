package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"datahub/internal/config"
	"datahub/internal/container"
	"datahub/internal/health"
	"datahub/internal/logging"
	"datahub/internal/syncer"
	"datahub/internal/worksheet"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// exitError carries a process exit code without printing anything more.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "datahub",
		Short:         "Sync SharePoint worksheets into the DataHub database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newSyncCmd(),
		newWorksheetsCmd(),
		newHealthCmd(),
		newMigrateCmd(),
		newResetCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if e, ok := err.(exitError); ok {
			os.Exit(e.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the database. Callers close the
// returned container and closer.
func setup(ctx context.Context, migrate bool) (*container.Container, io.Closer, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, ctx, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, logFile := logging.Setup(cfg.Logging)

	c, err := container.New(cfg, logger)
	if err != nil {
		logFile.Close()
		return nil, nil, ctx, err
	}
	ctx = logger.WithContext(ctx)
	if err := c.InitWithDatabase(ctx, migrate); err != nil {
		c.Close()
		logFile.Close()
		return nil, nil, ctx, err
	}
	return c, logFile, ctx, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSyncCmd() *cobra.Command {
	var all bool
	var file, mohadinFile string
	var projectID string

	cmd := &cobra.Command{
		Use:   "sync [worksheet...]",
		Short: "Sync worksheets into the database",
		Long: `Sync worksheets from the configured SharePoint workbooks.

With no arguments the scheduled set runs: every worksheet except the
historical QA sheets. --all adds those. Names ignore case, spaces and
underscores.

--file and --mohadin-file read the Lawley and Mohadin workbooks from disk.
Without worksheet names a local run syncs only the worksheets of the
workbooks given.

Examples:
  datahub sync
  datahub sync HLD_Pole "Nokia Exp"
  datahub sync --file ./Lawley.xlsx tracker_pole
  datahub sync --mohadin-file ./Mohadin.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logFile, ctx, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer logFile.Close()
			defer c.Close()

			jobs, err := syncer.Targets(c.Catalog, args, all)
			if err != nil {
				return err
			}
			local := syncer.Locators{}
			if file != "" {
				local[worksheet.FileLawley] = file
			}
			if mohadinFile != "" {
				local[worksheet.FileMohadin] = mohadinFile
			}
			if len(local) > 0 && len(args) == 0 {
				jobs = local.Configured(jobs)
			}
			if err := c.InitSync(local); err != nil {
				return err
			}

			opts := c.SyncOptions()
			if projectID != "" {
				opts.ProjectID = projectID
			}
			summary := c.Syncer.SyncAll(ctx, jobs, opts)
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if !summary.Success {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Sync every worksheet, historical QA sheets included")
	cmd.Flags().StringVar(&file, "file", "", "Read the Lawley workbook from a local file instead of SharePoint")
	cmd.Flags().StringVar(&mohadinFile, "mohadin-file", "", "Read the Mohadin workbook from a local file instead of SharePoint")
	cmd.Flags().StringVar(&projectID, "project-id", "", "Project id stamped on every synced row")
	return cmd
}

func newWorksheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worksheets",
		Short: "List the worksheets this tool can sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container.New(&config.Config{}, zerolog.Nop())
			if err != nil {
				return err
			}
			scheduled := map[string]bool{}
			for _, j := range c.Catalog.DefaultSync() {
				scheduled[j.Descriptor().Name] = true
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-22s %-26s %-13s %-8s %s\n", "WORKSHEET", "TABLE", "KEY", "FILE", "MODE")
			for _, j := range c.Catalog.All() {
				d := j.Descriptor()
				mode := "upsert"
				if d.AppendOnly() {
					mode = "append-only"
				}
				if !scheduled[d.Name] {
					mode += ", on demand"
				}
				fmt.Fprintf(out, "%-22s %-26s %-13s %-8s %s\n", d.Name, d.Table, d.KeyColumn, d.File, mode)
			}
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check freshness, row counts and durations of every scheduled worksheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logFile, ctx, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer logFile.Close()
			defer c.Close()

			report, err := c.Health.Run(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				err = printJSON(cmd.OutOrStdout(), report)
			} else {
				_, err = fmt.Fprint(cmd.OutOrStdout(), health.Markdown(report))
			}
			if err != nil {
				return err
			}
			if !report.Healthy {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logFile, ctx, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer logFile.Close()
			defer c.Close()

			migrator := c.DB.Migrator(c.Logger)
			out := cmd.OutOrStdout()
			if status {
				rows, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range rows {
					state := "pending"
					if s.Applied {
						state = "applied " + s.AppliedAt
					}
					if s.Drifted {
						state += " (changed since applied)"
					}
					fmt.Fprintf(out, "%s %-24s %s\n", s.Version, s.Name, state)
				}
				return nil
			}

			applied, err := migrator.Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "Applied %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show migration status instead of applying")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset <worksheet>",
		Short: "Delete every row synced from a worksheet's table",
		Long: `Delete every row of the worksheet's destination table so the next sync
reloads it from scratch. Worksheets sharing a table (the QA sheets) are
reset together.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes data; pass --yes to confirm")
			}
			c, logFile, ctx, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer logFile.Close()
			defer c.Close()

			job, ok := c.Catalog.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown worksheet %q", args[0])
			}
			table := job.Descriptor().Table
			removed, err := c.Records.Reset(ctx, table)
			if err != nil {
				return err
			}
			c.Logger.Warn().Str("table", table).Int64("rows", removed).Msg("Table reset")
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rows from %s\n", removed, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
