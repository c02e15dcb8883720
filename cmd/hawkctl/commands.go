package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hawkkeyed-backend/internal/bootstrap"
	"hawkkeyed-backend/internal/history"
	"hawkkeyed-backend/internal/report"
	"hawkkeyed-backend/internal/shared/config"
	"hawkkeyed-backend/internal/shared/storage/db"
	"hawkkeyed-backend/internal/workflow"
)

const defaultSession = "cli"

// buildApp is swapped in tests.
var buildApp = bootstrap.Build

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hawkctl",
		Short:         "Run Hawkkeyed workflows and render reports from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newReportCmd(), newHistoryCmd(), newMigrateCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		kindFlag string
		text     string
		file     string
		pdfOut   string
		session  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one workflow run and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := workflow.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			raw := workflow.RawInput{Text: text}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read input file: %w", err)
				}
				raw.File = &workflow.RawFile{
					Name:     filepath.Base(file),
					MimeType: mime.TypeByExtension(filepath.Ext(file)),
					Data:     data,
				}
			}

			app, err := buildApp(config.Load())
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			defer app.Close()

			ctx := workflow.WithSessionID(cmd.Context(), session)
			res := app.Orchestrator.Run(ctx, kind, raw)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("run %s failed: %s", res.ID, res.Error)
			}
			if pdfOut != "" {
				return renderToFile(res, pdfOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "workflow", "w", string(workflow.KindDocumentSummary), "workflow to run")
	cmd.Flags().StringVarP(&text, "text", "t", "", "input text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (pdf, docx, csv, txt, image)")
	cmd.Flags().StringVar(&pdfOut, "pdf", "", "write the report PDF to this path")
	cmd.Flags().StringVar(&session, "session", defaultSession, "session id used for history")
	return cmd
}

func newReportCmd() *cobra.Command {
	var out string
	var format string
	cmd := &cobra.Command{
		Use:   "report <result.json>",
		Short: "Render a saved run result to PDF or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read run result: %w", err)
			}
			var res workflow.RunResult
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("decode run result: %w", err)
			}
			if err := report.Reportable(res); err != nil {
				return err
			}
			switch format {
			case "pdf":
				if out == "" {
					out = report.Render(res).Filename()
				}
				if err := renderToFile(res, out); err != nil {
					return err
				}
			case "txt":
				if out == "" {
					out = report.TextFilename(res)
				}
				if err := os.WriteFile(out, []byte(report.Text(res, time.Now())), 0o644); err != nil {
					return fmt.Errorf("write text report: %w", err)
				}
			default:
				return fmt.Errorf("unknown format %q (want pdf or txt)", format)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (defaults to the report filename)")
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf or txt")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var session string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the run history of a session",
	}
	cmd.PersistentFlags().StringVar(&session, "session", defaultSession, "session id")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(ctx context.Context, svc *history.Service) error {
				entries, err := svc.List(ctx, session, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Timestamp.Format(time.RFC3339), e.Workflow, e.TruncatedInput)
				}
				stats, err := svc.Stats(ctx, session)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "total=%d most_used=%s success_rate=%s\n", stats.TotalRuns, stats.MostUsed, stats.SuccessRate)
				return nil
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "number of entries")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(ctx context.Context, svc *history.Service) error {
				return svc.Clear(ctx, session)
			})
		},
	}
	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer sqlDB.Close()
			if status {
				return db.MigrationStatus(ctx, sqlDB)
			}
			return db.RunMigrations(ctx, sqlDB)
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}

func withHistory(ctx context.Context, fn func(context.Context, *history.Service) error) error {
	app, err := buildApp(config.Load())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, app.History)
}

func renderToFile(res workflow.RunResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := report.WritePDF(report.Render(res), f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
