// Package commands holds the supportctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"birdwatch-support/internal/bootstrap"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/logger"
	emailreconcile "birdwatch-support/internal/workers/communication/email-reconcile"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
	submit "birdwatch-support/internal/workers/support/submit-issue-report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Env is shared by every subcommand.
type Env struct {
	LoadConfig func() (*config.Config, error)
	Logger     *zap.Logger
	Out        io.Writer
}

// QuotaReader is satisfied by *emailsend.Service.
type QuotaReader interface {
	QuotaUsage(ctx context.Context) (used, limit int64, err error)
}

func (e *Env) gateway(ctx context.Context) (*emailsend.Service, *bootstrap.Infra, error) {
	cfg, err := e.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	infra, err := bootstrap.Connect(ctx, cfg, e.Logger)
	if err != nil {
		return nil, nil, err
	}
	gw, err := bootstrap.NewGateway(ctx, cfg, infra, logger.NewZapAdapter(e.Logger))
	if err != nil {
		infra.Close()
		return nil, nil, err
	}
	return gw, infra, nil
}

func QuotaCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's mail gateway quota usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			gw, infra, err := env.gateway(ctx)
			if err != nil {
				return err
			}
			defer infra.Close()

			return PrintQuota(ctx, env.Out, gw)
		},
	}
}

// PrintQuota writes today's usage as "used/limit (remaining N)".
func PrintQuota(ctx context.Context, out io.Writer, q QuotaReader) error {
	used, limit, err := q.QuotaUsage(ctx)
	if err != nil {
		return fmt.Errorf("failed to read quota: %w", err)
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	_, err = fmt.Fprintf(out, "%d/%d (remaining %d)\n", used, limit, remaining)
	return err
}

// SchemaMigrator is satisfied by *database.PostgresClient.
type SchemaMigrator interface {
	EnsureSchema(ctx context.Context) error
}

func MigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the issues and email_queue tables if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg, err := env.LoadConfig()
			if err != nil {
				return err
			}
			infra, err := bootstrap.Connect(ctx, cfg, env.Logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			return RunMigrate(ctx, env.Out, infra.Postgres)
		},
	}
}

func RunMigrate(ctx context.Context, out io.Writer, m SchemaMigrator) error {
	if err := m.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	_, err := fmt.Fprintln(out, "schema up to date")
	return err
}

func ReconcileCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one email queue reconciliation pass",
		Long: `Re-send failed and stale pending emails from the queue.

Passes respect the daily quota and are serialized with running servers
and workers through the reconcile lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			gw, infra, err := env.gateway(ctx)
			if err != nil {
				return err
			}
			defer infra.Close()

			return RunReconcile(ctx, env.Out, gw)
		},
	}
}

// RunReconcile runs one pass and prints its result as JSON.
func RunReconcile(ctx context.Context, out io.Writer, r emailreconcile.Reconciler) error {
	result, err := r.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func SearchCommand(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search recorded issue reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg, err := env.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Elasticsearch.Enabled {
				return fmt.Errorf("issue search requires database.elasticsearch.enabled")
			}
			infra, err := bootstrap.Connect(ctx, cfg, env.Logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			var q string
			if len(args) == 1 {
				q = args[0]
			}
			index := submit.NewIssueIndex(infra.Elasticsearch, submit.ConfigFromApp(cfg).IssuesIndex)
			return RunSearch(ctx, env.Out, index, q, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of issues to show")

	return cmd
}

// RunSearch prints one line per matching issue.
func RunSearch(ctx context.Context, out io.Writer, s submit.IssueSearcher, q string, limit int) error {
	res, err := s.SearchIssues(ctx, q, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	fmt.Fprintf(out, "%d issue(s)\n", res.Total)
	for _, issue := range res.Issues {
		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			issue.CaseNumber,
			issue.ReportedAt.Format(time.RFC3339),
			issue.ReporterEmail,
			firstLine(issue.Description, 60),
		)
	}
	return nil
}

func firstLine(s string, max int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if len([]rune(s)) > max {
		return string([]rune(s)[:max-1]) + "…"
	}
	return s
}
