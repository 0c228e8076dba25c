package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scrumboard/config"
	"scrumboard/pkg/db"
	pkgconfig "scrumboard/pkg/config"
	pkglogger "scrumboard/pkg/logger"
)

// app holds what subcommands share. The pool is opened on first use so
// commands that never touch the database do not need one.
type app struct {
	env       string
	configDir string
	jsonOut   bool

	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func (a *app) db(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := db.NewConnection(ctx, a.cfg.DB, a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return pool, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// print writes v as JSON with --json, otherwise calls human.
func (a *app) print(w io.Writer, v any, human func(w io.Writer)) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}

// NewRootCmd builds the boardctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boardctl",
		Short: "Operate a scrumboard deployment",
		Long: `boardctl runs migrations, repairs board ordering, replays outbox
events and mints development session tokens.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(a.env, a.configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			if a.logger == nil {
				a.logger = pkglogger.NewLogger()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.env, "env", pkgconfig.GetConfigEnv(), "Config environment (CONFIG_ENV)")
	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", pkgconfig.GetEnv("CONFIG_DIR", "config"), "Directory holding base.yaml")
	cmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Output in JSON format")

	cmd.AddCommand(migrateCmd(a))
	cmd.AddCommand(outboxCmd(a))
	cmd.AddCommand(boardCmd(a))
	cmd.AddCommand(tokenCmd(a))

	return cmd
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
