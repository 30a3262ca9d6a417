package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/chirst/relq/config"
	"github.com/chirst/relq/db"
	"github.com/chirst/relq/logging"
	"github.com/chirst/relq/metrics"
	"github.com/spf13/cobra"
)

// app holds what the commands share. It is filled in before any command runs
// and released by close.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
	db      *db.DB
	metrics *http.Server
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	a := &app{}
	defer a.close()
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	return cmd.Execute()
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relq",
		Short:         "relq - an embedded relational database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	flags.String("db", "relq", "database file name without the .db extension")
	flags.Bool("memory", false, "keep the database in memory")
	flags.Int("cache-size", 1000, "number of pages kept in the page cache")
	flags.Duration("lock-timeout", 5*time.Second, "how long a statement waits for a table lock")
	flags.String("log-level", "", "log level (debug|info|warn|error), empty disables logging")
	flags.String("log-format", "text", "log format (text|json)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(newReplCommand(a))
	cmd.AddCommand(newExecCommand(a))
	cmd.AddCommand(newBenchCommand(a))
	return cmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Logging())
	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(cfg.Metrics.Addr); err != nil {
			return err
		}
	}
	a.db, err = db.New(cfg.Database(a.logger))
	if err != nil {
		return err
	}
	a.logger.Info("opened database", "file", cfg.DB.File, "memory", cfg.DB.Memory)
	return nil
}

func (a *app) serveMetrics(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", l.Addr().String())
	return nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		a.metrics.Shutdown(ctx)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}
