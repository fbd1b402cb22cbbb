// Package servecmder provides the serve command, which runs the tracelens
// API server backed by a storage driver, a background analysis pool and an
// event stream publisher.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tracelens/api"
	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/config"
	"github.com/papercomputeco/tracelens/pkg/worker"
)

type ServeCommander struct {
	listen      string
	storage     string
	sqlitePath  string
	postgresDSN string
	eventStream string
	brokers     []string
	topic       string
	workers     uint
	queueSize   uint
	lateStage   []string

	debug     bool
	logJSON   bool
	logFile   string
	noMCP     bool
	configDir string

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the tracelens API server.

Traces are stored with the configured storage driver (inmemory, sqlite or
postgres). Every stored trace, and every trace receiving new groundedness
metrics, is re-analyzed by a background worker pool and an analysis event is
published to the configured event stream (nop or kafka). The MCP endpoint is
mounted at /mcp.

Flags override environment variables (TRACELENS_API_LISTEN,
TRACELENS_STORAGE_DRIVER, ...), which override config.toml values.

Examples:
  tracelens serve
  tracelens serve --storage sqlite --sqlite ./tracelens.db
  tracelens serve --storage postgres --postgres-dsn postgres://localhost/tracelens
  tracelens serve --eventstream kafka --brokers kafka-1:9092,kafka-2:9092
  tracelens serve --log-file /var/log/tracelens.json`

const serveShortDesc string = "Run the tracelens API server"

var serveFlags = []string{
	config.FlagListen,
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventStream,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagWorkers,
	config.FlagQueueSize,
	config.FlagLateStage,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagLateStage, &cmder.lateStage)
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	log, logCloser, err := newServeLogger(os.Stdout, c.debug, c.logJSON, c.logFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	c.logger = log

	cfg := config.FromViper(c.viper)

	driver, err := newStorageDriver(ctx, cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := newPublisher(cfg.EventStream, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	engine := analysis.NewEngine(
		analysis.WithLogger(c.logger),
		analysis.WithLateStageNames(cfg.Analysis.LateStageNames),
	)

	pool, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Engine:     engine,
		Publisher:  publisher,
		NumWorkers: cfg.Worker.Workers,
		QueueSize:  cfg.Worker.QueueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Engine:     engine,
		Enqueuer:   pool,
		DisableMCP: c.noMCP,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
	}

	// The server stops accepting requests before the pool drains.
	if err := server.Shutdown(); err != nil {
		c.logger.Error("API server shutdown failed", "error", err)
	}
	return nil
}
