// Package watchcmder provides the watch command, which re-analyzes trace
// exports in a directory as they change.
package watchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/cliui"
	"github.com/papercomputeco/tracelens/pkg/config"
	"github.com/papercomputeco/tracelens/pkg/eventstream"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/watch"
)

type watchCommander struct {
	dir           string
	debounce      time.Duration
	noInitialScan bool
	jsonOutput    bool
	lateStage     []string
	debug         bool

	out    io.Writer
	viper  *viper.Viper
	logger *slog.Logger
}

const watchLongDesc string = `Watch a directory of trace exports.

Every *.json file in the directory is analyzed when the watch starts and again
each time it is written. One line is printed per analysis with the trace id,
its highest leak level and its contradicted observations. With --json, one
analysis event is printed per line instead.

Examples:
  tracelens watch ./exports
  tracelens watch ./exports --debounce 1s --no-initial-scan
  tracelens watch ./exports --json | jq .max_leak_level`

const watchShortDesc string = "Watch a directory of trace exports"

var watchFlags = []string{config.FlagLateStage}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, watchFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.dir = args[0]
			cmder.out = cmd.OutOrStdout()

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

	cmd.Flags().DurationVar(&cmder.debounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed file is analyzed")
	cmd.Flags().BoolVar(&cmder.noInitialScan, "no-initial-scan", false, "Skip the exports already present when the watch starts")
	cmd.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print one analysis event per line as JSON")
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagLateStage, &cmder.lateStage)

	return cmd
}

func (c *watchCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	lateStage := c.lateStage
	if c.viper != nil {
		lateStage = config.FromViper(c.viper).Analysis.LateStageNames
	}

	engine := analysis.NewEngine(
		analysis.WithLogger(c.logger),
		analysis.WithLateStageNames(lateStage),
	)

	opts := []watch.Option{watch.WithDebounce(c.debounce)}
	if c.noInitialScan {
		opts = append(opts, watch.WithoutInitialScan())
	}

	c.logger.Info("watching trace exports", "dir", c.dir, "debounce", c.debounce)

	return watch.Watch(ctx, c.dir, engine, c.logger, c.print, opts...)
}

func (c *watchCommander) print(ev watch.Event) {
	name := filepath.Base(ev.Path)

	if ev.Err != nil {
		c.logger.Warn("trace export not analyzed", "path", ev.Path, "error", ev.Err)
		if !c.jsonOutput {
			fmt.Fprintf(c.out, "  %s %s %s\n", cliui.FailMark, name, cliui.DimStyle.Render(ev.Err.Error()))
		}
		return
	}

	if c.jsonOutput {
		data, err := json.Marshal(eventstream.NewAnalysisCompletedEvent(ev.Result, time.Now()))
		if err != nil {
			c.logger.Error("encoding analysis event", "path", ev.Path, "error", err)
			return
		}
		fmt.Fprintln(c.out, string(data))
		return
	}

	fmt.Fprintln(c.out, FormatLine(name, ev.Result))
}

// FormatLine renders the one-line verdict printed for each analysis.
func FormatLine(name string, r *analysis.Result) string {
	parts := []string{
		cliui.SuccessMark,
		name,
		cliui.KeyStyle.Render(r.TraceID),
		cliui.LevelBadge(r.MaxLeak()),
	}

	if contradicted := r.Contradicted(); len(contradicted) > 0 {
		parts = append(parts, cliui.DimStyle.Render("contradicted: "+strings.Join(contradicted, ",")))
	}
	if r.RootCauseObservationID != "" {
		parts = append(parts, cliui.DimStyle.Render("root cause: "+r.RootCauseObservationID))
	}

	return "  " + strings.Join(parts, " ")
}
