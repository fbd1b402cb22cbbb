// Package analyzecmder provides the analyze command, which reconstructs the
// graph of one exported trace and prints its risk annotations.
package analyzecmder

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/cliui"
	"github.com/papercomputeco/tracelens/pkg/config"
	"github.com/papercomputeco/tracelens/pkg/logger"
)

type analyzeCommander struct {
	path          string
	artefactsPath string
	metricsPath   string
	lateStage     []string

	jsonOutput bool
	report     bool
	narrative  bool
	debug      bool

	out    io.Writer
	errOut io.Writer
	in     io.Reader
	viper  *viper.Viper
	logger *slog.Logger
}

const analyzeLongDesc string = `Analyze one exported agent trace.

The file may be a snapshot document ({"trace": ..., "artefacts": [...],
"metrics": [...]}), a trace object with an "observations" array, or a bare
array of observations. Use "-" to read from stdin.

The reconstructed parent graph is printed as a tree, each node annotated with
the rule that placed it, its leak risk and its groundedness label.

Examples:
  tracelens analyze trace.json
  tracelens analyze trace.json --artefacts artefacts.json --metrics metrics.json
  tracelens analyze trace.json --json | jq .parents
  cat trace.json | tracelens analyze - --report`

const analyzeShortDesc string = "Analyze an exported trace"

var analyzeFlags = []string{config.FlagLateStage}

func NewAnalyzeCmd() *cobra.Command {
	cmder := &analyzeCommander{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, analyzeFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.in = cmd.InOrStdin()

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.artefactsPath, "artefacts", "", "JSON file of artefact records to merge into the snapshot")
	cmd.Flags().StringVar(&cmder.metricsPath, "metrics", "", "JSON file of groundedness metric records to merge into the snapshot")
	cmd.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print the full analysis as JSON")
	cmd.Flags().BoolVar(&cmder.report, "report", false, "Print a per-observation table instead of the tree")
	cmd.Flags().BoolVar(&cmder.narrative, "narrative", false, "Also render the execution narrative")
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagLateStage, &cmder.lateStage)

	return cmd
}

func (c *analyzeCommander) run() error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	snapshot, err := c.loadSnapshot()
	if err != nil {
		return err
	}

	lateStage := c.lateStage
	if c.viper != nil {
		lateStage = config.FromViper(c.viper).Analysis.LateStageNames
	}

	engine := analysis.NewEngine(
		analysis.WithLogger(c.logger),
		analysis.WithLateStageNames(lateStage),
	)

	if c.jsonOutput {
		result := engine.Analyze(snapshot)
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	var result *analysis.Result
	msg := fmt.Sprintf("Analyzing %d observations", len(snapshot.Trace.Observations))
	_ = cliui.Step(c.errOut, msg, func() error {
		result = engine.Analyze(snapshot)
		return nil
	})

	fmt.Fprintln(c.out)
	if c.report {
		fmt.Fprintln(c.out, cliui.RenderReport(result))
	} else {
		fmt.Fprintln(c.out, cliui.RenderGraph(result))
	}
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, cliui.RenderSummary(result))

	if c.narrative {
		rendered, err := cliui.RenderMarkdown(cliui.NarrativeMarkdown(result.Narrative))
		if err != nil {
			c.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprintln(c.out, rendered)
	}

	return nil
}

func (c *analyzeCommander) loadSnapshot() (*analysis.Snapshot, error) {
	data, err := c.readInput(c.path)
	if err != nil {
		return nil, err
	}

	snapshot, err := analysis.DecodeSnapshot(data, traceIDFromPath(c.path))
	if err != nil {
		return nil, err
	}

	if c.artefactsPath != "" {
		raw, err := os.ReadFile(c.artefactsPath)
		if err != nil {
			return nil, fmt.Errorf("reading artefacts: %w", err)
		}
		artefacts, err := analysis.DecodeArtefacts(raw)
		if err != nil {
			return nil, err
		}
		snapshot.Artefacts = append(snapshot.Artefacts, artefacts...)
	}

	if c.metricsPath != "" {
		raw, err := os.ReadFile(c.metricsPath)
		if err != nil {
			return nil, fmt.Errorf("reading metrics: %w", err)
		}
		metrics, err := analysis.DecodeMetrics(raw)
		if err != nil {
			return nil, err
		}
		snapshot.Metrics = append(snapshot.Metrics, metrics...)
	}

	c.logger.Debug("snapshot loaded",
		"trace_id", snapshot.Trace.ID,
		"observations", len(snapshot.Trace.Observations),
		"artefacts", len(snapshot.Artefacts),
		"metrics", len(snapshot.Metrics),
	)

	return snapshot, nil
}

func (c *analyzeCommander) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(c.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return data, nil
}

// traceIDFromPath names an anonymous trace after its file. Stdin traces get
// the analysis default.
func traceIDFromPath(path string) string {
	if path == "-" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
