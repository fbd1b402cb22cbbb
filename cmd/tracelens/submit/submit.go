// Package submitcmder provides the submit command, which uploads a trace
// export to a running tracelens API server.
package submitcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tracelens/api"
	"github.com/papercomputeco/tracelens/pkg/cliui"
	"github.com/papercomputeco/tracelens/pkg/config"
)

type submitCommander struct {
	path      string
	apiTarget string
	quiet     bool

	out    io.Writer
	errOut io.Writer
}

const submitLongDesc string = `Upload a trace export to a tracelens API server.

The export is stored under its trace id, replacing any earlier upload, and
queued for background analysis. The API target defaults to client.api_target
from config.toml.

Examples:
  tracelens submit trace.json
  tracelens submit trace.json --api-target http://analysis.internal:8081
  tracelens submit trace.json --quiet`

const submitShortDesc string = "Upload a trace export to the API server"

func NewSubmitCmd() *cobra.Command {
	cmder := &submitCommander{}

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: submitShortDesc,
		Long:  submitLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only the stored trace id")

	return cmd
}

func (c *submitCommander) run(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}

	if c.quiet {
		resp, err := SubmitAPI(ctx, c.apiTarget, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, resp.TraceID)
		return nil
	}

	var resp *api.CreateTraceResponse
	if err := cliui.Step(c.errOut, "Submitting "+filepath.Base(c.path), func() error {
		var submitErr error
		resp, submitErr = SubmitAPI(ctx, c.apiTarget, data)
		return submitErr
	}); err != nil {
		return err
	}

	queued := "not queued"
	if resp.Queued {
		queued = "queued for analysis"
	}
	fmt.Fprintf(c.out, "\n  %s Stored %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(resp.TraceID),
		cliui.DimStyle.Render(fmt.Sprintf("(%d observations, %d metrics, %s)", resp.Observations, resp.Metrics, queued)),
	)
	return nil
}

// SubmitAPI posts a trace export to POST /v1/traces and returns the parsed
// response.
func SubmitAPI(ctx context.Context, apiTarget string, body []byte) (*api.CreateTraceResponse, error) {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	target.Path = "/v1/traces"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tracelens API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr api.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("submit request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("submit request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var out api.CreateTraceResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w", err)
	}
	return &out, nil
}
