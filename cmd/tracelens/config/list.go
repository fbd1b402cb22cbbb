package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tracelens/pkg/cliui"
	"github.com/papercomputeco/tracelens/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .tracelens/ directory, grouped by TOML
section.

Examples:
  tracelens config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()

	// Find the longest field name for alignment.
	maxLen := 0
	for _, k := range keys {
		_, field := splitKey(k)
		maxLen = max(maxLen, len(field))
	}

	section := ""
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		sec, field := splitKey(key)
		if sec != section {
			section = sec
			fmt.Fprintf(w, "  %s\n", cliui.HeaderStyle.Render("["+section+"]"))
		}
		fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", maxLen, field)), renderValue(value))
	}
	fmt.Fprintln(w)

	return nil
}

func splitKey(key string) (string, string) {
	section, field, ok := strings.Cut(key, ".")
	if !ok {
		return "", key
	}
	return section, field
}
