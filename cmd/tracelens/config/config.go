// Package configcmder provides the config command for managing persistent
// tracelens configuration stored in the .tracelens/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent tracelens configuration.

Configuration is stored as config.toml in the .tracelens/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  api.listen, client.api_target,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  worker.workers, worker.queue_size,
  analysis.late_stage_names

Use subcommands to get, set, or list configuration values:
  tracelens config set <key> <value>    Set a configuration value
  tracelens config get <key>            Get a configuration value
  tracelens config list                 List all configuration values

Examples:
  tracelens config set storage.driver sqlite
  tracelens config set eventstream.brokers kafka-1:9092,kafka-2:9092
  tracelens config get storage.driver
  tracelens config list`

const configShortDesc string = "Manage persistent tracelens configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
