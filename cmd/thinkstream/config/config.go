// Package configcmder provides the config command for managing persistent
// thinkstream configuration stored in the .thinkstream/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent thinkstream configuration.

Configuration is stored as config.toml in the .thinkstream/ directory and
provides default values for command flags. CLI flags and THINKSTREAM_
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sqlite_path, storage.postgres_dsn,
  proxy.listen, proxy.default_backend, proxy.upstream,
  api.listen,
  client.proxy_target, client.api_target,
  careplan.backend, careplan.model, careplan.mode, careplan.upstream,
  chatbot.target, chatbot.model, chatbot.credential,
  lead.zapier_webhook, lead.hubspot_webhook,
  session.provider, session.redis_addr, session.ttl,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  event_stream.provider, event_stream.brokers, event_stream.topic

Use subcommands to get, set, or list configuration values:
  thinkstream config set <key> <value>    Set a configuration value
  thinkstream config get <key>            Get a configuration value
  thinkstream config list                 List all configuration values

Examples:
  thinkstream config set proxy.default_backend grok
  thinkstream config set careplan.mode single
  thinkstream config get careplan.backend
  thinkstream config list`

const configShortDesc string = "Manage persistent thinkstream configuration"

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
