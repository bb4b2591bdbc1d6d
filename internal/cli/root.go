// Package cli implements the pricectl command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"priceresolver/internal/config"
	"priceresolver/internal/httpx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/factory"
)

// ProviderFunc builds the provider a command resolves against.
type ProviderFunc func(cfg config.Config, log zerolog.Logger) (provider.Provider, error)

// NewRootCmd creates the root Cobra command for pricectl.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithProvider(ver, defaultProvider)
}

// NewRootCmdWithProvider creates the root command with an explicit provider
// constructor for testability.
func NewRootCmdWithProvider(ver string, newProvider ProviderFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pricectl",
		Short:         "Resolve current instrument prices",
		Long:          "pricectl: resolve current market prices by ticker or ISIN through the configured provider",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a YAML or JSON config file")
	cmd.PersistentFlags().String("provider", "", "provider to use (finnhub, yahoo); overrides config")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides config")
	cmd.AddCommand(newPriceCmd(newProvider))

	return cmd
}

const rootCmdExample = `  # Price a ticker
  pricectl price AAPL

  # Price an ISIN through Yahoo Finance, as JSON
  pricectl price IE00B4L5Y983 --provider yahoo --json

  # Several identifiers at once
  pricectl price AAPL MSFT US0378331005 --currency USD`

func defaultProvider(cfg config.Config, log zerolog.Logger) (provider.Provider, error) {
	timeout := cfg.Finnhub.Timeout()
	if cfg.Yahoo.Timeout() > timeout {
		timeout = cfg.Yahoo.Timeout()
	}
	f, err := factory.New(cfg, httpx.New(timeout), log)
	if err != nil {
		return nil, err
	}
	return f.Provider(), nil
}

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider.Active = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}
