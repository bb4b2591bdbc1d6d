package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"priceresolver/internal/aggregate"
	"priceresolver/internal/logging"
	"priceresolver/internal/provider"
)

// MissingPricesError reports that some identifiers had no price. The
// prices that were found have already been printed.
type MissingPricesError struct {
	Missing   int
	Requested int
}

func (e *MissingPricesError) Error() string {
	return fmt.Sprintf("%d of %d identifiers have no price", e.Missing, e.Requested)
}

func newPriceCmd(newProvider ProviderFunc) *cobra.Command {
	var (
		currency    string
		asJSON      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "price <identifier>...",
		Short: "Print the current price of one or more tickers or ISINs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)

			p, err := newProvider(cfg, log)
			if err != nil {
				return err
			}

			quotes := aggregate.Resolve(cmd.Context(), p, args, strings.ToUpper(currency), concurrency)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(quotes); err != nil {
					return err
				}
			} else if err := writeTable(cmd, quotes); err != nil {
				return err
			}

			if found := aggregate.Found(quotes); found < len(quotes) {
				return &MissingPricesError{Missing: len(quotes) - found, Requested: len(quotes)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "target currency code (accepted, not converted)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print quotes as JSON")
	cmd.Flags().IntVar(&concurrency, "concurrency", aggregate.DefaultConcurrency, "parallel lookups")
	return cmd
}

func writeTable(cmd *cobra.Command, quotes []provider.Quote) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tPRICE\tCURRENCY\tSOURCE")
	for _, q := range quotes {
		price := q.Price
		if !q.Found {
			price = "-"
		}
		cur := q.Currency
		if cur == "" {
			cur = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", q.Identifier, price, cur, q.Source)
	}
	return tw.Flush()
}
