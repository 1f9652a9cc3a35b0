package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"fintrack/internal/core"
	"fintrack/internal/currency"

	"github.com/spf13/cobra"
)

func newRatesCommand(deps Deps) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Print the exchange-rate table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := deps.rateProvider(deps.config())
			rates, err := provider.FetchRates(cmd.Context(), core.NormalizeUnit(base))
			if err != nil {
				return err
			}

			units := make([]string, 0, len(rates))
			for u := range rates {
				units = append(units, u)
			}
			sort.Strings(units)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "UNIT\t1 %s =\n", core.NormalizeUnit(base))
			for _, u := range units {
				fmt.Fprintf(w, "%s\t%s\n", u, rates[u].String())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&base, "base", core.CanonicalUnit, "currency the rates are quoted against")
	return cmd
}

func newNormalizeCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <amount> <unit>",
		Short: "Convert an amount into " + core.CanonicalUnit,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			n := currency.NewNormalizer(deps.rateProvider(deps.config()))
			out, err := n.Normalize(cmd.Context(), amount, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s\n",
				amount.String(), core.NormalizeUnit(args[1]), core.FormatAmount(out), core.CanonicalUnit)
			return nil
		},
	}
}
