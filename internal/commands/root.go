// Package commands holds the fintrackctl operator commands.
package commands

import (
	"context"
	"io"
	"log/slog"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/currency"
	applog "fintrack/internal/log"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
)

// Deps lets tests swap the pieces that reach the outside world. Zero
// values fall back to the environment configuration.
type Deps struct {
	Config       *config.Config
	RateProvider currency.RateProvider
}

func (d Deps) config() *config.Config {
	if d.Config != nil {
		return d.Config
	}
	return config.Load()
}

func (d Deps) rateProvider(cfg *config.Config) currency.RateProvider {
	if d.RateProvider != nil {
		return d.RateProvider
	}
	opts := []currency.ClientOption{currency.WithTimeout(cfg.RateTimeout)}
	if cfg.RateAPIKey != "" {
		opts = append(opts, currency.WithAPIKey(cfg.RateAPIKey))
	}
	return currency.NewHTTPRateProvider(cfg.RateAPIURL, opts...)
}

// openBackend builds the configured backend without AMQP; operator
// commands never publish.
func (d Deps) openBackend(ctx context.Context, cfg *config.Config, out io.Writer) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.AMQPURL = ""
	bc.RateProvider = d.RateProvider
	logger := applog.New(applog.Config{Level: slog.LevelWarn, Format: "text", Output: out, Component: applog.ComponentCLI})
	return backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(deps Deps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fintrackctl",
		Short: "Operator tooling for the fintrack ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(deps),
		newReconcileCommand(deps),
		newRatesCommand(deps),
		newNormalizeCommand(deps),
	)

	cc.Init(&cc.Config{
		RootCmd:         rootCmd,
		Headings:        cc.HiCyan + cc.Bold + cc.Underline,
		Commands:        cc.HiYellow + cc.Bold,
		ExecName:        cc.Bold,
		Flags:           cc.Bold,
		NoExtraNewlines: true,
	})
	return rootCmd
}
