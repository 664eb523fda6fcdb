// paywallctl runs one-off operations against a paywall deployment: manual
// sweeps, payment lookups and bank account checks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"telegram-group-paywall/internal/config"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	dev        bool
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "paywallctl",
		Short:         "Operations CLI for the Telegram group paywall",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flags.dev, "dev", false, "developer mode (console logs)")

	rootCmd.AddCommand(sweepCmd(flags))
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(bankCmd(flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.LoadConfig(f.configPath, f.dev)
}
