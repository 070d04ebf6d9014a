package main

import (
	"fmt"
	"os"

	"github.com/catalogfi/autoswap/pkg/autoswap"
	"github.com/catalogfi/autoswap/pkg/config"
	"github.com/catalogfi/autoswap/pkg/cycle"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var BinaryVersion = "undefined"

func main() {
	if err := Root().Execute(); err != nil {
		os.Exit(1)
	}
}

func Root() *cobra.Command {
	var (
		iterations int
		envFile    string
	)
	var cmd = &cobra.Command{
		Use:               "autoswap",
		Short:             "swaps back and forth between STT and USDTg on the Somnia testnet router",
		Version:           BinaryVersion,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(c *cobra.Command, args []string) error {
			if iterations < 0 {
				return fmt.Errorf("iterations must not be negative, got %d", iterations)
			}
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			logger, err := NewLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			bot, err := autoswap.New(cfg, logger)
			if err != nil {
				logger.Error("startup", zap.Error(err))
				return err
			}
			defer bot.Close()

			banner(c, bot, iterations)
			summary, err := bot.Run(c.Context(), iterations)
			summary.Render(c.OutOrStdout())
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env", config.DefaultEnvFile, "dotenv file with the settings")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", cycle.DefaultIterations, "number of swaps to perform")
	cmd.AddCommand(Balances(&envFile))
	return cmd
}

func Balances(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "prints the STT, USDTg and NIA balances of the wallet",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			bot, err := autoswap.New(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer bot.Close()

			balances, err := bot.Balances(c.Context())
			if err != nil {
				return err
			}
			autoswap.RenderBalances(c.OutOrStdout(), bot.Address(), balances)
			return nil
		},
	}
}

func banner(c *cobra.Command, bot *autoswap.Bot, iterations int) {
	out := c.OutOrStdout()
	fmt.Fprintln(out, color.CyanString("autoswap %v", BinaryVersion))
	fmt.Fprintf(out, "%v %v\n", color.YellowString("wallet:"), bot.Address().Hex())
	fmt.Fprintf(out, "%v %d\n", color.YellowString("iterations:"), iterations)
}
