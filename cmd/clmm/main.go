package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "clmm",
		Short:        "Concentrated-liquidity pool math, quotes and replays",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newTickToPriceCmd(),
		newPriceToTickCmd(),
		newTickArrayStartCmd(),
		newSqrtPriceToTickCmd(),
		newLiquidityToAmountsCmd(),
		newQuoteCmd(),
		newReplayCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addDecimalsFlags(cmd *cobra.Command) {
	cmd.Flags().Uint8("decimals0", 0, "token0 decimals")
	cmd.Flags().Uint8("decimals1", 0, "token1 decimals")
}

func addFeeOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("trade-fee-rate", 0, "override trade fee rate (parts per 1e6)")
	cmd.Flags().Uint32("protocol-fee-rate", 0, "override protocol fee rate (parts per 1e6 of the trade fee)")
	cmd.Flags().Uint32("fund-fee-rate", 0, "override fund fee rate (parts per 1e6 of the trade fee)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
