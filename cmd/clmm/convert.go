package main

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/liquiditymath"
	"clmmScope/internal/pricefmt"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

func decimalsFrom(cmd *cobra.Command) (uint8, uint8) {
	d0, _ := cmd.Flags().GetUint8("decimals0")
	d1, _ := cmd.Flags().GetUint8("decimals1")
	return d0, d1
}

func parseU128(name, text string) (uint128.Uint128, error) {
	b, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return uint128.Zero, fmt.Errorf("invalid %s %q", name, text)
	}
	v, err := fixedpoint.U128FromBig(b)
	if err != nil {
		return uint128.Zero, fmt.Errorf("%s %q: %w", name, text, err)
	}
	return v, nil
}

func newTickToPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick-to-price <tick>",
		Short: "Print the sqrt price and human price at a tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tick int32
			if _, err := fmt.Sscan(args[0], &tick); err != nil {
				return fmt.Errorf("invalid tick %q: %w", args[0], err)
			}
			sqrtPrice, err := tickmath.SqrtPriceAtTick(tick)
			if err != nil {
				return err
			}
			d0, d1 := decimalsFrom(cmd)
			fmt.Fprintf(cmd.OutOrStdout(), "tick=%d sqrt_price_x64=%s price=%s\n",
				tick, sqrtPrice, pricefmt.PriceFromSqrtPriceX64(sqrtPrice, d0, d1))
			return nil
		},
	}
	addDecimalsFlags(cmd)
	return cmd
}

func newPriceToTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price-to-tick <price>",
		Short: "Print the tick at or below a human price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[0], err)
			}
			d0, d1 := decimalsFrom(cmd)
			tick, err := pricefmt.PriceToTick(price, d0, d1)
			if err != nil {
				return err
			}
			spacing, _ := cmd.Flags().GetUint16("tick-spacing")
			if spacing > 0 {
				tick = tickmath.TickWithSpacing(tick, int32(spacing))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "price=%s tick=%d\n", price, tick)
			return nil
		},
	}
	addDecimalsFlags(cmd)
	cmd.Flags().Uint16("tick-spacing", 0, "floor the tick to a multiple of this spacing")
	return cmd
}

func newTickArrayStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick-array-start <tick>",
		Short: "Print the start index of the tick array holding a tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tick int32
			if _, err := fmt.Sscan(args[0], &tick); err != nil {
				return fmt.Errorf("invalid tick %q: %w", args[0], err)
			}
			spacing, _ := cmd.Flags().GetUint16("tick-spacing")
			if err := tickmath.CheckTickBoundary(tick, spacing); err != nil {
				return err
			}
			start := tickarray.ArrayStartIndex(tick, spacing)
			if err := tickarray.CheckStartIndex(start, spacing); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tick=%d start_tick_index=%d\n", tick, start)
			return nil
		},
	}
	cmd.Flags().Uint16("tick-spacing", 1, "pool tick spacing")
	return cmd
}

func newSqrtPriceToTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqrt-price-to-tick <sqrt_price_x64>",
		Short: "Print the tick and human price of a Q64.64 sqrt price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqrtPrice, err := parseU128("sqrt price", args[0])
			if err != nil {
				return err
			}
			tick, err := tickmath.TickAtSqrtPrice(sqrtPrice)
			if err != nil {
				return err
			}
			d0, d1 := decimalsFrom(cmd)
			fmt.Fprintf(cmd.OutOrStdout(), "sqrt_price_x64=%s tick=%d price=%s\n",
				sqrtPrice, tick, pricefmt.PriceFromSqrtPriceX64(sqrtPrice, d0, d1))
			return nil
		},
	}
	addDecimalsFlags(cmd)
	return cmd
}

func newLiquidityToAmountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity-to-amounts",
		Short: "Print the token amounts backing liquidity over a tick range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			lower, _ := flags.GetInt32("tick-lower")
			upper, _ := flags.GetInt32("tick-upper")
			current, _ := flags.GetInt32("tick")
			liquidityText, _ := flags.GetString("liquidity")
			roundUp, _ := flags.GetBool("round-up")

			if lower >= upper {
				return fmt.Errorf("tick-lower %d must be below tick-upper %d", lower, upper)
			}
			liquidity, err := parseU128("liquidity", liquidityText)
			if err != nil {
				return err
			}
			sqrtPrice, err := tickmath.SqrtPriceAtTick(current)
			if err != nil {
				return err
			}
			if text, _ := flags.GetString("sqrt-price"); text != "" {
				if sqrtPrice, err = parseU128("sqrt price", text); err != nil {
					return err
				}
			}
			priceLower, err := tickmath.SqrtPriceAtTick(lower)
			if err != nil {
				return err
			}
			priceUpper, err := tickmath.SqrtPriceAtTick(upper)
			if err != nil {
				return err
			}

			amount0, amount1, err := liquiditymath.AmountsFromLiquidity(sqrtPrice, priceLower, priceUpper, liquidity, roundUp)
			if err != nil {
				return err
			}
			d0, d1 := decimalsFrom(cmd)
			fmt.Fprintf(cmd.OutOrStdout(), "amount0=%d (%s) amount1=%d (%s)\n",
				amount0, pricefmt.FormatAmount(new(big.Int).SetUint64(amount0), d0),
				amount1, pricefmt.FormatAmount(new(big.Int).SetUint64(amount1), d1))
			return nil
		},
	}
	cmd.Flags().Int32("tick-lower", 0, "lower tick of the range")
	cmd.Flags().Int32("tick-upper", 0, "upper tick of the range")
	cmd.Flags().Int32("tick", 0, "current tick")
	cmd.Flags().String("sqrt-price", "", "current Q64.64 sqrt price, overrides --tick")
	cmd.Flags().String("liquidity", "0", "liquidity")
	cmd.Flags().Bool("round-up", false, "round amounts up, as for a deposit")
	addDecimalsFlags(cmd)
	return cmd
}
