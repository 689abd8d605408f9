package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmScope/internal/config"
	"clmmScope/internal/model"
	"clmmScope/internal/pool"
	"clmmScope/internal/pricefmt"
	"clmmScope/internal/snapshot"
	"clmmScope/internal/storage"
)

type quoteOutput struct {
	ZeroForOne  bool   `json:"zero_for_one"`
	ExactInput  bool   `json:"exact_input"`
	Status      string `json:"status"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	Fee         string `json:"fee"`
	ProtocolFee string `json:"protocol_fee"`
	FundFee     string `json:"fund_fee"`
	PriceBefore string `json:"price_before"`
	PriceAfter  string `json:"price_after"`
	// PriceImpact is the relative move of the pool price.
	PriceImpact string  `json:"price_impact"`
	TickBefore  int32   `json:"tick_before"`
	TickAfter   int32   `json:"tick_after"`
	Steps       int     `json:"steps"`
	Crossed     []int32 `json:"crossed_ticks,omitempty"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Simulate a swap against a snapshot",
		Args:  cobra.NoArgs,
		RunE:  runQuote,
	}
	cmd.Flags().String("snapshot", "", "pool snapshot JSON")
	cmd.Flags().String("amount", "", "amount in whole tokens: input for exact-input, output for exact-output")
	cmd.Flags().Bool("zero-for-one", true, "sell token0 for token1")
	cmd.Flags().Bool("exact-output", false, "treat --amount as the desired output")
	cmd.Flags().String("price-limit", "", "human price the swap may not cross")
	cmd.Flags().String("threshold", "", "minimum output (exact-input) or maximum input (exact-output), whole tokens")
	cmd.Flags().Uint64("timestamp", 0, "block timestamp, 0 means the latest oracle observation")
	cmd.Flags().Int("max-steps", 0, "swap step ceiling, 0 means the default")
	cmd.Flags().String("out", "", "append the result to this JSONL file")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addDecimalsFlags(cmd)
	addFeeOverrideFlags(cmd)
	return cmd
}

func loadSnapshot(path string, overrides config.PoolOverrides) (*snapshot.State, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	st, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	amm, err := overrides.Apply(st.Pool.Config)
	if err != nil {
		return nil, err
	}
	st.Pool.Config = amm
	return st, nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := loadSnapshot(cfg.Snapshot, cfg.Overrides)
	if err != nil {
		return err
	}
	if cfg.Amount == "" {
		return fmt.Errorf("amount is required")
	}

	exactInput := !cfg.ExactOutput
	// the amount is denominated in token0 when it is the input of a zeroForOne swap or the output
	// of a one-for-zero swap
	amountDecimals, otherDecimals := cfg.Decimals1, cfg.Decimals0
	if cfg.ZeroForOne == exactInput {
		amountDecimals, otherDecimals = cfg.Decimals0, cfg.Decimals1
	}
	amount, err := pricefmt.ParseAmount(cfg.Amount, amountDecimals)
	if err != nil {
		return err
	}

	limit := uint128.Zero
	if cfg.PriceLimit != "" {
		price, err := decimal.NewFromString(cfg.PriceLimit)
		if err != nil {
			return fmt.Errorf("invalid price limit %q: %w", cfg.PriceLimit, err)
		}
		if limit, err = pricefmt.SqrtPriceX64FromPrice(price, cfg.Decimals0, cfg.Decimals1); err != nil {
			return err
		}
	}

	ts := cfg.Timestamp
	if ts == 0 {
		ts = st.Pool.Oracle.Latest().BlockTimestamp
	}

	engine := pool.NewEngine(pool.EngineConfig{MaxSteps: cfg.MaxSteps}, logger)
	params := pool.SwapParams{
		AmountSpecified:   amount,
		SqrtPriceLimitX64: limit,
		ZeroForOne:        cfg.ZeroForOne,
		ExactInput:        exactInput,
		BlockTimestamp:    ts,
	}

	var res pool.SwapResult
	if cfg.Threshold != "" {
		threshold, err := pricefmt.ParseAmount(cfg.Threshold, otherDecimals)
		if err != nil {
			return err
		}
		res, err = engine.SwapExact(st.Pool, params, threshold)
		if err != nil {
			return err
		}
	} else if res, err = engine.Swap(st.Pool, params); err != nil {
		return err
	}

	inDecimals, outDecimals := cfg.Decimals1, cfg.Decimals0
	if cfg.ZeroForOne {
		inDecimals, outDecimals = cfg.Decimals0, cfg.Decimals1
	}
	format := func(v uint64, decimals uint8) string {
		return pricefmt.FormatAmount(new(big.Int).SetUint64(v), decimals)
	}

	before := pricefmt.PriceFromSqrtPriceX64(st.Pool.State.SqrtPriceX64, cfg.Decimals0, cfg.Decimals1)
	after := pricefmt.PriceFromSqrtPriceX64(res.Pool.State.SqrtPriceX64, cfg.Decimals0, cfg.Decimals1)
	out := quoteOutput{
		ZeroForOne:  cfg.ZeroForOne,
		ExactInput:  exactInput,
		Status:      res.Status.String(),
		AmountIn:    format(res.AmountIn(cfg.ZeroForOne), inDecimals),
		AmountOut:   format(res.AmountOut(cfg.ZeroForOne), outDecimals),
		Fee:         format(res.FeeAmount, inDecimals),
		ProtocolFee: format(res.ProtocolFee, inDecimals),
		FundFee:     format(res.FundFee, inDecimals),
		PriceBefore: before.String(),
		PriceAfter:  after.String(),
		PriceImpact: after.Sub(before).DivRound(before, 18).Abs().String(),
		TickBefore:  st.Pool.State.TickCurrent,
		TickAfter:   res.Pool.State.TickCurrent,
		Steps:       len(res.Steps),
	}
	for _, crossed := range res.Crossings {
		out.Crossed = append(out.Crossed, crossed.Tick)
	}

	line, err := sonnet.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(line))

	if cfg.Out != "" {
		result := model.OperationResult{
			Seq:           st.Seq + 1,
			Kind:          model.OpSwap,
			Timestamp:     ts,
			Amount0:       res.Amount0,
			Amount1:       res.Amount1,
			FeeAmount:     res.FeeAmount,
			ProtocolFee:   res.ProtocolFee,
			FundFee:       res.FundFee,
			SwapStatus:    res.Status.String(),
			Steps:         len(res.Steps),
			Crossings:     len(res.Crossings),
			SqrtPriceX64:  res.Pool.State.SqrtPriceX64.String(),
			TickCurrent:   res.Pool.State.TickCurrent,
			PoolLiquidity: res.Pool.State.Liquidity.String(),
		}
		sink := storage.NewJsonlStorage(cfg.Out, "")
		if err := sink.PutResultBatch(context.Background(), []model.OperationResult{result}); err != nil {
			return err
		}
		logger.Info("quote stored", zap.String("out", cfg.Out))
	}
	return nil
}
