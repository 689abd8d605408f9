package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmmScope/internal/config"
	"clmmScope/internal/pricefmt"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print pending fees and rewards for every position in a snapshot",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}
	cmd.Flags().String("snapshot", "", "pool snapshot JSON")
	cmd.Flags().Uint64("timestamp", 0, "reward accrual time, 0 means the latest oracle observation")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addDecimalsFlags(cmd)
	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAudit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := loadSnapshot(cfg.Snapshot, config.PoolOverrides{})
	if err != nil {
		return err
	}
	ts := cfg.Timestamp
	if ts == 0 {
		ts = st.Pool.Oracle.Latest().BlockTimestamp
	}

	p := st.Pool
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "seq=%d tick=%d liquidity=%s price=%s positions=%d\n",
		st.Seq, p.State.TickCurrent, p.State.Liquidity,
		pricefmt.PriceFromSqrtPriceX64(p.State.SqrtPriceX64, cfg.Decimals0, cfg.Decimals1), len(st.Positions))

	var failed int
	for _, id := range st.PositionIDs() {
		pos := st.Positions[id]
		fee0, fee1, err := p.PendingFees(pos)
		if err != nil {
			failed++
			logger.Warn("pending fees failed", zap.String("position_id", id), zap.Error(err))
			continue
		}
		rewards, err := p.PendingRewards(pos, ts)
		if err != nil {
			failed++
			logger.Warn("pending rewards failed", zap.String("position_id", id), zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "%s [%d,%d) liquidity=%s fees0=%s fees1=%s rewards=%v\n",
			id, pos.TickLower, pos.TickUpper, pos.Liquidity,
			pricefmt.FormatAmount(new(big.Int).SetUint64(fee0), cfg.Decimals0),
			pricefmt.FormatAmount(new(big.Int).SetUint64(fee1), cfg.Decimals1),
			rewards)
	}
	if failed > 0 {
		return fmt.Errorf("%d positions could not be audited", failed)
	}
	return nil
}
