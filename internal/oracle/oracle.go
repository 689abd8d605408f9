// Package oracle keeps a fixed ring of cumulative tick and seconds-per-liquidity samples for
// time-weighted average price queries.
package oracle

import (
	"fmt"

	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
)

// ObservationNum is the ring capacity.
const ObservationNum = 100

// Observation is one cumulative sample.
type Observation struct {
	BlockTimestamp                   uint64
	TickCumulative                   int64
	SecondsPerLiquidityCumulativeX64 uint128.Uint128
}

// State is the observation ring. Index points at the newest sample and Cardinality counts the
// populated slots.
type State struct {
	Initialized  bool
	Index        uint16
	Cardinality  uint16
	Observations [ObservationNum]Observation
}

// Initialize starts a ring with a zero sample at timestamp.
func Initialize(timestamp uint64) State {
	var s State
	s.Initialized = true
	s.Cardinality = 1
	s.Observations[0] = Observation{BlockTimestamp: timestamp}
	return s
}

// Latest returns the newest sample.
func (s *State) Latest() Observation {
	return s.Observations[s.Index]
}

func (s *State) oldestIndex() uint16 {
	return (s.Index + 1) % s.Cardinality
}

// at returns the i-th sample counting from the oldest.
func (s *State) at(i uint16) Observation {
	return s.Observations[(s.oldestIndex()+i)%s.Cardinality]
}

// Validate checks the ring bookkeeping and that timestamps increase from oldest to newest.
func (s *State) Validate() error {
	if !s.Initialized {
		if s.Cardinality != 0 || s.Index != 0 {
			return fmt.Errorf("uninitialized oracle has cardinality %d index %d", s.Cardinality, s.Index)
		}
		return nil
	}
	if s.Cardinality == 0 || s.Cardinality > ObservationNum || s.Index >= s.Cardinality {
		return fmt.Errorf("oracle cardinality %d index %d", s.Cardinality, s.Index)
	}
	for i := uint16(1); i < s.Cardinality; i++ {
		if s.at(i).BlockTimestamp <= s.at(i-1).BlockTimestamp {
			return fmt.Errorf("oracle sample %d not after its predecessor", i)
		}
	}
	return nil
}

func transform(last Observation, timestamp uint64, tick int32, liquidity uint128.Uint128) (Observation, error) {
	elapsed := timestamp - last.BlockTimestamp
	if liquidity.IsZero() {
		liquidity = uint128.From64(1)
	}
	perLiquidity, err := fixedpoint.ShlDiv(uint128.From64(elapsed), fixedpoint.Resolution, liquidity, false)
	if err != nil {
		return Observation{}, fmt.Errorf("seconds per liquidity: %w", err)
	}
	return Observation{
		BlockTimestamp:                   timestamp,
		TickCumulative:                   last.TickCumulative + int64(tick)*int64(elapsed),
		SecondsPerLiquidityCumulativeX64: last.SecondsPerLiquidityCumulativeX64.AddWrap(perLiquidity),
	}, nil
}

// Observe records tick and liquidity as they stood until timestamp. It returns the updated ring and
// whether a sample was appended; a timestamp not after the newest sample leaves the ring as is.
// An uninitialized ring is initialized at timestamp. The receiver is not modified.
func (s *State) Observe(timestamp uint64, tick int32, liquidity uint128.Uint128) (State, bool, error) {
	if !s.Initialized {
		return Initialize(timestamp), true, nil
	}
	last := s.Latest()
	if timestamp <= last.BlockTimestamp {
		return *s, false, nil
	}
	sample, err := transform(last, timestamp, tick, liquidity)
	if err != nil {
		return *s, false, err
	}
	next := *s
	next.Index = (next.Index + 1) % ObservationNum
	if next.Cardinality < ObservationNum {
		next.Cardinality++
	}
	next.Observations[next.Index] = sample
	return next, true, nil
}

// ObserveAt returns the cumulative values secondsAgo before now. tick and liquidity are the
// pool's current values, used to extrapolate past the newest sample.
func (s *State) ObserveAt(now, secondsAgo uint64, tick int32, liquidity uint128.Uint128) (Observation, error) {
	if !s.Initialized {
		return Observation{}, ammerr.ErrInsufficientHistory
	}
	if secondsAgo > now {
		return Observation{}, fmt.Errorf("%d seconds before %d: %w", secondsAgo, now, ammerr.ErrInsufficientHistory)
	}
	target := now - secondsAgo

	newest := s.Latest()
	if target >= newest.BlockTimestamp {
		if target == newest.BlockTimestamp {
			return newest, nil
		}
		return transform(newest, target, tick, liquidity)
	}

	oldest := s.at(0)
	if target < oldest.BlockTimestamp {
		return Observation{}, fmt.Errorf("target %d before oldest sample %d: %w", target, oldest.BlockTimestamp, ammerr.ErrInsufficientHistory)
	}

	// oldest <= target < newest: find the last sample at or before target
	lo, hi := uint16(0), s.Cardinality-1
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if s.at(mid).BlockTimestamp <= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	before, after := s.at(lo), s.at(hi)
	if before.BlockTimestamp == target {
		return before, nil
	}

	span := after.BlockTimestamp - before.BlockTimestamp
	elapsed := target - before.BlockTimestamp
	tickDelta := (after.TickCumulative - before.TickCumulative) / int64(span)
	splDelta, err := fixedpoint.MulDivFloor(
		after.SecondsPerLiquidityCumulativeX64.SubWrap(before.SecondsPerLiquidityCumulativeX64),
		uint128.From64(elapsed),
		uint128.From64(span),
	)
	if err != nil {
		return Observation{}, fmt.Errorf("interpolate seconds per liquidity: %w", err)
	}
	return Observation{
		BlockTimestamp:                   target,
		TickCumulative:                   before.TickCumulative + tickDelta*int64(elapsed),
		SecondsPerLiquidityCumulativeX64: before.SecondsPerLiquidityCumulativeX64.AddWrap(splDelta),
	}, nil
}

// TimeWeightedAverageTick returns the average tick over the last secondsAgo seconds, rounded
// toward negative infinity. A zero window returns the current tick.
func (s *State) TimeWeightedAverageTick(now, secondsAgo uint64, tick int32, liquidity uint128.Uint128) (int32, error) {
	if secondsAgo == 0 {
		return tick, nil
	}
	current, err := s.ObserveAt(now, 0, tick, liquidity)
	if err != nil {
		return 0, err
	}
	past, err := s.ObserveAt(now, secondsAgo, tick, liquidity)
	if err != nil {
		return 0, err
	}
	delta := current.TickCumulative - past.TickCumulative
	window := int64(secondsAgo)
	avg := delta / window
	if delta < 0 && delta%window != 0 {
		avg--
	}
	return int32(avg), nil
}
