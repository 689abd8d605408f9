package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/sugawarayuuta/sonnet"
	"lukechampine.com/uint128"

	"clmmScope/internal/accrual"
	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/oracle"
	"clmmScope/internal/pool"
	"clmmScope/internal/tickarray"
	"clmmScope/internal/tickmath"
)

// State is a validated snapshot.
type State struct {
	// Seq is the sequence number of the last operation applied to the pool.
	Seq          uint64
	Pool         *pool.Pool
	Positions    map[string]pool.Position
	RewardVaults [accrual.RewardNum]uint64
}

// PositionIDs returns the position identifiers in order.
func (s *State) PositionIDs() []string {
	ids := make([]string, 0, len(s.Positions))
	for id := range s.Positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fieldReader converts document fields, keeping the first error.
type fieldReader struct {
	err error
}

func (r *fieldReader) u128(name string, h *math.HexOrDecimal256) uint128.Uint128 {
	if r.err != nil {
		return uint128.Zero
	}
	v, err := fixedpoint.U128FromBig(bigOf(h))
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func (r *fieldReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func hexOf(v uint128.Uint128) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(v.Big())
}

// Decode parses and validates a JSON snapshot.
func Decode(data []byte) (*State, error) {
	var doc Document
	if err := sonnet.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return Build(&doc)
}

// Load reads and validates the snapshot at path.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// Build converts a document into validated fixed-layout state.
func Build(doc *Document) (*State, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	cfg := doc.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	spacing := cfg.TickSpacing

	r := &fieldReader{}
	pd := doc.Pool
	ps := pool.PoolState{
		SqrtPriceX64:           r.u128("pool.sqrtPriceX64", pd.SqrtPriceX64),
		TickCurrent:            pd.TickCurrent,
		Liquidity:              r.u128("pool.liquidity", pd.Liquidity),
		FeeGrowthGlobal0X64:    r.u128("pool.feeGrowthGlobal0X64", pd.FeeGrowthGlobal0X64),
		FeeGrowthGlobal1X64:    r.u128("pool.feeGrowthGlobal1X64", pd.FeeGrowthGlobal1X64),
		ProtocolFeesToken0:     uint64(pd.ProtocolFeesToken0),
		ProtocolFeesToken1:     uint64(pd.ProtocolFeesToken1),
		FundFeesToken0:         uint64(pd.FundFeesToken0),
		FundFeesToken1:         uint64(pd.FundFeesToken1),
		SwapInAmountToken0:     r.u128("pool.swapInAmountToken0", pd.SwapInAmountToken0),
		SwapOutAmountToken1:    r.u128("pool.swapOutAmountToken1", pd.SwapOutAmountToken1),
		SwapInAmountToken1:     r.u128("pool.swapInAmountToken1", pd.SwapInAmountToken1),
		SwapOutAmountToken0:    r.u128("pool.swapOutAmountToken0", pd.SwapOutAmountToken0),
		TotalFeesToken0:        uint64(pd.TotalFeesToken0),
		TotalFeesClaimedToken0: uint64(pd.TotalFeesClaimedToken0),
		TotalFeesToken1:        uint64(pd.TotalFeesToken1),
		TotalFeesClaimedToken1: uint64(pd.TotalFeesClaimedToken1),
		Status:                 pool.Status(pd.Status),
		OpenTime:               uint64(pd.OpenTime),
	}

	var vaults [accrual.RewardNum]uint64
	if len(doc.Rewards) > accrual.RewardNum {
		r.fail("%d rewards, at most %d", len(doc.Rewards), accrual.RewardNum)
	}
	for i, rd := range doc.Rewards {
		if i >= accrual.RewardNum {
			break
		}
		if rd.State > uint8(accrual.RewardEnded) {
			r.fail("reward %d state %d", i, rd.State)
		}
		ps.RewardInfos[i] = accrual.RewardInfo{
			State:                 accrual.RewardState(rd.State),
			OpenTime:              uint64(rd.OpenTime),
			EndTime:               uint64(rd.EndTime),
			LastUpdateTime:        uint64(rd.LastUpdateTime),
			EmissionsPerSecondX64: r.u128(fmt.Sprintf("rewards[%d].emissionsPerSecondX64", i), rd.EmissionsPerSecondX64),
			TotalEmissioned:       uint64(rd.TotalEmissioned),
			Claimed:               uint64(rd.Claimed),
			GrowthGlobalX64:       r.u128(fmt.Sprintf("rewards[%d].growthGlobalX64", i), rd.GrowthGlobalX64),
		}
		vaults[i] = uint64(rd.VaultAmount)
	}

	store := tickarray.NewStore(spacing)
	for _, ad := range doc.TickArrays {
		ta := r.tickArray(ad, spacing)
		if r.err != nil {
			break
		}
		if err := store.Put(ta); err != nil {
			r.fail("tick array %d: %w", ad.StartTickIndex, err)
		}
	}

	switch len(pd.TickArrayBitmap) {
	case 0:
		for _, ta := range store.All() {
			if ta.InitializedTickCount > 0 {
				if err := ps.TickArrayBitmap.Flip(ta.StartTickIndex, spacing); err != nil {
					r.fail("derive bitmap: %w", err)
				}
			}
		}
	case len(ps.TickArrayBitmap):
		for i, w := range pd.TickArrayBitmap {
			ps.TickArrayBitmap[i] = uint64(w)
		}
	default:
		r.fail("tick array bitmap has %d words, want %d", len(pd.TickArrayBitmap), len(ps.TickArrayBitmap))
	}

	obs := oracle.Initialize(ps.OpenTime)
	if doc.Oracle != nil {
		obs = r.oracleState(doc.Oracle)
	}
	if r.err != nil {
		return nil, r.err
	}

	p := &pool.Pool{Config: cfg, State: ps, Ticks: store, Oracle: obs}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate pool: %w", err)
	}

	positions := make(map[string]pool.Position, len(doc.Positions))
	for _, posDoc := range doc.Positions {
		if posDoc.ID == "" {
			return nil, fmt.Errorf("position without id")
		}
		if _, dup := positions[posDoc.ID]; dup {
			return nil, fmt.Errorf("duplicate position %q", posDoc.ID)
		}
		pos := r.position(posDoc)
		if r.err != nil {
			return nil, r.err
		}
		if err := tickmath.CheckTickRange(pos.TickLower, pos.TickUpper, spacing); err != nil {
			return nil, fmt.Errorf("position %q: %w", posDoc.ID, err)
		}
		positions[posDoc.ID] = pos
	}

	return &State{Seq: doc.Seq, Pool: p, Positions: positions, RewardVaults: vaults}, nil
}

func (r *fieldReader) tickArray(ad TickArrayDoc, spacing uint16) *tickarray.TickArray {
	ta, err := tickarray.NewTickArray(ad.StartTickIndex, spacing)
	if err != nil {
		r.fail("tick array %d: %w", ad.StartTickIndex, err)
		return nil
	}
	seen := make(map[int32]struct{}, len(ad.Ticks))
	for _, td := range ad.Ticks {
		if _, err := ta.Tick(td.Tick, spacing); err != nil {
			r.fail("tick %d in array %d: %w", td.Tick, ad.StartTickIndex, err)
			return nil
		}
		if err := tickmath.CheckTickBoundary(td.Tick, spacing); err != nil {
			r.fail("tick array %d: %w", ad.StartTickIndex, err)
			return nil
		}
		if _, dup := seen[td.Tick]; dup {
			r.fail("duplicate tick %d: %w", td.Tick, ammerr.ErrInvalidTickArray)
			return nil
		}
		seen[td.Tick] = struct{}{}
		if len(td.RewardGrowthsOutsideX64) > accrual.RewardNum {
			r.fail("tick %d has %d reward growths", td.Tick, len(td.RewardGrowthsOutsideX64))
			return nil
		}

		name := fmt.Sprintf("tick %d", td.Tick)
		ts := tickarray.TickState{
			Tick:                 td.Tick,
			LiquidityNet:         td.LiquidityNet,
			LiquidityGross:       r.u128(name+" liquidityGross", td.LiquidityGross),
			FeeGrowthOutside0X64: r.u128(name+" feeGrowthOutside0X64", td.FeeGrowthOutside0X64),
			FeeGrowthOutside1X64: r.u128(name+" feeGrowthOutside1X64", td.FeeGrowthOutside1X64),
		}
		for i, g := range td.RewardGrowthsOutsideX64 {
			ts.RewardGrowthsOutsideX64[i] = r.u128(fmt.Sprintf("%s rewardGrowthsOutsideX64[%d]", name, i), g)
		}
		if !ts.IsInitialized() {
			r.fail("tick %d listed with zero gross liquidity: %w", td.Tick, ammerr.ErrInvalidTickArray)
			return nil
		}
		if ts.LiquidityNet.Abs.Cmp(ts.LiquidityGross) > 0 {
			r.fail("tick %d net liquidity exceeds gross: %w", td.Tick, ammerr.ErrInvalidTickArray)
			return nil
		}
		ta.Ticks[(td.Tick-ad.StartTickIndex)/int32(spacing)] = ts
		ta.InitializedTickCount++
	}
	return ta
}

func (r *fieldReader) oracleState(od *OracleDoc) oracle.State {
	var s oracle.State
	n := len(od.Observations)
	if n == 0 || n > oracle.ObservationNum {
		r.fail("oracle has %d observations, want 1..%d", n, oracle.ObservationNum)
		return s
	}
	s.Initialized = true
	s.Cardinality = uint16(n)
	s.Index = od.Index
	for i, o := range od.Observations {
		s.Observations[i] = oracle.Observation{
			BlockTimestamp:                   uint64(o.BlockTimestamp),
			TickCumulative:                   o.TickCumulative,
			SecondsPerLiquidityCumulativeX64: r.u128(fmt.Sprintf("observations[%d]", i), o.SecondsPerLiquidityCumulativeX64),
		}
	}
	return s
}

func (r *fieldReader) position(pd PositionDoc) pool.Position {
	name := fmt.Sprintf("position %q", pd.ID)
	pos := pool.Position{
		TickLower:               pd.TickLower,
		TickUpper:               pd.TickUpper,
		Liquidity:               r.u128(name+" liquidity", pd.Liquidity),
		FeeGrowthInside0LastX64: r.u128(name+" feeGrowthInside0LastX64", pd.FeeGrowthInside0LastX64),
		FeeGrowthInside1LastX64: r.u128(name+" feeGrowthInside1LastX64", pd.FeeGrowthInside1LastX64),
		TokenFeesOwed0:          uint64(pd.TokenFeesOwed0),
		TokenFeesOwed1:          uint64(pd.TokenFeesOwed1),
	}
	if len(pd.Rewards) > accrual.RewardNum {
		r.fail("%s has %d rewards", name, len(pd.Rewards))
		return pos
	}
	for i, rd := range pd.Rewards {
		pos.RewardInfos[i] = pool.PositionRewardInfo{
			GrowthInsideLastX64: r.u128(fmt.Sprintf("%s rewards[%d]", name, i), rd.GrowthInsideLastX64),
			AmountOwed:          uint64(rd.AmountOwed),
		}
	}
	return pos
}

// FromState converts state back into a document. Only initialized ticks are listed.
func FromState(s *State) *Document {
	p := s.Pool
	ps := p.State
	doc := &Document{
		Version: Version,
		Seq:     s.Seq,
		Config:  p.Config,
		Pool: PoolDoc{
			SqrtPriceX64:           hexOf(ps.SqrtPriceX64),
			TickCurrent:            ps.TickCurrent,
			Liquidity:              hexOf(ps.Liquidity),
			FeeGrowthGlobal0X64:    hexOf(ps.FeeGrowthGlobal0X64),
			FeeGrowthGlobal1X64:    hexOf(ps.FeeGrowthGlobal1X64),
			ProtocolFeesToken0:     math.HexOrDecimal64(ps.ProtocolFeesToken0),
			ProtocolFeesToken1:     math.HexOrDecimal64(ps.ProtocolFeesToken1),
			FundFeesToken0:         math.HexOrDecimal64(ps.FundFeesToken0),
			FundFeesToken1:         math.HexOrDecimal64(ps.FundFeesToken1),
			SwapInAmountToken0:     hexOf(ps.SwapInAmountToken0),
			SwapOutAmountToken1:    hexOf(ps.SwapOutAmountToken1),
			SwapInAmountToken1:     hexOf(ps.SwapInAmountToken1),
			SwapOutAmountToken0:    hexOf(ps.SwapOutAmountToken0),
			TotalFeesToken0:        math.HexOrDecimal64(ps.TotalFeesToken0),
			TotalFeesClaimedToken0: math.HexOrDecimal64(ps.TotalFeesClaimedToken0),
			TotalFeesToken1:        math.HexOrDecimal64(ps.TotalFeesToken1),
			TotalFeesClaimedToken1: math.HexOrDecimal64(ps.TotalFeesClaimedToken1),
			Status:                 uint8(ps.Status),
			OpenTime:               math.HexOrDecimal64(ps.OpenTime),
		},
	}
	for _, w := range ps.TickArrayBitmap {
		doc.Pool.TickArrayBitmap = append(doc.Pool.TickArrayBitmap, math.HexOrDecimal64(w))
	}

	for i, info := range ps.RewardInfos {
		if !info.Initialized() {
			break
		}
		doc.Rewards = append(doc.Rewards, RewardDoc{
			State:                 uint8(info.State),
			OpenTime:              math.HexOrDecimal64(info.OpenTime),
			EndTime:               math.HexOrDecimal64(info.EndTime),
			LastUpdateTime:        math.HexOrDecimal64(info.LastUpdateTime),
			EmissionsPerSecondX64: hexOf(info.EmissionsPerSecondX64),
			TotalEmissioned:       math.HexOrDecimal64(info.TotalEmissioned),
			Claimed:               math.HexOrDecimal64(info.Claimed),
			GrowthGlobalX64:       hexOf(info.GrowthGlobalX64),
			VaultAmount:           math.HexOrDecimal64(s.RewardVaults[i]),
		})
	}

	for _, ta := range p.Ticks.All() {
		if ta.InitializedTickCount == 0 {
			continue
		}
		ad := TickArrayDoc{StartTickIndex: ta.StartTickIndex}
		for _, ts := range ta.Ticks {
			if !ts.IsInitialized() {
				continue
			}
			td := TickDoc{
				Tick:                 ts.Tick,
				LiquidityNet:         ts.LiquidityNet,
				LiquidityGross:       hexOf(ts.LiquidityGross),
				FeeGrowthOutside0X64: hexOf(ts.FeeGrowthOutside0X64),
				FeeGrowthOutside1X64: hexOf(ts.FeeGrowthOutside1X64),
			}
			for _, g := range ts.RewardGrowthsOutsideX64 {
				td.RewardGrowthsOutsideX64 = append(td.RewardGrowthsOutsideX64, hexOf(g))
			}
			ad.Ticks = append(ad.Ticks, td)
		}
		doc.TickArrays = append(doc.TickArrays, ad)
	}

	for _, id := range s.PositionIDs() {
		pos := s.Positions[id]
		pd := PositionDoc{
			ID:                      id,
			TickLower:               pos.TickLower,
			TickUpper:               pos.TickUpper,
			Liquidity:               hexOf(pos.Liquidity),
			FeeGrowthInside0LastX64: hexOf(pos.FeeGrowthInside0LastX64),
			FeeGrowthInside1LastX64: hexOf(pos.FeeGrowthInside1LastX64),
			TokenFeesOwed0:          math.HexOrDecimal64(pos.TokenFeesOwed0),
			TokenFeesOwed1:          math.HexOrDecimal64(pos.TokenFeesOwed1),
		}
		for _, ri := range pos.RewardInfos {
			pd.Rewards = append(pd.Rewards, PositionRewardDoc{
				GrowthInsideLastX64: hexOf(ri.GrowthInsideLastX64),
				AmountOwed:          math.HexOrDecimal64(ri.AmountOwed),
			})
		}
		doc.Positions = append(doc.Positions, pd)
	}

	if p.Oracle.Initialized {
		od := &OracleDoc{Index: p.Oracle.Index}
		for _, o := range p.Oracle.Observations[:p.Oracle.Cardinality] {
			od.Observations = append(od.Observations, ObservationDoc{
				BlockTimestamp:                   math.HexOrDecimal64(o.BlockTimestamp),
				TickCumulative:                   o.TickCumulative,
				SecondsPerLiquidityCumulativeX64: hexOf(o.SecondsPerLiquidityCumulativeX64),
			})
		}
		doc.Oracle = od
	}
	return doc
}

// Marshal encodes state as indented JSON.
func Marshal(s *State) ([]byte, error) {
	raw, err := sonnet.Marshal(FromState(s))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent snapshot: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WriteFile writes state to path through a temporary file and a rename, so readers never see a
// partial snapshot.
func WriteFile(path string, s *State) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
