package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"lukechampine.com/uint128"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/fixedpoint"
	"clmmScope/internal/pool"
)

const baseSnapshot = `{
  "version": 1,
  "seq": 7,
  "config": {"index": 0, "tickSpacing": 60, "tradeFeeRate": 3000, "protocolFeeRate": 120000, "fundFeeRate": 40000},
  "pool": {
    "sqrtPriceX64": "18446744073709551616",
    "tickCurrent": 0,
    "liquidity": "1000000",
    "protocolFeesToken0": 0,
    "protocolFeesToken1": 0,
    "fundFeesToken0": 0,
    "fundFeesToken1": 0,
    "totalFeesToken0": 0,
    "totalFeesClaimedToken0": 0,
    "totalFeesToken1": 0,
    "totalFeesClaimedToken1": 0,
    "status": 0,
    "openTime": 100
  },
  "tickArrays": [
    {"startTickIndex": -3600, "ticks": [{"tick": -600, "liquidityNet": "1000000", "liquidityGross": "0xf4240"}]},
    {"startTickIndex": 0, "ticks": [{"tick": 600, "liquidityNet": "-1000000", "liquidityGross": "1000000"}]}
  ],
  "positions": [
    {"id": "lp-1", "tickLower": -600, "tickUpper": 600, "liquidity": "1000000", "tokenFeesOwed0": 0, "tokenFeesOwed1": 0}
  ]
}`

func baseDoc(t *testing.T) *Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(baseSnapshot), &doc); err != nil {
		t.Fatalf("unmarshal base snapshot: %v", err)
	}
	return &doc
}

func TestDecodeBaseSnapshot(t *testing.T) {
	st, err := Decode([]byte(baseSnapshot))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if st.Seq != 7 {
		t.Fatalf("seq mismatch: %d", st.Seq)
	}
	if got := st.Pool.State.Liquidity; got != uint128.From64(1_000_000) {
		t.Fatalf("liquidity mismatch: %s", got)
	}
	if got := st.Pool.State.TickArrayBitmap.Count(); got != 2 {
		t.Fatalf("derived bitmap marks %d arrays, want 2", got)
	}
	if !st.Pool.Oracle.Initialized || st.Pool.Oracle.Latest().BlockTimestamp != 100 {
		t.Fatalf("oracle not seeded at open time: %+v", st.Pool.Oracle.Latest())
	}
	tick, err := st.Pool.Ticks.Tick(-600)
	if err != nil {
		t.Fatalf("tick lookup: %v", err)
	}
	if tick.LiquidityGross != uint128.From64(1_000_000) {
		t.Fatalf("hex gross not parsed: %s", tick.LiquidityGross)
	}
	if ids := st.PositionIDs(); !reflect.DeepEqual(ids, []string{"lp-1"}) {
		t.Fatalf("positions mismatch: %v", ids)
	}
}

func TestRoundTripAfterActivity(t *testing.T) {
	st, err := Decode([]byte(baseSnapshot))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	p, err := st.Pool.InitReward(0, 200, 1200, fixedpoint.Q64, 150)
	if err != nil {
		t.Fatalf("init reward: %v", err)
	}
	res, err := pool.NewEngine(pool.EngineConfig{}, nil).Swap(p, pool.SwapParams{
		AmountSpecified: 20_000,
		ZeroForOne:      true,
		ExactInput:      true,
		BlockTimestamp:  300,
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	st.Pool = res.Pool
	st.Seq = 8
	st.RewardVaults[0] = 1000

	data, err := Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode round trip: %v", err)
	}

	if !reflect.DeepEqual(back.Pool.State, st.Pool.State) {
		t.Fatalf("pool state mismatch:\n%+v\n%+v", back.Pool.State, st.Pool.State)
	}
	if !reflect.DeepEqual(back.Pool.Oracle, st.Pool.Oracle) {
		t.Fatalf("oracle mismatch")
	}
	if !reflect.DeepEqual(back.Pool.Ticks.All(), st.Pool.Ticks.All()) {
		t.Fatalf("tick arrays mismatch")
	}
	if !reflect.DeepEqual(back.Positions, st.Positions) {
		t.Fatalf("positions mismatch: %+v != %+v", back.Positions, st.Positions)
	}
	if back.Seq != 8 || back.RewardVaults != st.RewardVaults {
		t.Fatalf("seq or vaults mismatch: %d %v", back.Seq, back.RewardVaults)
	}
}

func TestBuildRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Document)
		want   error
	}{
		{
			name:   "version",
			mutate: func(d *Document) { d.Version = 2 },
		},
		{
			name:   "unaligned tick",
			mutate: func(d *Document) { d.TickArrays[1].Ticks[0].Tick = 630 },
			want:   ammerr.ErrInvalidTickSpacing,
		},
		{
			name: "tick past max tick",
			mutate: func(d *Document) {
				td := d.TickArrays[1].Ticks[0]
				td.Tick = 443640
				d.TickArrays = append(d.TickArrays, TickArrayDoc{StartTickIndex: 442800, Ticks: []TickDoc{td}})
			},
			want: ammerr.ErrTickOutOfRange,
		},
		{
			name: "net exceeds gross",
			mutate: func(d *Document) {
				d.TickArrays[0].Ticks[0].LiquidityGross = (*math.HexOrDecimal256)(uint128.From64(10).Big())
			},
			want: ammerr.ErrInvalidTickArray,
		},
		{
			name: "bitmap disagrees",
			mutate: func(d *Document) {
				d.Pool.TickArrayBitmap = make([]math.HexOrDecimal64, 16)
			},
			want: ammerr.ErrInvalidTickArray,
		},
		{
			name: "liquidity disagrees",
			mutate: func(d *Document) {
				d.Pool.Liquidity = (*math.HexOrDecimal256)(uint128.From64(5).Big())
			},
		},
		{
			name: "empty position range",
			mutate: func(d *Document) {
				d.Positions[0].TickUpper = d.Positions[0].TickLower
			},
			want: ammerr.ErrInvalidRange,
		},
		{
			name: "duplicate position",
			mutate: func(d *Document) {
				d.Positions = append(d.Positions, d.Positions[0])
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := baseDoc(t)
			tc.mutate(doc)
			_, err := Build(doc)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("error %v does not wrap %v", err, tc.want)
			}
		})
	}
}

func TestWriteFileAndLoad(t *testing.T) {
	st, err := Decode([]byte(baseSnapshot))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "pool.json")
	if err := WriteFile(path, st); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Pool.State, st.Pool.State) {
		t.Fatalf("state mismatch after load")
	}
}
