package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"clmmScope/internal/model"
)

func readLines[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var v T
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "results.jsonl")
	errs := filepath.Join(dir, "errors.jsonl")
	s := NewJsonlStorage(out, errs)
	ctx := context.Background()

	first := []model.OperationResult{
		{Seq: 1, Kind: model.OpSwap, Amount0: 1000, Amount1: 996, FeeAmount: 3, SqrtPriceX64: "1", PoolLiquidity: "2"},
	}
	second := []model.OperationResult{
		{Seq: 2, Kind: model.OpCollect, PositionID: "lp", Amount0: 2, SqrtPriceX64: "1", PoolLiquidity: "2"},
	}
	if err := s.PutResultBatch(ctx, first); err != nil {
		t.Fatalf("put first batch: %v", err)
	}
	if err := s.PutResultBatch(ctx, second); err != nil {
		t.Fatalf("put second batch: %v", err)
	}
	if err := s.PutResultBatch(ctx, nil); err != nil {
		t.Fatalf("put empty batch: %v", err)
	}

	got := readLines[model.OperationResult](t, out)
	want := append(first, second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("results mismatch: %+v != %+v", got, want)
	}

	failures := []model.OperationError{{Seq: 3, Kind: model.OpDecrease, PositionID: "lp", Error: "liquidity underflow"}}
	if err := s.PutErrorBatch(ctx, failures); err != nil {
		t.Fatalf("put errors: %v", err)
	}
	if gotErrs := readLines[model.OperationError](t, errs); !reflect.DeepEqual(gotErrs, failures) {
		t.Fatalf("errors mismatch: %+v", gotErrs)
	}
}

func TestJsonlStorageDropsErrorsWithoutPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.jsonl")
	s := NewJsonlStorage(out, "")
	if err := s.PutErrorBatch(context.Background(), []model.OperationError{{Seq: 1, Error: "x"}}); err != nil {
		t.Fatalf("put errors: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("unexpected file: %v", err)
	}
}
