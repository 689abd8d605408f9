package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"clmmScope/internal/model"
)

// ReadOps parses a JSONL op log. Blank lines are skipped; sequence numbers must strictly increase.
func ReadOps(r io.Reader) ([]model.Operation, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []model.Operation
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var op model.Operation
		if err := sonnet.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("line %d: parse op: %w", lineNo, err)
		}
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if n := len(ops); n > 0 && op.Seq <= ops[n-1].Seq {
			return nil, fmt.Errorf("line %d: seq %d does not follow %d", lineNo, op.Seq, ops[n-1].Seq)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan op log: %w", err)
	}
	return ops, nil
}

// LoadOps reads the op log at path.
func LoadOps(path string) ([]model.Operation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open op log: %w", err)
	}
	defer f.Close()
	return ReadOps(f)
}
