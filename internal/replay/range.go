package replay

import "fmt"

// Range is an inclusive range of positions in the op log.
type Range struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into consecutive ranges of at most batchSize entries.
func SplitRange(from, to, batchSize uint64) ([]Range, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to must be >= from")
	}

	ranges := make([]Range, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, Range{From: start, To: end})
		if end == to {
			break
		}
	}
	return ranges, nil
}
