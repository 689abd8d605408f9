package tickarray

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"clmmScope/internal/ammerr"
)

// BitmapSize is the number of tick arrays indexed on each side of tick zero.
const BitmapSize = 512

// Bitmap marks which tick arrays hold at least one initialized tick. Bits 0..511 cover arrays
// starting below zero, bits 512..1023 cover arrays starting at or above zero.
type Bitmap [2 * BitmapSize / 64]uint64

// MaxTickInBitmap is the first tick beyond the range the bitmap can index.
func MaxTickInBitmap(tickSpacing uint16) int32 {
	return TickCount(tickSpacing) * BitmapSize
}

func position(startIndex int32, tickSpacing uint16) int32 {
	count := TickCount(tickSpacing)
	p := startIndex / count
	if startIndex < 0 && startIndex%count != 0 {
		p--
	}
	return p + BitmapSize
}

func (b *Bitmap) set() *bitset.BitSet {
	return bitset.From(b[:])
}

// Flip toggles the bit of the array starting at startIndex.
func (b *Bitmap) Flip(startIndex int32, tickSpacing uint16) error {
	if err := CheckStartIndex(startIndex, tickSpacing); err != nil {
		return err
	}
	p := position(startIndex, tickSpacing)
	b[p/64] ^= 1 << uint(p%64)
	return nil
}

// IsInitialized reports whether the array starting at startIndex is marked.
func (b *Bitmap) IsInitialized(startIndex int32, tickSpacing uint16) bool {
	if CheckStartIndex(startIndex, tickSpacing) != nil {
		return false
	}
	return b.set().Test(uint(position(startIndex, tickSpacing)))
}

// NextInitializedArray returns the start index of the nearest marked array strictly beyond
// lastStart in the swap direction.
func (b *Bitmap) NextInitializedArray(lastStart int32, tickSpacing uint16, zeroForOne bool) (int32, bool) {
	if tickSpacing == 0 {
		return 0, false
	}
	p := position(lastStart, tickSpacing)
	bits := b.set()

	var bit uint
	var ok bool
	if zeroForOne {
		if p <= 0 {
			return 0, false
		}
		from := p - 1
		if from >= 2*BitmapSize {
			from = 2*BitmapSize - 1
		}
		bit, ok = bits.PreviousSet(uint(from))
	} else {
		if p >= 2*BitmapSize-1 {
			return 0, false
		}
		from := p + 1
		if from < 0 {
			from = 0
		}
		bit, ok = bits.NextSet(uint(from))
	}
	if !ok || bit >= 2*BitmapSize {
		return 0, false
	}
	return (int32(bit) - BitmapSize) * TickCount(tickSpacing), true
}

// FirstInitializedArray returns the array holding tickCurrent if it is marked, otherwise the
// nearest marked array in the swap direction.
func (b *Bitmap) FirstInitializedArray(tickCurrent int32, tickSpacing uint16, zeroForOne bool) (int32, bool) {
	start := ArrayStartIndex(tickCurrent, tickSpacing)
	if b.IsInitialized(start, tickSpacing) {
		return start, true
	}
	return b.NextInitializedArray(start, tickSpacing, zeroForOne)
}

// Count returns the number of marked arrays.
func (b *Bitmap) Count() int {
	return int(b.set().Count())
}

// Validate checks that the marked arrays agree with the supplied arrays' initialized counts.
func (b *Bitmap) Validate(arrays Reader, tickSpacing uint16) error {
	for _, ta := range arrays.All() {
		marked := b.IsInitialized(ta.StartTickIndex, tickSpacing)
		if marked != (ta.InitializedTickCount > 0) {
			return fmt.Errorf("array %d marked=%v count=%d: %w", ta.StartTickIndex, marked, ta.InitializedTickCount, ammerr.ErrInvalidTickArray)
		}
	}
	bits := b.set()
	for i, ok := bits.NextSet(0); ok; i, ok = bits.NextSet(i + 1) {
		start := (int32(i) - BitmapSize) * TickCount(tickSpacing)
		if _, found := arrays.Array(start); !found {
			return fmt.Errorf("array %d marked but not supplied: %w", start, ammerr.ErrTickArrayMissing)
		}
	}
	return nil
}
