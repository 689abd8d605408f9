// Package tickarray pages tick state into fixed windows and indexes the windows with a bitmap.
package tickarray

import (
	"fmt"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/tickmath"
)

// TickArraySize is the number of tick slots per array.
const TickArraySize = 60

// TickArray is a window of TickArraySize spaced ticks starting at StartTickIndex.
type TickArray struct {
	StartTickIndex       int32
	Ticks                [TickArraySize]TickState
	InitializedTickCount uint8
}

// TickCount is the tick span covered by one array.
func TickCount(tickSpacing uint16) int32 {
	return int32(tickSpacing) * TickArraySize
}

// ArrayStartIndex returns the start index of the array containing tick, rounding toward -inf.
func ArrayStartIndex(tick int32, tickSpacing uint16) int32 {
	return tickmath.TickWithSpacing(tick, TickCount(tickSpacing))
}

// CheckStartIndex validates an array start index against the spacing and the bitmap range.
func CheckStartIndex(startIndex int32, tickSpacing uint16) error {
	if tickSpacing == 0 {
		return ammerr.ErrInvalidTickSpacing
	}
	count := TickCount(tickSpacing)
	if startIndex%count != 0 {
		return fmt.Errorf("start %d not aligned to %d: %w", startIndex, count, ammerr.ErrInvalidTickArray)
	}
	limit := MaxTickInBitmap(tickSpacing)
	if startIndex < -limit || startIndex >= limit {
		return fmt.Errorf("start %d outside bitmap range %d: %w", startIndex, limit, ammerr.ErrInvalidTickArray)
	}
	if startIndex+count <= tickmath.MinTick || startIndex > tickmath.MaxTick {
		return fmt.Errorf("start %d: %w", startIndex, ammerr.ErrTickOutOfRange)
	}
	return nil
}

// NewTickArray returns an empty array with tick indices filled in.
func NewTickArray(startIndex int32, tickSpacing uint16) (*TickArray, error) {
	if err := CheckStartIndex(startIndex, tickSpacing); err != nil {
		return nil, err
	}
	ta := &TickArray{StartTickIndex: startIndex}
	for i := range ta.Ticks {
		ta.Ticks[i].Tick = startIndex + int32(i)*int32(tickSpacing)
	}
	return ta, nil
}

func (ta *TickArray) offset(tick int32, tickSpacing uint16) (int, error) {
	if tickSpacing == 0 || tick%int32(tickSpacing) != 0 {
		return 0, fmt.Errorf("tick %d spacing %d: %w", tick, tickSpacing, ammerr.ErrInvalidTickSpacing)
	}
	if ArrayStartIndex(tick, tickSpacing) != ta.StartTickIndex {
		return 0, fmt.Errorf("tick %d not in array %d: %w", tick, ta.StartTickIndex, ammerr.ErrInvalidTickArray)
	}
	return int((tick - ta.StartTickIndex) / int32(tickSpacing)), nil
}

// Tick returns a copy of the state stored for tick.
func (ta *TickArray) Tick(tick int32, tickSpacing uint16) (TickState, error) {
	i, err := ta.offset(tick, tickSpacing)
	if err != nil {
		return TickState{}, err
	}
	return ta.Ticks[i], nil
}

// FirstInitializedTick returns the highest initialized tick when zeroForOne, else the lowest.
func (ta *TickArray) FirstInitializedTick(zeroForOne bool) (TickState, bool) {
	if zeroForOne {
		for i := TickArraySize - 1; i >= 0; i-- {
			if ta.Ticks[i].IsInitialized() {
				return ta.Ticks[i], true
			}
		}
		return TickState{}, false
	}
	for i := 0; i < TickArraySize; i++ {
		if ta.Ticks[i].IsInitialized() {
			return ta.Ticks[i], true
		}
	}
	return TickState{}, false
}

// NextInitializedTick searches this array for the next initialized tick from tickCurrent.
// Descending searches include tickCurrent itself, since price may sit above it; ascending
// searches start one slot above.
func (ta *TickArray) NextInitializedTick(tickCurrent int32, tickSpacing uint16, zeroForOne bool) (TickState, bool) {
	if ArrayStartIndex(tickCurrent, tickSpacing) != ta.StartTickIndex {
		return TickState{}, false
	}
	offset := int((tickCurrent - ta.StartTickIndex) / int32(tickSpacing))

	if zeroForOne {
		for i := offset; i >= 0; i-- {
			if ta.Ticks[i].IsInitialized() {
				return ta.Ticks[i], true
			}
		}
		return TickState{}, false
	}
	for i := offset + 1; i < TickArraySize; i++ {
		if ta.Ticks[i].IsInitialized() {
			return ta.Ticks[i], true
		}
	}
	return TickState{}, false
}

// Clone returns a deep copy.
func (ta *TickArray) Clone() *TickArray {
	cp := *ta
	return &cp
}
