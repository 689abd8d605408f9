package tickarray

import (
	"fmt"
	"sort"

	"clmmScope/internal/ammerr"
	"clmmScope/internal/tickmath"
)

// Reader exposes tick arrays by start index.
type Reader interface {
	Array(startIndex int32) (*TickArray, bool)
	All() []*TickArray
}

// Store holds the tick arrays of one pool, keyed by start index.
type Store struct {
	tickSpacing uint16
	arrays      map[int32]*TickArray
}

// NewStore returns an empty store for a pool with the given spacing.
func NewStore(tickSpacing uint16) *Store {
	return &Store{tickSpacing: tickSpacing, arrays: make(map[int32]*TickArray)}
}

// TickSpacing returns the pool spacing the store was built for.
func (s *Store) TickSpacing() uint16 {
	return s.tickSpacing
}

// Array returns the array starting at startIndex.
func (s *Store) Array(startIndex int32) (*TickArray, bool) {
	ta, ok := s.arrays[startIndex]
	return ta, ok
}

// All returns the arrays ordered by start index.
func (s *Store) All() []*TickArray {
	out := make([]*TickArray, 0, len(s.arrays))
	for _, ta := range s.arrays {
		out = append(out, ta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTickIndex < out[j].StartTickIndex })
	return out
}

// Put adds or replaces an array after validating its layout.
func (s *Store) Put(ta *TickArray) error {
	if ta == nil {
		return fmt.Errorf("tick array is nil")
	}
	if err := CheckStartIndex(ta.StartTickIndex, s.tickSpacing); err != nil {
		return err
	}
	var count int
	for i, tick := range ta.Ticks {
		want := ta.StartTickIndex + int32(i)*int32(s.tickSpacing)
		if tick.Tick != want {
			return fmt.Errorf("array %d slot %d holds tick %d: %w", ta.StartTickIndex, i, tick.Tick, ammerr.ErrInvalidTickArray)
		}
		if tick.IsInitialized() {
			count++
		}
	}
	if count != int(ta.InitializedTickCount) {
		return fmt.Errorf("array %d counts %d initialized ticks, holds %d: %w", ta.StartTickIndex, ta.InitializedTickCount, count, ammerr.ErrInvalidTickArray)
	}
	s.arrays[ta.StartTickIndex] = ta
	return nil
}

// Tick returns the state of tick, or an empty state when its array was never created.
func (s *Store) Tick(tick int32) (TickState, error) {
	if err := tickmath.CheckTickBoundary(tick, s.tickSpacing); err != nil {
		return TickState{}, err
	}
	ta, ok := s.arrays[ArrayStartIndex(tick, s.tickSpacing)]
	if !ok {
		return TickState{Tick: tick}, nil
	}
	return ta.Tick(tick, s.tickSpacing)
}

// SetTick stores state and keeps the array counter and the pool bitmap in step: the array's bit
// flips exactly when its initialized count moves between zero and one.
func (s *Store) SetTick(state TickState, bitmap *Bitmap) error {
	if bitmap == nil {
		return fmt.Errorf("bitmap is nil")
	}
	if err := tickmath.CheckTickBoundary(state.Tick, s.tickSpacing); err != nil {
		return err
	}
	start := ArrayStartIndex(state.Tick, s.tickSpacing)
	ta, ok := s.arrays[start]
	if !ok {
		if !state.IsInitialized() {
			return nil
		}
		created, err := NewTickArray(start, s.tickSpacing)
		if err != nil {
			return err
		}
		ta = created
	}
	i, err := ta.offset(state.Tick, s.tickSpacing)
	if err != nil {
		return err
	}

	before := ta.Ticks[i].IsInitialized()
	after := state.IsInitialized()
	switch {
	case !before && after:
		if ta.InitializedTickCount == TickArraySize {
			return fmt.Errorf("array %d count overflow: %w", start, ammerr.ErrInvalidTickArray)
		}
		ta.InitializedTickCount++
		if ta.InitializedTickCount == 1 {
			if err := bitmap.Flip(start, s.tickSpacing); err != nil {
				ta.InitializedTickCount--
				return err
			}
		}
	case before && !after:
		ta.InitializedTickCount--
		if ta.InitializedTickCount == 0 {
			if err := bitmap.Flip(start, s.tickSpacing); err != nil {
				ta.InitializedTickCount++
				return err
			}
		}
	}
	ta.Ticks[i] = state
	s.arrays[start] = ta
	return nil
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	cp := NewStore(s.tickSpacing)
	for start, ta := range s.arrays {
		cp.arrays[start] = ta.Clone()
	}
	return cp
}

// NextInitializedTick finds the next initialized tick from tickCurrent in the swap direction,
// first inside the current array and then through the bitmap. It reports false when no marked
// array remains in that direction.
func NextInitializedTick(bitmap *Bitmap, arrays Reader, tickCurrent int32, tickSpacing uint16, zeroForOne bool) (TickState, bool, error) {
	if tickSpacing == 0 {
		return TickState{}, false, ammerr.ErrInvalidTickSpacing
	}
	start := ArrayStartIndex(tickCurrent, tickSpacing)
	if bitmap.IsInitialized(start, tickSpacing) {
		ta, ok := arrays.Array(start)
		if !ok {
			return TickState{}, false, fmt.Errorf("array %d: %w", start, ammerr.ErrTickArrayMissing)
		}
		if ts, found := ta.NextInitializedTick(tickCurrent, tickSpacing, zeroForOne); found {
			return ts, true, nil
		}
	}

	next, ok := bitmap.NextInitializedArray(start, tickSpacing, zeroForOne)
	if !ok {
		return TickState{}, false, nil
	}
	ta, ok := arrays.Array(next)
	if !ok {
		return TickState{}, false, fmt.Errorf("array %d: %w", next, ammerr.ErrTickArrayMissing)
	}
	ts, found := ta.FirstInitializedTick(zeroForOne)
	if !found {
		return TickState{}, false, fmt.Errorf("array %d marked but empty: %w", next, ammerr.ErrInvalidTickArray)
	}
	return ts, true, nil
}
