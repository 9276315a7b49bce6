package volume

import "fmt"

// Handle is a stable reference to a Volume stored in an Arena. A handle outlives the volume
// it names: once the volume is destroyed the handle stays invalid forever, even after its
// slot is reused. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("volume#%d.%d", h.index, h.generation)
}

type arenaSlot struct {
	volume     *Volume
	generation uint32
	live       bool
}

// Arena owns every Volume in a pipeline. Filters and the pipeline hold Handles instead of
// pointers, so a destroyed producer shows up as an invalid handle. Arena is not safe for
// concurrent use; it belongs to the control thread.
type Arena struct {
	slots []arenaSlot
	free  []uint32
	live  int
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{}
}

// Insert stores v and returns its handle.
//
// Parameters:
//   - v: the volume to own
//
// Returns:
//   - Handle: the new handle
func (a *Arena) Insert(v *Volume) Handle {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.volume = v
		s.live = true
		return Handle{index: idx, generation: s.generation}
	}
	a.slots = append(a.slots, arenaSlot{volume: v, generation: 1, live: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}
}

// Get returns the volume named by h.
//
// Parameters:
//   - h: the handle
//
// Returns:
//   - *Volume: the volume, or nil
//   - bool: false if h is not valid
func (a *Arena) Get(h Handle) (*Volume, bool) {
	if !a.Valid(h) {
		return nil, false
	}
	return a.slots[h.index].volume, true
}

// Lookup is Get returning ErrInvalidHandle instead of a flag.
func (a *Arena) Lookup(h Handle) (*Volume, error) {
	v, ok := a.Get(h)
	if !ok {
		return nil, fmt.Errorf("%s: %w", h, ErrInvalidHandle)
	}
	return v, nil
}

// Valid reports whether h refers to a live volume.
func (a *Arena) Valid(h Handle) bool {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.index]
	return s.live && s.generation == h.generation
}

// Destroy releases the volume's device buffer and invalidates h. Destroying an invalid
// handle is a no-op.
//
// Parameters:
//   - h: the handle to destroy
func (a *Arena) Destroy(h Handle) {
	if !a.Valid(h) {
		return
	}
	s := &a.slots[h.index]
	s.volume.Release()
	s.volume = nil
	s.live = false
	s.generation++
	a.free = append(a.free, h.index)
	a.live--
}

// Len returns the number of live volumes.
func (a *Arena) Len() int {
	return a.live
}
