package present

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
)

var (
	// ErrAlreadyAcquired is returned when the compute domain acquires a frame it already owns.
	ErrAlreadyAcquired = errors.New("frame already acquired by compute")

	// ErrNotOwned is returned when an operation needs the other domain to own the frame.
	ErrNotOwned = errors.New("frame not owned by the calling domain")
)

// Owner is the domain currently allowed to touch a SharedFrame.
type Owner int

const (
	// OwnerDisplay lets the display domain present or read the frame.
	OwnerDisplay Owner = iota

	// OwnerCompute lets kernels write the frame.
	OwnerCompute
)

func (o Owner) String() string {
	if o == OwnerCompute {
		return "compute"
	}
	return "display"
}

// sharedFrame is the implementation of the SharedFrame interface.
type sharedFrame struct {
	ctx    compute.Context
	buffer kernel.Buffer
	width  uint32
	height uint32
	owner  Owner
}

// SharedFrame is a width x height pixel buffer handed back and forth between the compute and
// display domains. It starts display-owned. Kernels may only write it between AcquireCompute
// and ReleaseCompute; the display may only present or read it outside that window.
type SharedFrame interface {
	compute.FrameTarget

	// Owner returns the domain that currently owns the frame.
	//
	// Returns:
	//   - Owner: the owning domain
	Owner() Owner

	// AcquireCompute hands the frame to the compute domain.
	//
	// Returns:
	//   - error: ErrAlreadyAcquired if compute already owns the frame
	AcquireCompute() error

	// ReleaseCompute hands the frame back to the display domain.
	//
	// Returns:
	//   - error: ErrNotOwned if compute does not own the frame
	ReleaseCompute() error

	// Resize reallocates the pixel buffer. Contents are discarded.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: ErrNotOwned while compute owns the frame, or an allocation error
	Resize(width, height uint32) error

	// Release frees the pixel buffer.
	Release()
}

var _ SharedFrame = &sharedFrame{}

// NewSharedFrame allocates a display-owned frame of width*height*4 bytes.
//
// Parameters:
//   - ctx: the compute context that renders into the frame
//   - width, height: the size in pixels
//
// Returns:
//   - SharedFrame: the frame
//   - error: an allocation error
func NewSharedFrame(ctx compute.Context, width, height uint32) (SharedFrame, error) {
	f := &sharedFrame{ctx: ctx, owner: OwnerDisplay}
	if err := f.allocate(width, height); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *sharedFrame) allocate(width, height uint32) error {
	size := max(uint64(width)*uint64(height)*4, 4)
	buf, err := f.ctx.Allocate(fmt.Sprintf("Frame %dx%d", width, height), size)
	if err != nil {
		return err
	}
	if f.buffer != nil {
		f.buffer.Release()
	}
	f.buffer = buf
	f.width, f.height = width, height
	return nil
}

func (f *sharedFrame) Buffer() kernel.Buffer {
	return f.buffer
}

func (f *sharedFrame) Width() uint32 {
	return f.width
}

func (f *sharedFrame) Height() uint32 {
	return f.height
}

func (f *sharedFrame) OwnedByCompute() bool {
	return f.owner == OwnerCompute
}

func (f *sharedFrame) Owner() Owner {
	return f.owner
}

func (f *sharedFrame) AcquireCompute() error {
	if f.owner == OwnerCompute {
		return ErrAlreadyAcquired
	}
	f.owner = OwnerCompute
	return nil
}

func (f *sharedFrame) ReleaseCompute() error {
	if f.owner != OwnerCompute {
		return ErrNotOwned
	}
	f.owner = OwnerDisplay
	return nil
}

func (f *sharedFrame) Resize(width, height uint32) error {
	if f.owner == OwnerCompute {
		return ErrNotOwned
	}
	if width == f.width && height == f.height {
		return nil
	}
	return f.allocate(width, height)
}

func (f *sharedFrame) Release() {
	if f.buffer != nil {
		f.buffer.Release()
		f.buffer = nil
	}
}
