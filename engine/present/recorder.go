package present

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/nfnt/resize"
	"golang.org/x/image/tiff"
)

type capturedFrame struct {
	width, height int
	pix           []byte
}

// recorder is the implementation of the Recorder interface.
type recorder struct {
	ctx compute.Context

	mu     sync.Mutex
	armed  int
	frames []capturedFrame

	scale   float64
	workers int
	pool    worker.DynamicWorkerPool
	taskID  int
}

// Recorder captures presented frames and exports them as a numbered TIFF sequence.
type Recorder interface {
	// Arm captures the next n presented frames.
	//
	// Parameters:
	//   - n: the number of frames to capture, added to any still pending
	Arm(n int)

	// Armed returns the number of frames still to capture.
	//
	// Returns:
	//   - int: the pending capture count
	Armed() int

	// Capture reads back a display-owned frame if the recorder is armed.
	//
	// Parameters:
	//   - frame: the frame to read
	//
	// Returns:
	//   - error: ErrNotOwned if compute owns the frame, or a read error
	Capture(frame compute.FrameTarget) error

	// Frames returns the number of captured frames not yet exported.
	//
	// Returns:
	//   - int: the captured frame count
	Frames() int

	// Export writes every captured frame to dir as frame_0000.tif, frame_0001.tif and so on,
	// Deflate compressed and scaled by the configured factor. Encoding runs on the worker
	// pool. Exported frames are dropped from the recorder.
	//
	// Parameters:
	//   - dir: the output directory, created if missing
	//
	// Returns:
	//   - []string: the written paths in frame order
	//   - error: the joined encode errors
	Export(dir string) ([]string, error)

	// Reset disarms the recorder and drops captured frames.
	Reset()
}

var _ Recorder = &recorder{}

// NewRecorder creates a disarmed recorder.
//
// Parameters:
//   - ctx: the compute context to read frames back through
//   - options: RecorderBuilderOption values
//
// Returns:
//   - Recorder: the recorder
func NewRecorder(ctx compute.Context, options ...RecorderBuilderOption) Recorder {
	r := &recorder{
		ctx:     ctx,
		scale:   1,
		workers: 4,
	}
	for _, option := range options {
		option(r)
	}
	r.pool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)
	return r
}

func (r *recorder) Arm(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed += max(n, 0)
	log.Printf("[Recorder] Armed for %d frames", r.armed)
}

func (r *recorder) Armed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

func (r *recorder) Capture(frame compute.FrameTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed == 0 {
		return nil
	}
	if frame.OwnedByCompute() {
		return ErrNotOwned
	}
	w, h := frame.Width(), frame.Height()
	pix, err := r.ctx.ReadBuffer(frame.Buffer(), 0, uint64(w)*uint64(h)*4)
	if err != nil {
		return err
	}
	r.frames = append(r.frames, capturedFrame{width: int(w), height: int(h), pix: pix})
	r.armed--
	if r.armed == 0 {
		log.Printf("[Recorder] Captured %d frames", len(r.frames))
	}
	return nil
}

func (r *recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) Export(dir string) ([]string, error) {
	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	r.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, len(frames))
	errs := make([]error, len(frames))
	var wg sync.WaitGroup
	for i, fr := range frames {
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%04d.tif", i))
		wg.Add(1)
		r.taskID++
		r.pool.SubmitTask(worker.Task{
			ID: r.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				errs[i] = writeTIFF(paths[i], r.frameImage(fr))
				return nil, errs[i]
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	log.Printf("[Recorder] Exported %d frames to %s", len(paths), dir)
	return paths, nil
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = 0
	r.frames = nil
}

// frameImage wraps captured pixels, which are already RGBA8 in memory order, and applies the
// export scale.
func (r *recorder) frameImage(fr capturedFrame) image.Image {
	img := &image.RGBA{
		Pix:    fr.pix,
		Stride: fr.width * 4,
		Rect:   image.Rect(0, 0, fr.width, fr.height),
	}
	if r.scale <= 0 || r.scale == 1 {
		return img
	}
	w := max(uint(float64(fr.width)*r.scale), 1)
	return resize.Resize(w, 0, img, resize.Bilinear)
}

func writeTIFF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
