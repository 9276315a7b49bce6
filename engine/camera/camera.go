package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-sono/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	viewMatrix        [16]float32
	inverseViewMatrix [16]float32
	inverseView       [12]float32

	controller CameraController
}

// Camera turns the position and target of an attached CameraController into the view
// transforms the volume renderer needs. The renderer works in the volume's normalised space,
// where the longest volume edge spans [-1, 1], so the camera carries no projection of its own.
type Camera interface {
	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// InverseView returns the inverse view matrix as three row-major rows of
	// (x, y, z, translation), the transform the render kernel takes.
	//
	// Returns:
	//   - [12]float32: the inverse view rows
	InverseView() [12]float32

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Update reads position/target from the controller and recomputes the transforms.
	// Should be called once per frame. If no controller is attached, this method does nothing.
	Update()

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera looking down -Z from the origin until a controller is
// attached via SetController or the WithController option.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu: &sync.Mutex{},
		up: [3]float32{0, 1, 0},
	}
	common.Identity(c.viewMatrix[:])
	common.Identity(c.inverseViewMatrix[:])
	c.inverseView = common.TransformRows(c.inverseViewMatrix[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) InverseView() [12]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseView
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// updateMatrices recalculates the view and inverse view from the controller. A singular view
// (position on the target) keeps the previous inverse. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.controller == nil {
		return
	}

	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()

	common.LookAt(c.viewMatrix[:],
		px, py, pz,
		tx, ty, tz,
		c.up[0], c.up[1], c.up[2],
	)
	if common.Invert4(c.inverseViewMatrix[:], c.viewMatrix[:]) {
		c.inverseView = common.TransformRows(c.inverseViewMatrix[:])
	}
}
