package camera

import (
	"math"
	"sync"
)

// orbitState is everything that places the eye. The eye position is derived from it on
// demand, so there is no second copy to keep in sync.
type orbitState struct {
	target    [3]float32
	radius    float32
	azimuth   float32
	elevation float32
}

// eye returns the eye position on the sphere around the target.
func (s orbitState) eye() [3]float32 {
	sinEl, cosEl := math.Sincos(float64(s.elevation))
	sinAz, cosAz := math.Sincos(float64(s.azimuth))
	r := float64(s.radius)
	return [3]float32{
		s.target[0] + float32(r*cosEl*sinAz),
		s.target[1] + float32(r*sinEl),
		s.target[2] + float32(r*cosEl*cosAz),
	}
}

// axes returns the view's right and up unit vectors, matching common.LookAt with a +Y world
// up. The right vector always lies in the horizontal plane.
func (s orbitState) axes() (right, up [3]float32) {
	sinEl, cosEl := math.Sincos(float64(s.elevation))
	sinAz, cosAz := math.Sincos(float64(s.azimuth))
	// backward = (cosEl*sinAz, sinEl, cosEl*cosAz); right = up x backward, normalised.
	right = [3]float32{float32(cosAz), 0, float32(-sinAz)}
	up = [3]float32{float32(-sinEl * sinAz), float32(cosEl), float32(-sinEl * cosAz)}
	return right, up
}

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	orbitState
	home orbitState

	minRadius, maxRadius       float32
	minElevation, maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates an orbit controller looking at the origin of normalised volume
// space, where the longest volume edge spans [-1, 1], from slightly above and outside it.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu: &sync.Mutex{},
		orbitState: orbitState{
			radius:    3,
			elevation: 0.3,
		},
		minRadius:        1.2,
		maxRadius:        12,
		minElevation:     -math.Pi/2 + 0.1,
		maxElevation:     math.Pi/2 - 0.1,
		orbitSpeed:       0.03,
		mouseSensitivity: 0.01,
		zoomSpeed:        0.25,
		panSpeed:         0.005,
	}
	for _, option := range options {
		option(cc)
	}
	cc.radius = clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	cc.home = cc.orbitState
	return cc
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

// turn applies an orbit step and keeps the elevation in bounds. Caller must hold the mutex.
func (cc *cameraControllerImpl) turn(dAzimuth, dElevation float32) {
	cc.azimuth += dAzimuth
	cc.elevation = clamp(cc.elevation+dElevation, cc.minElevation, cc.maxElevation)
}

func (cc *cameraControllerImpl) Position() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	e := cc.eye()
	return e[0], e[1], e[2]
}

func (cc *cameraControllerImpl) Target() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target[0], cc.target[1], cc.target[2]
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = [3]float32{x, y, z}
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
}

func (cc *cameraControllerImpl) Reset() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbitState = cc.home
}

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.turn(-cc.orbitSpeed, 0)
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.turn(cc.orbitSpeed, 0)
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.turn(0, cc.orbitSpeed)
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.turn(0, -cc.orbitSpeed)
}

func (cc *cameraControllerImpl) Drag(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.turn(-dx*cc.mouseSensitivity, dy*cc.mouseSensitivity)
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(radius, cc.minRadius, cc.maxRadius)
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = clamp(elevation, cc.minElevation, cc.maxElevation)
}

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	right, _ := cc.axes()
	cc.slide(right, delta*cc.panSpeed)
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, up := cc.axes()
	cc.slide(up, delta*cc.panSpeed)
}

// slide moves the target, and with it the eye, along dir. Caller must hold the mutex.
func (cc *cameraControllerImpl) slide(dir [3]float32, distance float32) {
	for i := range cc.target {
		cc.target[i] += dir[i] * distance
	}
}
