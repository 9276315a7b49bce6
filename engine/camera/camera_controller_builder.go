package camera

import "math"

// CameraControllerOption configures a controller in NewCameraController. The starting orbit
// set here is also what Reset returns to.
type CameraControllerOption func(*cameraControllerImpl)

// maxElevationBound keeps the eye off the poles, where the view's right axis is undefined.
const maxElevationBound = math.Pi/2 - 0.01

// WithRadius sets the starting distance from the target.
//
// Parameters:
//   - radius: the distance in normalised volume units
//
// Returns:
//   - CameraControllerOption: functional option to set the radius
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the starting angle around the vertical axis.
//
// Parameters:
//   - azimuth: the angle in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the starting angle above the horizontal plane.
//
// Parameters:
//   - elevation: the angle in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the elevation
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the starting orbit centre.
//
// Parameters:
//   - x, y, z: the target in normalised volume space
//
// Returns:
//   - CameraControllerOption: functional option to set the target
func WithTarget(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds limits how close and how far the eye may zoom. Reversed bounds are swapped.
//
// Parameters:
//   - lo, hi: the radius bounds
//
// Returns:
//   - CameraControllerOption: functional option to set the radius bounds
func WithRadiusBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius, cc.maxRadius = min(lo, hi), max(lo, hi)
	}
}

// WithElevationBounds limits how far the eye may tilt. Both bounds are kept just short of
// straight up and straight down.
//
// Parameters:
//   - lo, hi: the elevation bounds in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the elevation bounds
func WithElevationBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		lo, hi = min(lo, hi), max(lo, hi)
		cc.minElevation = max(lo, -maxElevationBound)
		cc.maxElevation = min(hi, maxElevationBound)
	}
}

// WithOrbitSpeed sets the angle turned by one keyboard orbit step.
//
// Parameters:
//   - speed: radians per step
//
// Returns:
//   - CameraControllerOption: functional option to set the orbit speed
func WithOrbitSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithMouseSensitivity sets the angle turned per pixel of mouse drag.
//
// Parameters:
//   - sensitivity: radians per pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the mouse sensitivity
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the radius change per wheel step.
//
// Parameters:
//   - speed: normalised units per step
//
// Returns:
//   - CameraControllerOption: functional option to set the zoom speed
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the distance moved per pan step, one pixel of right-drag in the viewer.
//
// Parameters:
//   - speed: normalised units per step
//
// Returns:
//   - CameraControllerOption: functional option to set the pan speed
func WithPanSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.panSpeed = speed
	}
}
