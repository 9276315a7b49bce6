package camera

// CameraController owns the viewpoint around a volume: a target in normalised volume space
// and a spherical orbit (radius, azimuth, elevation) around it. Camera reads the resulting
// position and target each frame. Orbit and planar controls act on the same state.
type CameraController interface {
	orbitCameraController
	planarCameraController

	// Position returns the eye position derived from the target and the orbit.
	//
	// Returns:
	//   - x, y, z: the eye position
	Position() (x, y, z float32)

	// Target returns the point the eye looks at and orbits around.
	//
	// Returns:
	//   - x, y, z: the target position
	Target() (x, y, z float32)

	// SetTarget moves the orbit centre. The orbit itself is unchanged, so the eye follows.
	//
	// Parameters:
	//   - x, y, z: the new target
	SetTarget(x, y, z float32)

	// Zoom moves the eye toward the target by delta*ZoomSpeed, within the radius bounds.
	//
	// Parameters:
	//   - delta: wheel steps, positive to zoom in
	Zoom(delta float32)

	// Reset restores the target and orbit state the controller was created with.
	Reset()
}

// orbitCameraController turns the eye around the target.
type orbitCameraController interface {
	// OrbitLeft and its siblings turn by one orbit speed step. Elevation stays within its bounds.
	OrbitLeft()
	OrbitRight()
	OrbitUp()
	OrbitDown()

	// Drag orbits by a mouse movement in pixels, scaled by the mouse sensitivity. Dragging
	// right swings the eye left around the target and dragging down raises it.
	//
	// Parameters:
	//   - dx, dy: cursor movement in pixels
	Drag(dx, dy float32)

	// Radius returns the eye's distance from the target.
	Radius() float32

	// SetRadius sets the distance from the target, clamped to the radius bounds.
	//
	// Parameters:
	//   - radius: the new distance
	SetRadius(radius float32)

	// Azimuth returns the angle around the vertical axis in radians, 0 looking down -Z.
	Azimuth() float32

	// SetAzimuth sets the angle around the vertical axis.
	//
	// Parameters:
	//   - azimuth: the angle in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the angle above the horizontal plane in radians.
	Elevation() float32

	// SetElevation sets the angle above the horizontal plane, clamped to the elevation bounds.
	//
	// Parameters:
	//   - elevation: the angle in radians
	SetElevation(elevation float32)
}

// planarCameraController slides the eye and target together without turning.
type planarCameraController interface {
	// PanRight moves along the view's right axis by delta*PanSpeed.
	//
	// Parameters:
	//   - delta: the distance in pan steps, negative to move left
	PanRight(delta float32)

	// PanUp moves along the view's up axis by delta*PanSpeed.
	//
	// Parameters:
	//   - delta: the distance in pan steps, negative to move down
	PanUp(delta float32)
}
