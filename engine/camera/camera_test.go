package camera

import (
	"math"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestInverseViewOnAxis(t *testing.T) {
	ctrl := NewCameraController(WithRadius(4), WithAzimuth(0), WithElevation(0))
	cam := NewCamera(WithController(ctrl))

	want := [12]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 4,
	}
	got := cam.InverseView()
	for i := range want {
		if !near(got[i], want[i]) {
			t.Fatalf("InverseView() = %v, want %v", got, want)
		}
	}
}

func TestCameraWithoutControllerIsIdentity(t *testing.T) {
	got := NewCamera().InverseView()
	want := [12]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
	if got != want {
		t.Errorf("InverseView() = %v, want %v", got, want)
	}
}

func TestUpdateFollowsController(t *testing.T) {
	ctrl := NewCameraController(WithRadius(3), WithAzimuth(0), WithElevation(0))
	cam := NewCamera(WithController(ctrl))

	ctrl.SetAzimuth(float32(math.Pi / 2))
	cam.Update()
	inv := cam.InverseView()
	// Eye at (3, 0, 0).
	if !near(inv[3], 3) || !near(inv[7], 0) || !near(inv[11], 0) {
		t.Errorf("eye = (%v, %v, %v), want (3, 0, 0)", inv[3], inv[7], inv[11])
	}
}

func TestZoomClampsRadius(t *testing.T) {
	ctrl := NewCameraController(WithRadius(3), WithRadiusBounds(2, 5), WithZoomSpeed(1))
	ctrl.Zoom(10)
	if ctrl.Radius() != 2 {
		t.Errorf("zoom in: radius = %v, want 2", ctrl.Radius())
	}
	ctrl.Zoom(-10)
	if ctrl.Radius() != 5 {
		t.Errorf("zoom out: radius = %v, want 5", ctrl.Radius())
	}
}

func TestDragClampsElevation(t *testing.T) {
	ctrl := NewCameraController(WithElevation(0), WithElevationBounds(-1, 1), WithMouseSensitivity(0.1))
	ctrl.Drag(10, 0)
	if !near(ctrl.Azimuth(), -1) {
		t.Errorf("azimuth = %v, want -1", ctrl.Azimuth())
	}
	ctrl.Drag(0, 100)
	if ctrl.Elevation() != 1 {
		t.Errorf("elevation = %v, want 1", ctrl.Elevation())
	}
	ctrl.Drag(0, -100)
	if ctrl.Elevation() != -1 {
		t.Errorf("elevation = %v, want -1", ctrl.Elevation())
	}
}

func TestReset(t *testing.T) {
	ctrl := NewCameraController(WithRadius(3), WithAzimuth(0.2), WithElevation(0.1))
	x0, y0, z0 := ctrl.Position()

	ctrl.Drag(40, 20)
	ctrl.Zoom(2)
	ctrl.PanRight(50)
	ctrl.PanUp(50)

	ctrl.Reset()
	x, y, z := ctrl.Position()
	if !near(x, x0) || !near(y, y0) || !near(z, z0) {
		t.Errorf("position after Reset = (%v, %v, %v), want (%v, %v, %v)", x, y, z, x0, y0, z0)
	}
	if tx, ty, tz := ctrl.Target(); tx != 0 || ty != 0 || tz != 0 {
		t.Errorf("target after Reset = (%v, %v, %v)", tx, ty, tz)
	}
}

func TestPanMovesTargetAndEye(t *testing.T) {
	ctrl := NewCameraController(WithRadius(3), WithAzimuth(0), WithElevation(0), WithPanSpeed(1))
	ctrl.PanRight(0.5)
	tx, _, _ := ctrl.Target()
	px, _, pz := ctrl.Position()
	if !near(tx, 0.5) || !near(px, 0.5) || !near(pz, 3) {
		t.Errorf("after PanRight target x = %v, eye = (%v, _, %v)", tx, px, pz)
	}
}

func TestBoundsOptions(t *testing.T) {
	ctrl := NewCameraController(WithRadiusBounds(8, 2), WithRadius(20), WithElevationBounds(3, -3), WithElevation(3))
	if ctrl.Radius() != 8 {
		t.Errorf("radius = %v, want the swapped upper bound 8", ctrl.Radius())
	}
	if e := ctrl.Elevation(); e >= math.Pi/2 || e < 1.5 {
		t.Errorf("elevation = %v, want just short of pi/2", e)
	}
}
