package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87  // W key (ASCII), raise selected parameter
	KeyA     = 65  // A key (ASCII), previous parameter
	KeyS     = 83  // S key (ASCII), lower selected parameter
	KeyD     = 68  // D key (ASCII), next parameter
	KeyC     = 67  // C key (ASCII), reset camera
	KeyF     = 70  // F key (ASCII), arm frame recorder
	KeyL     = 76  // L key (ASCII), log option tree
	KeyP     = 80  // P key (ASCII), pause pipeline
	KeySpace = 32  // Spacebar (ASCII), rerun every stage
	KeyEsc   = 256 // Escape key (GLFW)
	KeyRight = 262 // Right arrow (GLFW)
	KeyLeft  = 263 // Left arrow (GLFW)
	KeyDown  = 264 // Down arrow (GLFW)
	KeyUp    = 265 // Up arrow (GLFW)
)

// Additional non-printable keys
const (
	KeyLeftShift  = 340 // Left Shift (GLFW)
	KeyRightShift = 344 // Right Shift (GLFW)
)
