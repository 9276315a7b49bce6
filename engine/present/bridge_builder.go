package present

// BridgeBuilderOption is a functional option for configuring a Bridge.
type BridgeBuilderOption func(*bridge)

// WithRecorder attaches a recorder that captures frames while armed.
//
// Parameters:
//   - r: the recorder
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithRecorder(r Recorder) BridgeBuilderOption {
	return func(b *bridge) {
		b.recorder = r
	}
}
