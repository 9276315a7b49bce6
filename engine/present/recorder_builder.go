package present

// RecorderBuilderOption is a functional option for configuring a Recorder.
type RecorderBuilderOption func(*recorder)

// WithScale scales exported frames by factor, keeping the aspect ratio. Values <= 0 or 1
// export at the captured size.
//
// Parameters:
//   - factor: the export scale
//
// Returns:
//   - RecorderBuilderOption: option function to apply
func WithScale(factor float64) RecorderBuilderOption {
	return func(r *recorder) {
		r.scale = factor
	}
}

// WithWorkers sets the number of parallel TIFF encoders.
//
// Parameters:
//   - n: the encoder count, values below 1 are treated as 1
//
// Returns:
//   - RecorderBuilderOption: option function to apply
func WithWorkers(n int) RecorderBuilderOption {
	return func(r *recorder) {
		r.workers = max(n, 1)
	}
}
