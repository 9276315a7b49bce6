package filter

// FilterBuilderOption configures a Filter in New.
type FilterBuilderOption func(*Filter)

// WithParams sets the starting params. p must belong to the filter's kind.
//
// Parameters:
//   - p: the params, copied
//
// Returns:
//   - FilterBuilderOption: a function that applies the params
func WithParams(p Params) FilterBuilderOption {
	return func(f *Filter) {
		if p != nil {
			f.params = p.clone()
		}
	}
}
