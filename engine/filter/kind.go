package filter

import "fmt"

// Kind identifies one filter variant.
type Kind int

const (
	KindThreshold Kind = iota
	KindClamp
	KindInvert
	KindContrast
	KindLog2
	KindSqrt
	KindFade
	KindShrink
	KindSlice
	KindToCartesian
	KindToPolar
)

var kindNames = [...]string{
	KindThreshold:   "threshold",
	KindClamp:       "clamp",
	KindInvert:      "invert",
	KindContrast:    "contrast",
	KindLog2:        "log2",
	KindSqrt:        "sqrt",
	KindFade:        "fade",
	KindShrink:      "shrink",
	KindSlice:       "slice",
	KindToCartesian: "to_cartesian",
	KindToPolar:     "to_polar",
}

// Kinds returns every filter kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind resolves the name used in configuration files, e.g. "to_cartesian".
//
// Parameters:
//   - name: the kind name
//
// Returns:
//   - Kind: the kind
//   - error: an error if no kind has that name
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown filter kind %q", name)
}
