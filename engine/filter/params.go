package filter

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/common"
)

// Params holds the tunable scalars of one filter kind. Every value is a control in [0, 1].
// The concrete types are the *XxxParams structs of this package.
type Params interface {
	// Kind returns the filter kind these params belong to.
	Kind() Kind

	fields() []field
	clone() Params
}

// field binds a control name to the struct member holding its value.
type field struct {
	name string
	ptr  *float32
}

// Field is a named control value.
type Field struct {
	Name  string
	Value float32
}

type ThresholdParams struct {
	// Cutoff is compared against samples scaled to [0, 255].
	Cutoff float32
}

// ClampParams crops each axis to [Lo, Hi) as fractions of its extent.
type ClampParams struct {
	DepthLo, DepthHi   float32
	LengthLo, LengthHi float32
	WidthLo, WidthHi   float32
}

type InvertParams struct{}

type ContrastParams struct {
	// Gain of 0.5 leaves samples unchanged.
	Gain float32
}

type Log2Params struct {
	Strength float32
}

type SqrtParams struct {
	Strength float32
}

// FadeParams darkens samples linearly with depth.
type FadeParams struct {
	Amount float32
}

// ShrinkParams blends point decimation (0) with box averaging (1).
type ShrinkParams struct {
	Smooth float32
}

// SliceParams picks one plane. Axis selects depth, length or width in equal thirds.
type SliceParams struct {
	Axis, Position float32
}

type ToCartesianParams struct{}

type ToPolarParams struct{}

func (p *ThresholdParams) Kind() Kind   { return KindThreshold }
func (p *ClampParams) Kind() Kind       { return KindClamp }
func (p *InvertParams) Kind() Kind      { return KindInvert }
func (p *ContrastParams) Kind() Kind    { return KindContrast }
func (p *Log2Params) Kind() Kind        { return KindLog2 }
func (p *SqrtParams) Kind() Kind        { return KindSqrt }
func (p *FadeParams) Kind() Kind        { return KindFade }
func (p *ShrinkParams) Kind() Kind      { return KindShrink }
func (p *SliceParams) Kind() Kind       { return KindSlice }
func (p *ToCartesianParams) Kind() Kind { return KindToCartesian }
func (p *ToPolarParams) Kind() Kind     { return KindToPolar }

func (p *ThresholdParams) fields() []field { return []field{{"cutoff", &p.Cutoff}} }
func (p *ClampParams) fields() []field {
	return []field{
		{"depth_lo", &p.DepthLo}, {"depth_hi", &p.DepthHi},
		{"length_lo", &p.LengthLo}, {"length_hi", &p.LengthHi},
		{"width_lo", &p.WidthLo}, {"width_hi", &p.WidthHi},
	}
}
func (p *InvertParams) fields() []field      { return nil }
func (p *ContrastParams) fields() []field    { return []field{{"gain", &p.Gain}} }
func (p *Log2Params) fields() []field        { return []field{{"strength", &p.Strength}} }
func (p *SqrtParams) fields() []field        { return []field{{"strength", &p.Strength}} }
func (p *FadeParams) fields() []field        { return []field{{"amount", &p.Amount}} }
func (p *ShrinkParams) fields() []field      { return []field{{"smooth", &p.Smooth}} }
func (p *SliceParams) fields() []field       { return []field{{"axis", &p.Axis}, {"position", &p.Position}} }
func (p *ToCartesianParams) fields() []field { return nil }
func (p *ToPolarParams) fields() []field     { return nil }

func (p *ThresholdParams) clone() Params   { c := *p; return &c }
func (p *ClampParams) clone() Params       { c := *p; return &c }
func (p *InvertParams) clone() Params      { return &InvertParams{} }
func (p *ContrastParams) clone() Params    { c := *p; return &c }
func (p *Log2Params) clone() Params        { c := *p; return &c }
func (p *SqrtParams) clone() Params        { c := *p; return &c }
func (p *FadeParams) clone() Params        { c := *p; return &c }
func (p *ShrinkParams) clone() Params      { c := *p; return &c }
func (p *SliceParams) clone() Params       { c := *p; return &c }
func (p *ToCartesianParams) clone() Params { return &ToCartesianParams{} }
func (p *ToPolarParams) clone() Params     { return &ToPolarParams{} }

// DefaultParams returns the starting params of a kind. Value remaps start at half strength
// and Clamp keeps the whole volume.
//
// Parameters:
//   - kind: the filter kind
//
// Returns:
//   - Params: a fresh params value
func DefaultParams(kind Kind) Params {
	switch kind {
	case KindThreshold:
		return &ThresholdParams{Cutoff: 0.5}
	case KindClamp:
		return &ClampParams{DepthHi: 1, LengthHi: 1, WidthHi: 1}
	case KindInvert:
		return &InvertParams{}
	case KindContrast:
		return &ContrastParams{Gain: 0.5}
	case KindLog2:
		return &Log2Params{Strength: 0.5}
	case KindSqrt:
		return &SqrtParams{Strength: 0.5}
	case KindFade:
		return &FadeParams{Amount: 0.5}
	case KindShrink:
		return &ShrinkParams{Smooth: 0.5}
	case KindSlice:
		return &SliceParams{Position: 0.5}
	case KindToCartesian:
		return &ToCartesianParams{}
	case KindToPolar:
		return &ToPolarParams{}
	default:
		return nil
	}
}

// NewParams builds the params of a kind from named values, starting from the defaults.
// Values are clamped to [0, 1].
//
// Parameters:
//   - kind: the filter kind
//   - values: control values by name
//
// Returns:
//   - Params: the params
//   - error: an error for an unknown kind or control name
func NewParams(kind Kind, values map[string]float32) (Params, error) {
	p := DefaultParams(kind)
	if p == nil {
		return nil, fmt.Errorf("unknown filter kind %v", kind)
	}
	for name, v := range values {
		if err := setField(p, name, v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Fields lists the named controls of p in declaration order.
func Fields(p Params) []Field {
	fs := p.fields()
	out := make([]Field, len(fs))
	for i, f := range fs {
		out[i] = Field{Name: f.name, Value: *f.ptr}
	}
	return out
}

func setField(p Params, name string, value float32) error {
	for _, f := range p.fields() {
		if f.name == name {
			*f.ptr = common.Clamp01(value)
			return nil
		}
	}
	return fmt.Errorf("%v has no control %q", p.Kind(), name)
}
