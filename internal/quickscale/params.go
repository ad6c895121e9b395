package quickscale

import (
	"errors"
	"fmt"
	"math"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/scene"
)

// Attribute and child names read from a managed UIScale.
const (
	AttrReferenceSize  = "ReferenceSize"
	AttrScaleBounds    = "ScaleBounds"
	AttrFactor         = "Factor"
	AttrTextSizeBounds = "TextSizeBounds"
	LocationName       = "Location"
)

var (
	// DefaultReferenceSize is the resolution at which the scale is exactly 1.
	DefaultReferenceSize = scene.Vector2{X: 1280, Y: 720}

	// DefaultScaleBounds leaves the scale unbounded above.
	DefaultScaleBounds = scene.NumberRange{Min: 0, Max: math.Inf(1)}
)

// DefaultFactor is the manual multiplier applied after clamping.
const DefaultFactor = 1.0

// ErrNoLocation is returned when no instance can be measured for an element.
var ErrNoLocation = errors.New("no location to measure")

// ScaleParams are the inputs to CalculateScale, resolved from attributes.
type ScaleParams struct {
	ReferenceSize scene.Vector2
	ScaleBounds   scene.NumberRange
	Factor        float64
	Location      *scene.Instance
}

// DefaultParams returns the defaults with no Location.
func DefaultParams() ScaleParams {
	return ScaleParams{
		ReferenceSize: DefaultReferenceSize,
		ScaleBounds:   DefaultScaleBounds,
		Factor:        DefaultFactor,
	}
}

// ResolveParams reads the scale parameters from a managed element.
// Unset or mistyped attributes fall back to their defaults.
func ResolveParams(element *scene.Instance) (ScaleParams, error) {
	params := DefaultParams()

	if v, ok := element.Attribute(AttrReferenceSize); ok {
		ref, isVec := v.(scene.Vector2)
		switch {
		case !isVec:
			log.Warn(log.CatScale, "ignoring mistyped attribute",
				"element", element.FullName(), "attribute", AttrReferenceSize, "type", fmt.Sprintf("%T", v))
		case !(ref.X > 0) || !(ref.Y > 0):
			log.Warn(log.CatScale, "degenerate reference size, using default",
				"element", element.FullName(), "reference", ref, "default", DefaultReferenceSize)
		default:
			params.ReferenceSize = ref
		}
	}

	if v, ok := element.Attribute(AttrScaleBounds); ok {
		if bounds, isRange := v.(scene.NumberRange); isRange {
			params.ScaleBounds = scene.NewNumberRange(bounds.Min, bounds.Max)
		} else {
			log.Warn(log.CatScale, "ignoring mistyped attribute",
				"element", element.FullName(), "attribute", AttrScaleBounds, "type", fmt.Sprintf("%T", v))
		}
	}

	if v, ok := element.Attribute(AttrFactor); ok {
		if factor, isNum := toFloat(v); isNum {
			params.Factor = factor
		} else {
			log.Warn(log.CatScale, "ignoring mistyped attribute",
				"element", element.FullName(), "attribute", AttrFactor, "type", fmt.Sprintf("%T", v))
		}
	}

	params.Location = ResolveLocation(element)
	if params.Location == nil {
		return params, fmt.Errorf("resolve params for %s: %w", element.FullName(), ErrNoLocation)
	}
	return params, nil
}

// ResolveLocation returns the instance whose size drives element's scale:
// the Location link target, else the nearest Screen ancestor, else the parent.
func ResolveLocation(element *scene.Instance) *scene.Instance {
	if link := locationLink(element); link != nil && link.Value() != nil {
		return link.Value()
	}
	if screen := element.FindFirstAncestorWhichIsA(scene.ClassScreen); screen != nil {
		return screen
	}
	return element.Parent()
}

func locationLink(element *scene.Instance) *scene.Instance {
	link := element.FindFirstChild(LocationName)
	if link == nil || !link.IsA(scene.ClassObjectValue) {
		return nil
	}
	return link
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

var unitRange = scene.NumberRange{Min: 0, Max: 1}

// CalculateScale computes the scale for a measured size.
//
// The shorter measured axis is compared against the reference height, and
// the width/height ratio comparison keeps a wider-than-reference viewport from
// scaling past what the shorter axis allows. The result is clamped to
// ScaleBounds and then multiplied by Factor.
//
// A non-positive reference dimension falls back to DefaultReferenceSize; a
// non-positive measured axis yields the clamped zero scale.
func CalculateScale(measured scene.Vector2, params ScaleParams) float64 {
	ref := params.ReferenceSize
	if !(ref.X > 0) || !(ref.Y > 0) {
		ref = DefaultReferenceSize
	}

	axis := math.Min(measured.X, measured.Y)
	if !(axis > 0) {
		return params.ScaleBounds.Clamp(0) * params.Factor
	}

	xRatio := measured.X / ref.X
	yRatio := axis / ref.Y
	ratioOfRatios := unitRange.Clamp(xRatio / yRatio)
	reference := (1 / ref.Y) * ratioOfRatios

	return params.ScaleBounds.Clamp(reference*axis) * params.Factor
}
