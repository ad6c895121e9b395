package scene

import (
	"fmt"
	"math"
)

// Vector2 is a 2D size or position in pixels.
type Vector2 struct {
	X float64
	Y float64
}

// NewVector2 creates a Vector2.
func NewVector2(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// Add returns v + o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Mul returns the component-wise product of v and o.
func (v Vector2) Mul(o Vector2) Vector2 {
	return Vector2{X: v.X * o.X, Y: v.Y * o.Y}
}

func (v Vector2) String() string {
	return fmt.Sprintf("%gx%g", v.X, v.Y)
}

// NumberRange is an inclusive [Min, Max] interval.
type NumberRange struct {
	Min float64
	Max float64
}

// NewNumberRange creates a range from two bounds in either order.
func NewNumberRange(a, b float64) NumberRange {
	if b < a {
		a, b = b, a
	}
	return NumberRange{Min: a, Max: b}
}

// Clamp limits v to the range. NaN clamps to Min.
func (r NumberRange) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r NumberRange) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Class identifies what an Instance is. Abstract classes only appear on the
// right-hand side of IsA.
type Class string

const (
	// Abstract
	ClassGuiBase   Class = "GuiBase"   // anything with an AbsoluteSize
	ClassGuiObject Class = "GuiObject" // laid out relative to its parent

	ClassScreen             Class = "Screen"
	ClassFrame              Class = "Frame"
	ClassTextLabel          Class = "TextLabel"
	ClassUIScale            Class = "UIScale"
	ClassTextSizeConstraint Class = "TextSizeConstraint"
	ClassObjectValue        Class = "ObjectValue"
	ClassFolder             Class = "Folder"
)

var superclasses = map[Class][]Class{
	ClassScreen:    {ClassGuiBase},
	ClassFrame:     {ClassGuiObject, ClassGuiBase},
	ClassTextLabel: {ClassGuiObject, ClassGuiBase},
}

// IsA reports whether c is other or derives from it.
func (c Class) IsA(other Class) bool {
	if c == other {
		return true
	}
	for _, super := range superclasses[c] {
		if super == other {
			return true
		}
	}
	return false
}

// Property names accepted by Instance.PropertyChangedSignal.
const (
	PropParent       = "Parent"
	PropAbsoluteSize = "AbsoluteSize"
	PropScale        = "Scale"
	PropMinTextSize  = "MinTextSize"
	PropMaxTextSize  = "MaxTextSize"
	PropText         = "Text"
	PropValue        = "Value"
)
