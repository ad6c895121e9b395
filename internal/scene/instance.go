package scene

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrDestroyed is returned when mutating an instance after Destroy.
	ErrDestroyed = errors.New("instance is destroyed")

	// ErrCircularParent is returned when a reparent would create a cycle.
	ErrCircularParent = errors.New("circular parent")

	// ErrUnsupportedAttribute is returned for attribute values of an unknown type.
	ErrUnsupportedAttribute = errors.New("unsupported attribute type")
)

// Instance is a node in the scene graph.
//
// Instances are not safe for concurrent use. Mutate them from the goroutine
// that drives the scene (the UI update loop).
type Instance struct {
	ID    uuid.UUID
	Name  string
	class Class
	scene *Scene

	parent     *Instance
	children   []*Instance
	attributes map[string]any
	tags       []string
	destroyed  bool

	absoluteSize Vector2
	sizeScale    Vector2
	sizeOffset   Vector2
	scale        float64
	minTextSize  float64
	maxTextSize  float64
	text         string
	value        *Instance

	// AttributeChanged fires with the attribute name after SetAttribute changes a value.
	AttributeChanged *Signal[string]
	// AncestryChanged fires on an instance and all its descendants after a reparent;
	// the payload is the instance whose parent changed.
	AncestryChanged *Signal[*Instance]
	// DescendantAdded fires on every ancestor when an instance joins the subtree.
	DescendantAdded *Signal[*Instance]
	// DescendantRemoving fires on every ancestor before an instance leaves the subtree.
	DescendantRemoving *Signal[*Instance]
	// Changed fires with the property name after any property changes.
	Changed *Signal[string]

	propertySignals map[string]*Signal[struct{}]
}

func newInstance(s *Scene, class Class, name string) *Instance {
	inst := &Instance{
		ID:                 uuid.New(),
		Name:               name,
		class:              class,
		scene:              s,
		attributes:         make(map[string]any),
		AttributeChanged:   NewSignal[string](name + ".AttributeChanged"),
		AncestryChanged:    NewSignal[*Instance](name + ".AncestryChanged"),
		DescendantAdded:    NewSignal[*Instance](name + ".DescendantAdded"),
		DescendantRemoving: NewSignal[*Instance](name + ".DescendantRemoving"),
		Changed:            NewSignal[string](name + ".Changed"),
		propertySignals:    make(map[string]*Signal[struct{}]),
	}
	switch class {
	case ClassUIScale:
		inst.scale = 1
	case ClassTextSizeConstraint:
		inst.minTextSize = 1
		inst.maxTextSize = 100
	case ClassFrame, ClassTextLabel:
		inst.sizeScale = Vector2{X: 1, Y: 1}
	}
	return inst
}

// Class returns the concrete class.
func (i *Instance) Class() Class {
	return i.class
}

// IsA reports whether the instance has the given class capability.
func (i *Instance) IsA(class Class) bool {
	return i != nil && i.class.IsA(class)
}

// Scene returns the scene that created the instance.
func (i *Instance) Scene() *Scene {
	return i.scene
}

// Destroyed reports whether Destroy has been called.
func (i *Instance) Destroyed() bool {
	return i.destroyed
}

// FullName returns the dot-separated path from the top-most ancestor.
func (i *Instance) FullName() string {
	var parts []string
	for cur := i; cur != nil; cur = cur.parent {
		parts = append(parts, cur.Name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}

func (i *Instance) String() string {
	return i.FullName()
}

// --- Tree ---

// Parent returns the parent or nil.
func (i *Instance) Parent() *Instance {
	return i.parent
}

// Children returns a copy of the direct children.
func (i *Instance) Children() []*Instance {
	return slices.Clone(i.children)
}

// Descendants returns every instance below i in depth-first pre-order.
func (i *Instance) Descendants() []*Instance {
	var out []*Instance
	var walk func(*Instance)
	walk = func(n *Instance) {
		for _, c := range n.children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(i)
	return out
}

// FindFirstChild returns the first direct child with the given name.
func (i *Instance) FindFirstChild(name string) *Instance {
	for _, c := range i.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindFirstAncestorWhichIsA returns the nearest ancestor with the class capability.
func (i *Instance) FindFirstAncestorWhichIsA(class Class) *Instance {
	for cur := i.parent; cur != nil; cur = cur.parent {
		if cur.IsA(class) {
			return cur
		}
	}
	return nil
}

// IsDescendantOf reports whether ancestor is somewhere above i.
func (i *Instance) IsDescendantOf(ancestor *Instance) bool {
	if ancestor == nil {
		return false
	}
	for cur := i.parent; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// SetParent moves i under parent (nil detaches it).
func (i *Instance) SetParent(parent *Instance) error {
	if i.destroyed {
		return fmt.Errorf("set parent of %s: %w", i.Name, ErrDestroyed)
	}
	if parent == i.parent {
		return nil
	}
	if parent != nil {
		if parent.destroyed {
			return fmt.Errorf("set parent of %s to %s: %w", i.Name, parent.Name, ErrDestroyed)
		}
		if parent == i || parent.IsDescendantOf(i) {
			return fmt.Errorf("set parent of %s to %s: %w", i.Name, parent.Name, ErrCircularParent)
		}
	}

	moving := append([]*Instance{i}, i.Descendants()...)

	if old := i.parent; old != nil {
		for anc := old; anc != nil; anc = anc.parent {
			for _, m := range moving {
				anc.DescendantRemoving.Fire(m)
			}
		}
		if idx := slices.Index(old.children, i); idx >= 0 {
			old.children = slices.Delete(old.children, idx, idx+1)
		}
	}

	i.parent = parent
	if parent != nil {
		parent.children = append(parent.children, i)
		for anc := parent; anc != nil; anc = anc.parent {
			for _, m := range moving {
				anc.DescendantAdded.Fire(m)
			}
		}
	}

	for _, m := range moving {
		m.AncestryChanged.Fire(i)
	}
	i.propertyChanged(PropParent)
	i.layout()
	return nil
}

// Destroy removes the instance's tags, destroys its children, detaches it and
// disconnects everything listening to it. It cannot be reparented afterwards.
func (i *Instance) Destroy() {
	if i.destroyed {
		return
	}
	for _, c := range slices.Backward(slices.Clone(i.children)) {
		c.Destroy()
	}
	if i.scene != nil {
		i.scene.removeAllTags(i)
	}
	_ = i.SetParent(nil)
	i.destroyed = true

	i.AttributeChanged.DisconnectAll()
	i.AncestryChanged.DisconnectAll()
	i.DescendantAdded.DisconnectAll()
	i.DescendantRemoving.DisconnectAll()
	i.Changed.DisconnectAll()
	for _, sig := range i.propertySignals {
		sig.DisconnectAll()
	}
}

// --- Attributes ---

// Attribute returns the named attribute value.
func (i *Instance) Attribute(name string) (any, bool) {
	v, ok := i.attributes[name]
	return v, ok
}

// Attributes returns a copy of all attributes.
func (i *Instance) Attributes() map[string]any {
	return maps.Clone(i.attributes)
}

// SetAttribute stores value under name; a nil value removes the attribute.
// AttributeChanged fires only when the stored value actually changes.
func (i *Instance) SetAttribute(name string, value any) error {
	if i.destroyed {
		return fmt.Errorf("set attribute %s on %s: %w", name, i.Name, ErrDestroyed)
	}
	switch value.(type) {
	case nil, float64, int, bool, string, Vector2, NumberRange:
	default:
		return fmt.Errorf("set attribute %s on %s (%T): %w", name, i.Name, value, ErrUnsupportedAttribute)
	}

	old, had := i.attributes[name]
	if value == nil {
		if !had {
			return nil
		}
		delete(i.attributes, name)
	} else {
		if had && old == value {
			return nil
		}
		i.attributes[name] = value
	}
	i.AttributeChanged.Fire(name)
	return nil
}

// Tags returns the tags currently applied to the instance.
func (i *Instance) Tags() []string {
	return slices.Clone(i.tags)
}

// --- Properties ---

// PropertyChangedSignal returns the signal fired when the named property changes.
func (i *Instance) PropertyChangedSignal(name string) *Signal[struct{}] {
	sig, ok := i.propertySignals[name]
	if !ok {
		sig = NewSignal[struct{}](i.Name + "." + name + "Changed")
		i.propertySignals[name] = sig
	}
	return sig
}

func (i *Instance) propertyChanged(name string) {
	if sig, ok := i.propertySignals[name]; ok {
		sig.Fire(struct{}{})
	}
	i.Changed.Fire(name)
}

// AbsoluteSize returns the measured size in pixels.
func (i *Instance) AbsoluteSize() Vector2 {
	return i.absoluteSize
}

// SetAbsoluteSize sets the measured size directly. Hosts call this on
// top-level containers such as a Screen; GuiObjects derive theirs from SetSize.
func (i *Instance) SetAbsoluteSize(size Vector2) {
	if i.destroyed || size == i.absoluteSize {
		return
	}
	i.absoluteSize = size
	i.propertyChanged(PropAbsoluteSize)
	for _, c := range slices.Clone(i.children) {
		c.layout()
	}
}

// SizeScale returns the fraction of the parent's size the object occupies.
func (i *Instance) SizeScale() Vector2 {
	return i.sizeScale
}

// SizeOffset returns the fixed pixel offset added to the scaled size.
func (i *Instance) SizeOffset() Vector2 {
	return i.sizeOffset
}

// SetSize sets the relative layout of a GuiObject and recomputes its AbsoluteSize.
func (i *Instance) SetSize(scale, offset Vector2) {
	i.sizeScale = scale
	i.sizeOffset = offset
	i.layout()
}

// layout recomputes AbsoluteSize for GuiObjects from the parent container.
func (i *Instance) layout() {
	if !i.IsA(ClassGuiObject) {
		return
	}
	var parentSize Vector2
	if i.parent != nil && i.parent.IsA(ClassGuiBase) {
		parentSize = i.parent.absoluteSize
	}
	i.SetAbsoluteSize(parentSize.Mul(i.sizeScale).Add(i.sizeOffset))
}

// Scale returns the UIScale output.
func (i *Instance) Scale() float64 {
	return i.scale
}

// SetScale writes the UIScale output.
func (i *Instance) SetScale(v float64) {
	if i.destroyed || v == i.scale {
		return
	}
	i.scale = v
	i.propertyChanged(PropScale)
}

// MinTextSize returns the lower text size bound of a TextSizeConstraint.
func (i *Instance) MinTextSize() float64 {
	return i.minTextSize
}

// SetMinTextSize writes the lower text size bound.
func (i *Instance) SetMinTextSize(v float64) {
	if i.destroyed || v == i.minTextSize {
		return
	}
	i.minTextSize = v
	i.propertyChanged(PropMinTextSize)
}

// MaxTextSize returns the upper text size bound of a TextSizeConstraint.
func (i *Instance) MaxTextSize() float64 {
	return i.maxTextSize
}

// SetMaxTextSize writes the upper text size bound.
func (i *Instance) SetMaxTextSize(v float64) {
	if i.destroyed || v == i.maxTextSize {
		return
	}
	i.maxTextSize = v
	i.propertyChanged(PropMaxTextSize)
}

// Text returns the label text.
func (i *Instance) Text() string {
	return i.text
}

// SetText writes the label text.
func (i *Instance) SetText(s string) {
	if i.destroyed || s == i.text {
		return
	}
	i.text = s
	i.propertyChanged(PropText)
}

// Value returns the instance an ObjectValue points at.
func (i *Instance) Value() *Instance {
	return i.value
}

// SetValue points an ObjectValue at target (nil clears it).
func (i *Instance) SetValue(target *Instance) {
	if i.destroyed || target == i.value {
		return
	}
	i.value = target
	i.propertyChanged(PropValue)
}
