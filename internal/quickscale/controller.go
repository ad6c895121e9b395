// Package quickscale keeps UIScale elements sized to their viewport.
//
// A Controller owns one managed UIScale: it computes the scale from the
// measured size of the element's Location, writes it, rescales every
// registered TextSizeConstraint, and re-arms a single one-shot listener for
// the next size change. Init wires Controllers to every tagged UIScale.
package quickscale

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/maid"
	"github.com/zjrosen/quickscale/internal/scene"
	"github.com/zjrosen/quickscale/internal/tracing"
)

const tracerName = "github.com/zjrosen/quickscale/internal/quickscale"

var (
	// ErrDestroyed is returned by operations on a destroyed Controller.
	ErrDestroyed = errors.New("controller is destroyed")

	// ErrNotConstraint is returned when a non-TextSizeConstraint is registered.
	ErrNotConstraint = errors.New("not a text size constraint")
)

// Option configures a Controller.
type Option func(*Controller)

// WithTracer sets the tracer used for update spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// Controller drives the scale of one managed element.
// States: idle (after New or UnTrack), active (after Track), destroyed.
type Controller struct {
	element     *scene.Instance
	maid        *maid.Maid
	tracking    bool
	destroyed   bool
	constraints map[*scene.Instance]struct{}

	// pending is the one-shot size listener armed by the last Update.
	pending *scene.Connection

	scale   float64
	updated *scene.Signal[float64]
	tracer  trace.Tracer
}

// New creates an idle Controller for element.
func New(element *scene.Instance, opts ...Option) *Controller {
	c := &Controller{
		element:     element,
		maid:        maid.New(),
		constraints: make(map[*scene.Instance]struct{}),
		scale:       element.Scale(),
		updated:     scene.NewSignal[float64](element.Name + ".Updated"),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Element returns the managed element, or nil once destroyed.
func (c *Controller) Element() *scene.Instance {
	return c.element
}

// Tracking reports whether the controller is active.
func (c *Controller) Tracking() bool {
	return c.tracking
}

// Destroyed reports whether Destroy has been called.
func (c *Controller) Destroyed() bool {
	return c.destroyed
}

// Scale returns the last computed scale.
func (c *Controller) Scale() float64 {
	return c.scale
}

// Updated fires with the new scale after every successful Update.
func (c *Controller) Updated() *scene.Signal[float64] {
	return c.updated
}

// ConstraintCount returns the number of registered text size constraints.
func (c *Controller) ConstraintCount() int {
	return len(c.constraints)
}

// HasPendingSizeListener reports whether a one-shot size listener is armed.
func (c *Controller) HasPendingSizeListener() bool {
	return c.pending.Connected()
}

// GetScaleParams resolves the current parameters for the managed element.
func (c *Controller) GetScaleParams() (ScaleParams, error) {
	if c.destroyed {
		return ScaleParams{}, ErrDestroyed
	}
	return ResolveParams(c.element)
}

// Update recomputes the scale, writes it to the element and every registered
// constraint, and, while tracking, re-arms the one-shot size listener.
func (c *Controller) Update() error {
	if c.destroyed {
		log.Warn(log.CatScale, "update on destroyed controller")
		return ErrDestroyed
	}

	_, span := c.tracer.Start(context.Background(), tracing.SpanUpdate,
		trace.WithAttributes(
			attribute.String(tracing.AttrElement, c.element.FullName()),
			attribute.Bool(tracing.AttrTracking, c.tracking),
		))
	defer span.End()

	params, err := c.GetScaleParams()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatScale, "update failed", err, "element", c.element.FullName())
		return err
	}

	measured := params.Location.AbsoluteSize()
	scale := CalculateScale(measured, params)

	c.scale = scale
	c.element.SetScale(scale)
	for constraint := range c.constraints {
		bounds := textSizeBounds(constraint)
		constraint.SetMinTextSize(bounds.Min * scale)
		constraint.SetMaxTextSize(bounds.Max * scale)
	}

	span.SetAttributes(
		attribute.Float64(tracing.AttrMeasuredW, measured.X),
		attribute.Float64(tracing.AttrMeasuredH, measured.Y),
		attribute.Float64(tracing.AttrScale, scale),
		attribute.Int(tracing.AttrConstraints, len(c.constraints)),
	)
	log.Debug(log.CatScale, "scale updated",
		"element", c.element.FullName(), "measured", measured, "scale", scale)

	if c.tracking {
		c.arm(params.Location)
	}
	c.updated.Fire(scale)
	return nil
}

// arm replaces any pending size listener with a fresh one-shot on location.
func (c *Controller) arm(location *scene.Instance) {
	c.pending.Disconnect()
	c.pending = location.PropertyChangedSignal(scene.PropAbsoluteSize).Once(func(struct{}) {
		c.pending = nil
		if !c.tracking || c.destroyed {
			return
		}
		_ = c.Update()
	})
}

func (c *Controller) disarm() {
	c.pending.Disconnect()
	c.pending = nil
}

// refresh is the handler for persistent inputs; Update logs its own errors.
func (c *Controller) refresh() {
	if !c.tracking || c.destroyed {
		return
	}
	_ = c.Update()
}

// Track starts reacting to the element's inputs. Calling Track while already
// active logs a warning and does nothing.
func (c *Controller) Track() error {
	if c.destroyed {
		log.Warn(log.CatScale, "track on destroyed controller")
		return ErrDestroyed
	}
	if c.tracking {
		log.Warn(log.CatScale, "controller is already tracking", "element", c.element.FullName())
		return nil
	}

	c.tracking = true
	// Registered first so the pending one-shot is always cancelled with the maid.
	_ = c.maid.Add(func() {
		c.disarm()
		c.tracking = false
	})

	_ = c.Update()

	_ = c.maid.Add(c.element.AttributeChanged.Connect(func(string) { c.refresh() }))
	_ = c.maid.Add(c.element.AncestryChanged.Connect(func(*scene.Instance) { c.refresh() }))
	if link := locationLink(c.element); link != nil {
		_ = c.maid.Add(link.PropertyChangedSignal(scene.PropValue).Connect(func(struct{}) { c.refresh() }))
	}

	log.Debug(log.CatScale, "tracking element", "element", c.element.FullName())
	return nil
}

// UnTrack cancels every subscription made by Track and Update. The
// controller returns to idle and may be tracked again.
func (c *Controller) UnTrack() {
	if err := c.maid.Destroy(); err != nil {
		log.ErrorErr(log.CatScale, "untrack cleanup failed", err)
	}
	c.maid = maid.New()
	c.tracking = false
}

// Destroy untracks and releases the element and constraints. The controller
// cannot be used afterwards.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.UnTrack()
	if c.element != nil {
		log.Debug(log.CatScale, "controller destroyed", "element", c.element.FullName())
	}
	c.destroyed = true
	c.element = nil
	clear(c.constraints)
	c.updated.DisconnectAll()
}

// AddTextSizeConstraint registers node and immediately updates so the node
// gets its initial sizes. A node without a TextSizeBounds attribute has one
// seeded from its current min/max text sizes.
func (c *Controller) AddTextSizeConstraint(node *scene.Instance) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if !node.IsA(scene.ClassTextSizeConstraint) {
		return fmt.Errorf("add %v: %w", node, ErrNotConstraint)
	}
	if _, ok := node.Attribute(AttrTextSizeBounds); !ok {
		seed := scene.NewNumberRange(node.MinTextSize(), node.MaxTextSize())
		if err := node.SetAttribute(AttrTextSizeBounds, seed); err != nil {
			return fmt.Errorf("seed text size bounds: %w", err)
		}
	}
	c.constraints[node] = struct{}{}
	return c.Update()
}

// RemoveTextSizeConstraint stops managing node. No recompute happens.
func (c *Controller) RemoveTextSizeConstraint(node *scene.Instance) {
	delete(c.constraints, node)
}

func textSizeBounds(node *scene.Instance) scene.NumberRange {
	if v, ok := node.Attribute(AttrTextSizeBounds); ok {
		if r, isRange := v.(scene.NumberRange); isRange {
			return r
		}
		log.Warn(log.CatScale, "ignoring mistyped attribute",
			"constraint", node.FullName(), "attribute", AttrTextSizeBounds, "type", fmt.Sprintf("%T", v))
	}
	return scene.NewNumberRange(node.MinTextSize(), node.MaxTextSize())
}
