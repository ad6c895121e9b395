package quickscale

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/scene"
)

// fixture is Game > Screen > Panel > UIScale > Location.
type fixture struct {
	scene   *scene.Scene
	screen  *scene.Instance
	panel   *scene.Instance
	element *scene.Instance
	link    *scene.Instance
}

func newFixture(t interface{ Helper() }) *fixture {
	t.Helper()
	s := scene.New()
	screen := s.Create(scene.ClassScreen, "Screen", s.Root())
	screen.SetAbsoluteSize(scene.NewVector2(1280, 720))
	panel := s.Create(scene.ClassFrame, "Panel", screen)
	element := s.Create(scene.ClassUIScale, "UIScale", panel)
	link := s.Create(scene.ClassObjectValue, LocationName, element)
	return &fixture{scene: s, screen: screen, panel: panel, element: element, link: link}
}

func (f *fixture) resize(w, h float64) {
	f.screen.SetAbsoluteSize(scene.NewVector2(w, h))
}

func (f *fixture) sizeListeners() int {
	return f.screen.PropertyChangedSignal(scene.PropAbsoluteSize).Len()
}

func (f *fixture) constraint(name string) *scene.Instance {
	label := f.scene.Create(scene.ClassTextLabel, name, f.panel)
	return f.scene.Create(scene.ClassTextSizeConstraint, "TextSizeConstraint", label)
}

func countUpdates(c *Controller) *int {
	n := 0
	c.Updated().Connect(func(float64) { n++ })
	return &n
}

func TestController_NewIsIdle(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)

	require.False(t, c.Tracking())
	require.False(t, c.Destroyed())
	require.False(t, c.HasPendingSizeListener())
	require.Same(t, f.element, c.Element())
	require.Zero(t, f.sizeListeners())
}

func TestController_UpdateWritesScaleWithoutTracking(t *testing.T) {
	f := newFixture(t)
	f.resize(640, 360)
	c := New(f.element)

	require.NoError(t, c.Update())
	require.InDelta(t, 0.5, f.element.Scale(), 1e-9)
	require.InDelta(t, 0.5, c.Scale(), 1e-9)
	require.False(t, c.HasPendingSizeListener(), "idle update does not arm")
}

func TestController_TrackFollowsSizeChanges(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	updates := countUpdates(c)

	require.NoError(t, c.Track())
	require.Equal(t, 1, *updates)
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9)

	f.resize(640, 360)
	require.Equal(t, 2, *updates)
	require.InDelta(t, 0.5, f.element.Scale(), 1e-9)

	f.resize(2560, 720)
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9)
}

func TestController_TrackTwiceWarnsAndDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	log.InitWriter(&buf)
	t.Cleanup(log.Reset)

	f := newFixture(t)
	c := New(f.element)
	updates := countUpdates(c)

	require.NoError(t, c.Track())
	require.NoError(t, c.Track())
	require.Equal(t, 1, *updates)
	require.Contains(t, buf.String(), "already tracking")

	f.resize(1000, 500)
	require.Equal(t, 2, *updates, "exactly one update per size change")
	require.Equal(t, 1, f.sizeListeners())
}

func TestController_OnePendingListenerAcrossManyChanges(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	updates := countUpdates(c)
	require.NoError(t, c.Track())

	const changes = 25
	for i := range changes {
		f.resize(float64(800+i*10), float64(400+i*5))
		require.Equal(t, 1, f.sizeListeners(), "change %d", i)
		require.True(t, c.HasPendingSizeListener())
	}
	require.Equal(t, changes+1, *updates)
}

func TestController_UnTrackStopsWrites(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	updates := countUpdates(c)
	require.NoError(t, c.Track())

	c.UnTrack()
	require.False(t, c.Tracking())
	require.False(t, c.HasPendingSizeListener())
	require.Zero(t, f.sizeListeners())

	f.resize(640, 360)
	require.NoError(t, f.element.SetAttribute(AttrFactor, 3))
	require.Equal(t, 1, *updates)
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9)

	require.NoError(t, c.Track(), "idle controllers can be tracked again")
	require.InDelta(t, 1.5, f.element.Scale(), 1e-9)
}

func TestController_UnTrackWhenIdleIsHarmless(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	require.NotPanics(t, c.UnTrack)
	require.False(t, c.Tracking())
}

func TestController_DestroyIsTerminal(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	require.NoError(t, c.Track())
	tsc := f.constraint("Title")
	require.NoError(t, c.AddTextSizeConstraint(tsc))

	c.Destroy()
	c.Destroy()

	require.True(t, c.Destroyed())
	require.Nil(t, c.Element())
	require.Zero(t, c.ConstraintCount())
	require.Zero(t, f.sizeListeners())
	require.ErrorIs(t, c.Track(), ErrDestroyed)
	require.ErrorIs(t, c.Update(), ErrDestroyed)
	require.ErrorIs(t, c.AddTextSizeConstraint(tsc), ErrDestroyed)
	_, err := c.GetScaleParams()
	require.ErrorIs(t, err, ErrDestroyed)

	f.resize(640, 360)
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9)
}

func TestController_AttributeChangeRecomputes(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	require.NoError(t, c.Track())

	require.NoError(t, f.element.SetAttribute(AttrFactor, 2.0))
	require.InDelta(t, 2.0, f.element.Scale(), 1e-9)

	require.NoError(t, f.element.SetAttribute(AttrScaleBounds, scene.NewNumberRange(0, 0.75)))
	require.InDelta(t, 1.5, f.element.Scale(), 1e-9)

	require.NoError(t, f.element.SetAttribute(AttrReferenceSize, scene.NewVector2(640, 360)))
	require.InDelta(t, 1.5, f.element.Scale(), 1e-9, "still capped by bounds")
	require.Equal(t, 1, f.sizeListeners())
}

func TestController_LocationLinkChangeMovesListener(t *testing.T) {
	f := newFixture(t)
	half := f.scene.Create(scene.ClassFrame, "Half", f.screen)
	half.SetSize(scene.NewVector2(0.5, 0.5), scene.Vector2{})

	c := New(f.element)
	require.NoError(t, c.Track())
	require.Equal(t, 1, f.sizeListeners())

	f.link.SetValue(half)
	require.InDelta(t, 0.5, f.element.Scale(), 1e-9)
	require.Zero(t, f.sizeListeners())
	require.Equal(t, 1, half.PropertyChangedSignal(scene.PropAbsoluteSize).Len())

	f.resize(2560, 1440)
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9, "follows the linked frame")
}

func TestController_ReparentRecomputes(t *testing.T) {
	f := newFixture(t)
	small := f.scene.Create(scene.ClassScreen, "Small", f.scene.Root())
	small.SetAbsoluteSize(scene.NewVector2(320, 180))

	c := New(f.element)
	require.NoError(t, c.Track())
	require.InDelta(t, 1.0, f.element.Scale(), 1e-9)

	require.NoError(t, f.panel.SetParent(small))
	require.InDelta(t, 0.25, f.element.Scale(), 1e-9)
	require.Zero(t, f.sizeListeners())
	require.Equal(t, 1, small.PropertyChangedSignal(scene.PropAbsoluteSize).Len())
}

func TestController_AddTextSizeConstraintAppliesImmediately(t *testing.T) {
	f := newFixture(t)
	f.resize(640, 360)
	c := New(f.element)
	require.NoError(t, c.Track())

	tsc := f.constraint("Title")
	require.NoError(t, tsc.SetAttribute(AttrTextSizeBounds, scene.NewNumberRange(12, 40)))
	require.NoError(t, c.AddTextSizeConstraint(tsc))

	require.Equal(t, 1, c.ConstraintCount())
	require.InDelta(t, 6.0, tsc.MinTextSize(), 1e-9)
	require.InDelta(t, 20.0, tsc.MaxTextSize(), 1e-9)

	f.resize(1280, 720)
	require.InDelta(t, 12.0, tsc.MinTextSize(), 1e-9)
	require.InDelta(t, 40.0, tsc.MaxTextSize(), 1e-9)
}

func TestController_AddTextSizeConstraintSeedsBounds(t *testing.T) {
	f := newFixture(t)
	f.resize(640, 360)
	c := New(f.element)

	tsc := f.constraint("Body")
	tsc.SetMinTextSize(10)
	tsc.SetMaxTextSize(30)
	require.NoError(t, c.AddTextSizeConstraint(tsc))

	v, ok := tsc.Attribute(AttrTextSizeBounds)
	require.True(t, ok)
	require.Equal(t, scene.NewNumberRange(10, 30), v)
	require.InDelta(t, 5.0, tsc.MinTextSize(), 1e-9)
	require.InDelta(t, 15.0, tsc.MaxTextSize(), 1e-9)

	require.NoError(t, c.Update())
	require.InDelta(t, 5.0, tsc.MinTextSize(), 1e-9, "repeated updates do not compound")
}

func TestController_AddTextSizeConstraintRejectsOtherClasses(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	err := c.AddTextSizeConstraint(f.panel)
	require.ErrorIs(t, err, ErrNotConstraint)
	require.Zero(t, c.ConstraintCount())
}

func TestController_RemoveTextSizeConstraintDoesNotRecompute(t *testing.T) {
	f := newFixture(t)
	c := New(f.element)
	require.NoError(t, c.Track())
	tsc := f.constraint("Title")
	require.NoError(t, c.AddTextSizeConstraint(tsc))
	updates := countUpdates(c)

	c.RemoveTextSizeConstraint(tsc)
	c.RemoveTextSizeConstraint(tsc)
	require.Zero(t, *updates)
	require.Zero(t, c.ConstraintCount())

	f.resize(640, 360)
	require.InDelta(t, 100.0, tsc.MaxTextSize(), 1e-9, "no longer managed")
}

func TestController_UpdateWithoutLocationFails(t *testing.T) {
	s := scene.New()
	detached := s.NewInstance(scene.ClassUIScale, "Detached")
	c := New(detached)

	require.ErrorIs(t, c.Update(), ErrNoLocation)
	require.Equal(t, 1.0, detached.Scale())
}

func TestController_UpdateRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	f := newFixture(t)
	f.resize(640, 360)
	c := New(f.element, WithTracer(tp.Tracer("test")))
	require.NoError(t, c.Update())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "quickscale.update", spans[0].Name())

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	require.Equal(t, "Game.Screen.Panel.UIScale", attrs["element"].AsString())
	require.InDelta(t, 0.5, attrs["scale"].AsFloat64(), 1e-9)
}

// === Property-Based Tests ===

func TestProperty_TrackedScaleMatchesFormula(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		factor := rapid.Float64Range(0.1, 4).Draw(t, "factor")
		_ = f.element.SetAttribute(AttrFactor, factor)

		c := New(f.element)
		_ = c.Track()

		changes := rapid.IntRange(1, 20).Draw(t, "changes")
		for range changes {
			w := rapid.Float64Range(1, 5000).Draw(t, "w")
			h := rapid.Float64Range(1, 5000).Draw(t, "h")
			f.resize(w, h)

			params, err := c.GetScaleParams()
			if err != nil {
				t.Fatalf("params: %v", err)
			}
			want := CalculateScale(f.screen.AbsoluteSize(), params)
			if f.element.Scale() != want {
				t.Fatalf("scale %v, want %v", f.element.Scale(), want)
			}
			if f.sizeListeners() != 1 {
				t.Fatalf("%d size listeners armed", f.sizeListeners())
			}
		}
	})
}
