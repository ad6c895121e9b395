package tracing

// Span names and attribute keys recorded by quickscale.
const (
	SpanUpdate = "quickscale.update"

	AttrElement     = "element"
	AttrTracking    = "tracking"
	AttrMeasuredW   = "measured.width"
	AttrMeasuredH   = "measured.height"
	AttrScale       = "scale"
	AttrConstraints = "constraints"
)
