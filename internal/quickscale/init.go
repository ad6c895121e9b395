package quickscale

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/maid"
	"github.com/zjrosen/quickscale/internal/scene"
	"github.com/zjrosen/quickscale/internal/tagobserver"
)

// DefaultTag marks UIScale elements that Init manages.
const DefaultTag = "QuickScaleElement"

type initConfig struct {
	tag      string
	excluded *scene.Instance
	allowed  *scene.Instance
	tracer   trace.Tracer
}

// InitOption configures Init.
type InitOption func(*initConfig)

// WithTag overrides DefaultTag. An empty tag keeps the default.
func WithTag(tag string) InitOption {
	return func(c *initConfig) {
		if tag != "" {
			c.tag = tag
		}
	}
}

// WithExcludedRoot ignores tagged elements under root, such as a template
// area that is never shown.
func WithExcludedRoot(root *scene.Instance) InitOption {
	return func(c *initConfig) {
		c.excluded = root
	}
}

// WithAllowedRoot redirects Location links that point outside root to the
// element's own Screen.
func WithAllowedRoot(root *scene.Instance) InitOption {
	return func(c *initConfig) {
		c.allowed = root
	}
}

// WithInitTracer sets the tracer handed to every Controller.
func WithInitTracer(tracer trace.Tracer) InitOption {
	return func(c *initConfig) {
		c.tracer = tracer
	}
}

// Init manages every tagged UIScale in host. Destroying the returned maid
// stops all scaling for the tag.
func Init(host tagobserver.Host, opts ...InitOption) *maid.Maid {
	return Bind(host, opts...).Maid()
}

// Bind is Init returning the underlying observer.
func Bind(host tagobserver.Host, opts ...InitOption) *tagobserver.Observer {
	cfg := initConfig{tag: DefaultTag}
	for _, opt := range opts {
		opt(&cfg)
	}

	log.Info(log.CatScale, "binding quickscale", "tag", cfg.tag)
	return tagobserver.Start(host, cfg.tag,
		func(inst *scene.Instance, m *maid.Maid) { setupElement(cfg, inst, m) },
		tagobserver.WithPredicate(func(inst *scene.Instance) bool { return accept(cfg, inst) }),
	)
}

func accept(cfg initConfig, inst *scene.Instance) bool {
	if !inst.IsA(scene.ClassUIScale) {
		log.Warn(log.CatScale, "tagged instance is not a UIScale",
			"tag", cfg.tag, "instance", inst.FullName(), "class", inst.Class())
		return false
	}
	if cfg.excluded != nil && inst.IsDescendantOf(cfg.excluded) {
		log.Debug(log.CatScale, "skipping element in excluded root",
			"instance", inst.FullName(), "root", cfg.excluded.FullName())
		return false
	}
	return true
}

func setupElement(cfg initConfig, element *scene.Instance, m *maid.Maid) {
	link := element.FindFirstChild(LocationName)
	if link == nil {
		log.Warn(log.CatScale, "element has no Location link", "element", element.FullName())
		return
	}
	if !link.IsA(scene.ClassObjectValue) {
		log.Warn(log.CatScale, "Location is not an ObjectValue",
			"element", element.FullName(), "class", link.Class())
		return
	}

	ctrl := New(element, WithTracer(cfg.tracer))
	_ = m.Add(ctrl)
	_ = ctrl.Track()

	if cfg.allowed != nil && !within(link.Value(), cfg.allowed) {
		if screen := element.FindFirstAncestorWhichIsA(scene.ClassScreen); within(screen, cfg.allowed) {
			log.Debug(log.CatScale, "redirecting Location into allowed root",
				"element", element.FullName(), "from", link.Value(), "to", screen.FullName())
			link.SetValue(screen)
		}
	}

	panel := element.Parent()
	if panel == nil {
		return
	}
	for _, d := range panel.Descendants() {
		if d.IsA(scene.ClassTextSizeConstraint) {
			_ = ctrl.AddTextSizeConstraint(d)
		}
	}
	_ = m.Add(panel.DescendantAdded.Connect(func(d *scene.Instance) {
		if d.IsA(scene.ClassTextSizeConstraint) {
			_ = ctrl.AddTextSizeConstraint(d)
		}
	}))
	_ = m.Add(panel.DescendantRemoving.Connect(func(d *scene.Instance) {
		if d.IsA(scene.ClassTextSizeConstraint) {
			ctrl.RemoveTextSizeConstraint(d)
		}
	}))
}

func within(inst, root *scene.Instance) bool {
	return inst != nil && (inst == root || inst.IsDescendantOf(root))
}
