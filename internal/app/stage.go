package app

import (
	"fmt"
	"math"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/quickscale/internal/config"
	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/quickscale"
	"github.com/zjrosen/quickscale/internal/scene"
	"github.com/zjrosen/quickscale/internal/tagobserver"
)

// Stage is the scene shown by the demo: one Screen sized to the terminal and
// one Frame per configured panel, each carrying a tagged UIScale.
type Stage struct {
	cfg      config.Config
	scene    *scene.Scene
	screen   *scene.Instance
	panels   []*Panel
	observer *tagobserver.Observer
}

// Panel is the scene subtree built for one configured panel.
type Panel struct {
	Config      config.PanelConfig
	Frame       *scene.Instance
	UIScale     *scene.Instance
	Link        *scene.Instance
	Labels      []*scene.Instance
	Constraints []*scene.Instance
}

// NewStage builds the scene for cfg and binds quickscale to it. Panels are
// tagged before binding, so they are picked up on the first Flush.
func NewStage(cfg config.Config, tracer trace.Tracer) *Stage {
	s := scene.New()
	st := &Stage{
		cfg:    cfg,
		scene:  s,
		screen: s.Create(scene.ClassScreen, "Screen", s.Root()),
	}

	for _, pc := range cfg.GetPanels() {
		st.panels = append(st.panels, st.buildPanel(pc))
	}

	st.observer = quickscale.Bind(s,
		quickscale.WithTag(cfg.Tag),
		quickscale.WithAllowedRoot(st.screen),
		quickscale.WithInitTracer(tracer),
	)
	s.Flush()

	log.Info(log.CatUI, "stage built", "panels", len(st.panels), "tag", cfg.Tag)
	return st
}

func (st *Stage) buildPanel(pc config.PanelConfig) *Panel {
	s := st.scene
	ref := st.cfg.Scale.ReferenceSize()

	frame := s.Create(scene.ClassFrame, pc.Name, st.screen)
	// Offset-only size: the frame is authored at the reference resolution
	// and the UIScale stretches it.
	frame.SetSize(scene.Vector2{}, ref.Mul(scene.NewVector2(pc.Width, pc.Height)))

	ui := s.Create(scene.ClassUIScale, "UIScale", frame)
	for name, value := range st.cfg.Attributes(pc) {
		if err := ui.SetAttribute(name, value); err != nil {
			log.ErrorErr(log.CatUI, "applying panel attribute", err, "panel", pc.Name, "attribute", name)
		}
	}
	link := s.Create(scene.ClassObjectValue, quickscale.LocationName, ui)
	link.SetValue(st.screen)

	p := &Panel{Config: pc, Frame: frame, UIScale: ui, Link: link}
	for i, line := range pc.Lines {
		label := s.Create(scene.ClassTextLabel, fmt.Sprintf("Line%d", i+1), frame)
		label.SetText(line)
		tsc := s.NewInstance(scene.ClassTextSizeConstraint, "TextSizeConstraint")
		_ = tsc.SetAttribute(quickscale.AttrTextSizeBounds, pc.TextBounds())
		_ = tsc.SetParent(label)
		p.Labels = append(p.Labels, label)
		p.Constraints = append(p.Constraints, tsc)
	}

	s.AddTag(ui, st.cfg.Tag)
	return p
}

// Config returns the configuration the stage was built from.
func (st *Stage) Config() config.Config {
	return st.cfg
}

// Scene returns the underlying scene.
func (st *Stage) Scene() *scene.Scene {
	return st.scene
}

// Screen returns the root container.
func (st *Stage) Screen() *scene.Instance {
	return st.screen
}

// Panels returns the built panels in configuration order.
func (st *Stage) Panels() []*Panel {
	return st.panels
}

// Panel returns panel i or nil.
func (st *Stage) Panel(i int) *Panel {
	if i < 0 || i >= len(st.panels) {
		return nil
	}
	return st.panels[i]
}

// Resize sets the screen to cols x rows terminal cells.
func (st *Stage) Resize(cols, rows int) {
	size := scene.NewVector2(float64(cols)*st.cfg.CellSize.Width, float64(rows)*st.cfg.CellSize.Height)
	st.screen.SetAbsoluteSize(size)
	st.scene.Flush()
}

// Tracked returns how many panels currently have a live controller.
func (st *Stage) Tracked() int {
	return st.observer.Len()
}

// IsTracked reports whether panel p has a live controller.
func (st *Stage) IsTracked(p *Panel) bool {
	return st.observer.Tracking(p.UIScale)
}

// IsTagged reports whether panel p carries the scale tag.
func (st *Stage) IsTagged(p *Panel) bool {
	return st.scene.HasTag(p.UIScale, st.cfg.Tag)
}

// ToggleTag adds or removes the scale tag on p.
func (st *Stage) ToggleTag(p *Panel) {
	if st.IsTagged(p) {
		st.scene.RemoveTag(p.UIScale, st.cfg.Tag)
	} else {
		st.scene.AddTag(p.UIScale, st.cfg.Tag)
	}
	st.scene.Flush()
}

// Factor returns p's current Factor attribute.
func (st *Stage) Factor(p *Panel) float64 {
	if v, ok := p.UIScale.Attribute(quickscale.AttrFactor); ok {
		if f, isFloat := v.(float64); isFloat {
			return f
		}
	}
	return st.cfg.Scale.FactorFor(p.Config)
}

// SetFactor writes p's Factor attribute. Values are kept positive.
func (st *Stage) SetFactor(p *Panel, factor float64) {
	factor = math.Max(factor, 0.05)
	factor = math.Round(factor*100) / 100
	if err := p.UIScale.SetAttribute(quickscale.AttrFactor, factor); err != nil {
		log.ErrorErr(log.CatUI, "setting factor", err, "panel", p.Config.Name)
	}
	st.scene.Flush()
}

// TextSizes returns the current min and max text size of p's first label.
func (p *Panel) TextSizes() (lo, hi float64) {
	if len(p.Constraints) == 0 {
		return 0, 0
	}
	c := p.Constraints[0]
	return c.MinTextSize(), c.MaxTextSize()
}

// CellSize returns p's scaled size in terminal cells, clamped to the screen.
func (st *Stage) CellSize(p *Panel) (cols, rows int) {
	size := p.Frame.AbsoluteSize()
	scale := p.UIScale.Scale()
	cols = int(math.Round(size.X * scale / st.cfg.CellSize.Width))
	rows = int(math.Round(size.Y * scale / st.cfg.CellSize.Height))

	screen := st.screen.AbsoluteSize()
	maxCols := int(screen.X / st.cfg.CellSize.Width)
	maxRows := int(screen.Y / st.cfg.CellSize.Height)
	return clampInt(cols, minPanelCols, maxCols), clampInt(rows, minPanelRows, maxRows)
}

// Close stops scaling and tears down the scene.
func (st *Stage) Close() error {
	err := st.observer.Maid().Destroy()
	st.scene.Root().Destroy()
	return err
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}
