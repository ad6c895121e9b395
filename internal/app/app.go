// Package app contains the root application model: a terminal demo where
// every configured panel is scaled by quickscale as the terminal resizes.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/quickscale/internal/cachemanager"
	"github.com/zjrosen/quickscale/internal/config"
	"github.com/zjrosen/quickscale/internal/keys"
	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/pubsub"
	"github.com/zjrosen/quickscale/internal/watcher"
)

const (
	maxLogLines   = 200
	shownLogLines = 6
	zonePrefix    = "panel:"
)

// Options configures New.
type Options struct {
	Config     config.Config
	ConfigPath string // where w saves factors and the watcher looks; empty disables both
	Debug      bool   // show the live log tail
	Tracer     trace.Tracer

	// Load re-reads the configuration after the watcher reports a change.
	Load func() (config.Config, error)
}

// factorSavedMsg reports the result of saving a panel factor.
type factorSavedMsg struct {
	panel  string
	factor float64
	err    error
}

// Model is the root application state.
type Model struct {
	opts Options
	keys keys.KeyMap
	help help.Model

	stage    *Stage
	selected int

	width  int
	height int

	status   string
	showHelp bool
	showLog  bool
	helpView string

	renderCache cachemanager.CacheManager[string]

	logLines    []string
	logListener *log.LogListener
	logCancel   context.CancelFunc

	watcherHandle   *watcher.Watcher
	watcherCancel   context.CancelFunc
	watcherListener *pubsub.ContinuousListener[watcher.Reload]
}

// New creates the application model and builds the initial stage.
func New(opts Options) Model {
	m := Model{
		opts:        opts,
		keys:        keys.DefaultKeyMap(),
		help:        help.New(),
		stage:       NewStage(opts.Config, opts.Tracer),
		renderCache: cachemanager.NewInMemoryCacheManager[string]("panels", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		showLog:     opts.Debug,
	}

	if opts.Debug {
		ctx, cancel := context.WithCancel(context.Background())
		if l := log.NewListener(ctx); l != nil {
			m.logListener = l
			m.logCancel = cancel
		} else {
			cancel()
		}
	}

	if opts.Config.Watch && opts.ConfigPath != "" {
		w, err := watcher.New(watcher.DefaultConfig(opts.ConfigPath))
		if err == nil {
			if err := w.Start(); err == nil {
				ctx, cancel := context.WithCancel(context.Background())
				m.watcherHandle = w
				m.watcherCancel = cancel
				m.watcherListener = pubsub.NewContinuousListener(ctx, w.Broker())
			} else {
				_ = w.Stop()
				log.ErrorErr(log.CatWatcher, "starting config watcher", err)
			}
		} else {
			log.ErrorErr(log.CatWatcher, "creating config watcher", err)
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.watcherListener != nil {
		cmds = append(cmds, m.watcherListener.Listen())
	}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	return tea.Batch(cmds...)
}

// Stage returns the current stage.
func (m Model) Stage() *Stage {
	return m.stage
}

// Selected returns the index of the selected panel.
func (m Model) Selected() int {
	return m.selected
}

// Status returns the last status message.
func (m Model) Status() string {
	return m.status
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.stage.Resize(m.statusFreeSize())
		if m.showHelp {
			m.helpView = renderHelp(m.keys, m.width)
		}
		log.Debug(log.CatUI, "terminal resized", "cols", msg.Width, "rows", msg.Height)
		return m, nil

	case log.LogEvent:
		m.logLines = append(m.logLines, strings.TrimRight(msg.Payload, "\n"))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		return m, m.logListener.Listen()

	case pubsub.Event[watcher.Reload]:
		m = m.reload(msg.Payload)
		return m, m.watcherListener.Listen()

	case factorSavedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			log.ErrorErr(log.CatConfig, "saving factor", msg.err, "panel", msg.panel)
		} else {
			m.status = fmt.Sprintf("saved %s factor %.2f", msg.panel, msg.factor)
		}
		return m, nil

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		for i := range m.stage.Panels() {
			if z := zone.Get(panelZoneID(i)); z != nil && z.InBounds(msg) {
				m.selected = i
				return m, nil
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.helpView = renderHelp(m.keys, m.width)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleLog):
		m.showLog = !m.showLog
		if m.width > 0 {
			m.stage.Resize(m.statusFreeSize())
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPanel):
		if n := len(m.stage.Panels()); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPanel):
		if n := len(m.stage.Panels()); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}
		return m, nil
	}

	p := m.stage.Panel(m.selected)
	if p == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.FactorUp):
		m.stage.SetFactor(p, m.stage.Factor(p)+keys.FactorStep)
	case key.Matches(msg, m.keys.FactorDown):
		m.stage.SetFactor(p, m.stage.Factor(p)-keys.FactorStep)
	case key.Matches(msg, m.keys.ResetScale):
		m.stage.SetFactor(p, m.stage.Config().Scale.FactorFor(p.Config))
	case key.Matches(msg, m.keys.ToggleTag):
		m.stage.ToggleTag(p)
		if m.stage.IsTagged(p) {
			m.status = p.Config.Name + " tagged"
		} else {
			m.status = p.Config.Name + " untagged"
		}
	case key.Matches(msg, m.keys.SaveFactor):
		if m.opts.ConfigPath == "" {
			m.status = "no config file to save to"
			return m, nil
		}
		return m, saveFactorCmd(m.opts.ConfigPath, p.Config.Name, m.stage.Factor(p))
	}
	return m, nil
}

func saveFactorCmd(path, panel string, factor float64) tea.Cmd {
	return func() tea.Msg {
		return factorSavedMsg{panel: panel, factor: factor, err: config.SavePanelFactor(path, panel, factor)}
	}
}

// reload rebuilds the stage from the re-read configuration. An invalid file
// keeps the current stage.
func (m Model) reload(r watcher.Reload) Model {
	if m.opts.Load == nil {
		return m
	}
	cfg, err := m.opts.Load()
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		m.status = "reload failed: " + err.Error()
		log.ErrorErr(log.CatConfig, "reloading config", err, "path", r.Path)
		return m
	}

	if err := m.stage.Close(); err != nil {
		log.ErrorErr(log.CatUI, "closing stage", err)
	}
	m.opts.Config = cfg
	m.stage = NewStage(cfg, m.opts.Tracer)
	if m.width > 0 {
		m.stage.Resize(m.statusFreeSize())
	}
	if m.selected >= len(m.stage.Panels()) {
		m.selected = 0
	}
	m.renderCache.Flush()
	m.status = fmt.Sprintf("config reloaded (%d changed lines)", len(r.Changes))
	return m
}

// statusFreeSize is the terminal area left for panels.
func (m Model) statusFreeSize() (cols, rows int) {
	rows = m.height - 1
	if m.showLog {
		rows -= shownLogLines
	}
	return m.width, max(rows, 1)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "initializing…"
	}

	var body string
	if m.showHelp {
		body = m.helpView
	} else {
		body = m.renderPanels()
	}

	sections := []string{body}
	if m.showLog {
		start := max(len(m.logLines)-shownLogLines, 0)
		sections = append(sections, renderLog(m.logLines[start:], m.width))
	}
	sections = append(sections, renderStatus(m.width, m.statusParts()...))

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderPanels() string {
	boxes := make([]string, 0, len(m.stage.Panels()))
	for i, p := range m.stage.Panels() {
		v := m.panelView(i, p)
		k := v.cacheKey()
		box, ok := m.renderCache.Get(k)
		if !ok {
			box = renderPanel(v)
			m.renderCache.Set(k, box, cachemanager.DefaultExpiration)
		}
		boxes = append(boxes, zone.Mark(panelZoneID(i), box))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) panelView(i int, p *Panel) panelView {
	cols, rows := m.stage.CellSize(p)
	lo, hi := p.TextSizes()
	return panelView{
		Name:     p.Config.Name,
		Lines:    p.Config.Lines,
		Cols:     cols,
		Rows:     rows,
		Scale:    p.UIScale.Scale(),
		Factor:   m.stage.Factor(p),
		TextMin:  lo,
		TextMax:  hi,
		Tracked:  m.stage.IsTracked(p),
		Selected: i == m.selected,
	}
}

func (m Model) statusParts() []string {
	screen := m.stage.Screen().AbsoluteSize()
	parts := []string{
		fmt.Sprintf("%s px", screen),
		fmt.Sprintf("tracked %d/%d", m.stage.Tracked(), len(m.stage.Panels())),
	}
	if p := m.stage.Panel(m.selected); p != nil {
		parts = append(parts, fmt.Sprintf("%s x%.2f", p.Config.Name, p.UIScale.Scale()))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	return parts
}

func panelZoneID(i int) string {
	return fmt.Sprintf("%s%d", zonePrefix, i)
}

// Close releases resources held by the application.
func (m *Model) Close() error {
	if m.logCancel != nil {
		m.logCancel()
	}
	if m.watcherCancel != nil {
		m.watcherCancel()
	}
	if m.watcherHandle != nil {
		if err := m.watcherHandle.Stop(); err != nil {
			return err
		}
	}
	return m.stage.Close()
}
