// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the demo.
type KeyMap struct {
	// Selection
	NextPanel key.Binding
	PrevPanel key.Binding

	// Scaling
	FactorUp   key.Binding
	FactorDown key.Binding
	ResetScale key.Binding
	ToggleTag  key.Binding
	SaveFactor key.Binding

	// General
	ToggleLog key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// FactorStep is how much one FactorUp/FactorDown press changes a factor.
const FactorStep = 0.25

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextPanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next panel"),
		),
		PrevPanel: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous panel"),
		),

		FactorUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "increase factor"),
		),
		FactorDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "decrease factor"),
		),
		ResetScale: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "reset factor"),
		),
		ToggleTag: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle tag"),
		),
		SaveFactor: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "save factor"),
		),

		ToggleLog: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "toggle log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings for the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPanel, k.FactorUp, k.FactorDown, k.ToggleTag, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextPanel, k.PrevPanel},
		{k.FactorUp, k.FactorDown, k.ResetScale, k.ToggleTag, k.SaveFactor},
		{k.ToggleLog, k.Help, k.Quit},
	}
}
