package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the notebook
type KeyMap struct {
	// Navigation
	PrevCell key.Binding
	NextCell key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Actions
	Run  key.Binding
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevCell: key.NewBinding(
			key.WithKeys("alt+up", "ctrl+p"),
			key.WithHelp("alt+↑/ctrl+p", "previous cell"),
		),
		NextCell: key.NewBinding(
			key.WithKeys("alt+down", "ctrl+n"),
			key.WithHelp("alt+↓/ctrl+n", "next cell"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Run: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "run cell"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.PrevCell, k.NextCell, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run},
		{k.PrevCell, k.NextCell, k.PageUp, k.PageDown},
		{k.Help, k.Quit},
	}
}
