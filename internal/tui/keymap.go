package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the search screen.
type KeyMap struct {
	Quit       key.Binding
	Submit     key.Binding
	NextField  key.Binding
	PrevField  key.Binding
	Up         key.Binding
	Down       key.Binding
	LoadMore   key.Binding
	WeightDown key.Binding
	WeightUp   key.Binding
	Chat       key.Binding
	Back       key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d"), key.WithHelp("ctrl+c", "quit")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search/send")),
		NextField:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField:  key.NewBinding(key.WithKeys("shift+tab")),
		Up:         key.NewBinding(key.WithKeys("up"), key.WithHelp("↑/↓", "select")),
		Down:       key.NewBinding(key.WithKeys("down")),
		LoadMore:   key.NewBinding(key.WithKeys("ctrl+n", "pgdown"), key.WithHelp("ctrl+n", "load more")),
		WeightDown: key.NewBinding(key.WithKeys("shift+left"), key.WithHelp("shift+←/→", "image weight")),
		WeightUp:   key.NewBinding(key.WithKeys("shift+right")),
		Chat:       key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "ask about product")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextField, k.Up, k.LoadMore, k.WeightDown, k.Chat, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Back}}
}
