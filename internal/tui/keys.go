package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect   key.Binding
	Inventory key.Binding
	Scan      key.Binding
	Defaults  key.Binding
	Clear     key.Binding
	NextPage  key.Binding
	Up        key.Binding
	Down      key.Binding
	Help      key.Binding
	Suspend   key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Connect:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect/disconnect")),
		Inventory: key.NewBinding(key.WithKeys("i", " "), key.WithHelp("i/space", "start/stop inventory")),
		Scan:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan barcode")),
		Defaults:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "apply defaults")),
		Clear:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear tags")),
		NextPage:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next page")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Suspend:   key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("ctrl+z", "release reader and suspend")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Inventory, k.Scan, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Inventory, k.Scan, k.Defaults},
		{k.Clear, k.NextPage, k.Up, k.Down},
		{k.Help, k.Suspend, k.Quit},
	}
}
