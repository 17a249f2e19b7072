package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	start    key.Binding
	play     key.Binding
	download key.Binding
	remove   key.Binding
	open     key.Binding
	theme    key.Binding
	info     key.Binding
	back     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		start:    key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "process")),
		play:     key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "play/pause")),
		download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		remove:   key.NewBinding(key.WithKeys("r", "x"), key.WithHelp("r", "remove file")),
		open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "choose file")),
		theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		info:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "how it works")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.info, k.theme, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.start, k.play, k.download},
		{k.remove, k.open, k.back},
		{k.theme, k.info, k.quit},
	}
}
