package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Advance  key.Binding
	Mark     key.Binding
	Pause    key.Binding
	Tab      key.Binding
	Learning key.Binding
	Remember key.Binding
	Loop     key.Binding
	Random   key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Advance:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter/space", "next")),
		Mark:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mark")),
		Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pool")),
		Learning: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "learning")),
		Remember: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "remembered")),
		Loop:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loop")),
		Random:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "random")),
		Faster:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "shorter interval")),
		Slower:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "longer interval")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Advance, k.Mark, k.Pause, k.Tab, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Advance, k.Mark, k.Pause},
		{k.Tab, k.Learning, k.Remember},
		{k.Loop, k.Random, k.Faster, k.Slower},
		{k.Help, k.Quit},
	}
}
