package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	left    key.Binding
	right   key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	grab    key.Binding
	grabCol key.Binding
	newCard key.Binding
	newList key.Binding
	edit    key.Binding
	editCol key.Binding
	del     key.Binding
	delCol  key.Binding
	search  key.Binding
	refresh key.Binding
	help    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		grab:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "grab card")),
		grabCol: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "grab list")),
		newCard: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add card")),
		newList: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add list")),
		edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		editCol: key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "rename list")),
		del:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		delCol:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete list")),
		search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// dragKeys are the bindings shown while something is picked up.
func (k keyMap) dragKeys() []key.Binding {
	drop := key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "drop"))
	cancel := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	return []key.Binding{k.left, k.right, k.up, k.down, drop, cancel}
}

// pickerKeys are the board picker bindings, with help text for boards.
func (k keyMap) pickerKeys() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add board")),
		key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		k.refresh,
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.grab, k.newCard, k.search, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.left, k.right, k.enter},
		{k.grab, k.grabCol, k.newCard, k.newList},
		{k.edit, k.editCol, k.del, k.delCol},
		{k.search, k.refresh, k.back, k.quit},
	}
}
