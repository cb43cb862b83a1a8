package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/kbx/internal/notify"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionStarted MsgKind = iota
	MsgBoardSelected
	MsgStoreChanged
	MsgNotice
	MsgReloaded
)

// sessionStartedMsg is the constructor for [MsgSessionStarted]
func sessionStartedMsg(err error) Msg {
	return Msg{kind: MsgSessionStarted, data: err}
}

// boardSelectedMsg is the constructor for [MsgBoardSelected]
func boardSelectedMsg(boardID string, err error) Msg {
	return Msg{
		kind: MsgBoardSelected,
		data: struct {
			boardID string
			err     error
		}{boardID, err},
	}
}

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg(version uint64) Msg {
	return Msg{kind: MsgStoreChanged, data: version}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(n notify.Notice) Msg {
	return Msg{kind: MsgNotice, data: n}
}

// reloadedMsg is the constructor for [MsgReloaded]
func reloadedMsg(err error) Msg {
	return Msg{kind: MsgReloaded, data: err}
}

func (m Msg) err() error {
	switch d := m.data.(type) {
	case error:
		return d
	case struct {
		boardID string
		err     error
	}:
		return d.err
	}
	return nil
}
