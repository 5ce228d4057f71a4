package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/tasks"
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
	MsgProgressUpdate MsgKind = iota
	MsgGenerationComplete
	MsgBrowserOpened
)

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// generationCompleteMsg is the constructor for [MsgGenerationComplete]
func generationCompleteMsg(out models.Outcome) Msg {
	return Msg{kind: MsgGenerationComplete, data: out}
}

// browserOpenedMsg is the constructor for [MsgBrowserOpened]; err is nil on success.
func browserOpenedMsg(err error) Msg {
	return Msg{kind: MsgBrowserOpened, data: err}
}
