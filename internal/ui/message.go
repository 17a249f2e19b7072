package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/tasks"
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
	MsgProcessingDone
	MsgPlaybackToggled
	MsgDownloadDone
	MsgThemeSaved
)

type downloadResult struct {
	path string
	err  error
}

type themeResult struct {
	theme models.Theme
	err   error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// processingDoneMsg is the constructor for [MsgProcessingDone]
func processingDoneMsg(err error) Msg {
	return Msg{kind: MsgProcessingDone, data: err}
}

// playbackToggledMsg is the constructor for [MsgPlaybackToggled]
func playbackToggledMsg(err error) Msg {
	return Msg{kind: MsgPlaybackToggled, data: err}
}

// downloadDoneMsg is the constructor for [MsgDownloadDone]
func downloadDoneMsg(path string, err error) Msg {
	return Msg{kind: MsgDownloadDone, data: downloadResult{path, err}}
}

// themeSavedMsg is the constructor for [MsgThemeSaved]
func themeSavedMsg(theme models.Theme, err error) Msg {
	return Msg{kind: MsgThemeSaved, data: themeResult{theme, err}}
}

func asError(data any) error {
	if err, ok := data.(error); ok {
		return err
	}
	return nil
}
