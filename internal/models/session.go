package models

import (
	"os"
	"path/filepath"
	"time"
)

// AudioFile is the one file a session operates on.
type AudioFile struct {
	Name string // Base name sent as the multipart "filename" field
	Path string // Local path the file is read from
	Size int64  // Size in bytes at selection time
}

// NewAudioFile stats path and returns the [AudioFile] describing it.
func NewAudioFile(path string) (AudioFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return AudioFile{}, err
	}
	return AudioFile{Name: filepath.Base(path), Path: path, Size: info.Size()}, nil
}

// UploadSession holds the UI state of one file's journey.
type UploadSession struct {
	ID                       string     // Regenerated on every start and reset; stale events carry an old ID
	SelectedFile             *AudioFile // At most one file
	UploadInProgress         bool
	ProcessingInProgress     bool
	DisplayedProgress        int    // 0-100
	ResultToken              string // Opaque server identifier of the processed file
	IsPlaying                bool
	ErrorMessage             string
	StatusMessage            string // Optional message attached to the last server event
	ProcessingElapsedSeconds int
	StartedAt                time.Time
}

// State enumerates the lifecycle of an [UploadSession].
type State int

const (
	Idle State = iota
	Uploading
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// State derives the lifecycle state from the session flags.
func (s UploadSession) State() State {
	switch {
	case s.UploadInProgress:
		return Uploading
	case s.ProcessingInProgress:
		return Processing
	case s.ResultToken != "":
		return Completed
	case s.ErrorMessage != "":
		return Failed
	default:
		return Idle
	}
}

// Active reports whether the session is uploading or processing.
func (s UploadSession) Active() bool {
	return s.UploadInProgress || s.ProcessingInProgress
}

// HasFile reports whether a file is selected.
func (s UploadSession) HasFile() bool {
	return s.SelectedFile != nil
}

// FileName returns the selected file's name, or "" when none is selected.
func (s UploadSession) FileName() string {
	if s.SelectedFile == nil {
		return ""
	}
	return s.SelectedFile.Name
}

// Clone returns a copy that shares no pointers with s.
func (s UploadSession) Clone() UploadSession {
	if s.SelectedFile != nil {
		f := *s.SelectedFile
		s.SelectedFile = &f
	}
	return s
}
