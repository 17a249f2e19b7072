package models

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// EventKind identifies which variant of [ProgressEvent] is set.
type EventKind int

const (
	EventProgress EventKind = iota
	EventResult
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	default:
		return ""
	}
}

// ProgressEvent is one decoded record of the processing stream.
//
// Exactly one of Progress, Result, Error is meaningful, as reported by Kind.
type ProgressEvent struct {
	Kind     EventKind
	Progress int
	Result   string
	Error    string
	Message  string
}

// wireEvent mirrors the JSON object sent by the server.
//
// Result and error events also carry "progress": 100.
type wireEvent struct {
	Progress *int   `json:"progress,omitempty"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ParseProgressEvent decodes a JSON payload into a [ProgressEvent].
//
// Variants are classified with precedence error > result > progress.
func ParseProgressEvent(data []byte) (ProgressEvent, error) {
	var w wireEvent
	if err := sonic.Unmarshal(data, &w); err != nil {
		return ProgressEvent{}, fmt.Errorf("malformed event payload %q: %w", data, err)
	}

	switch {
	case w.Error != "":
		return ProgressEvent{Kind: EventError, Error: w.Error, Message: w.Message}, nil
	case w.Result != "":
		return ProgressEvent{Kind: EventResult, Result: w.Result, Progress: 100, Message: w.Message}, nil
	case w.Progress != nil:
		p := *w.Progress
		if p < 0 || p > 100 {
			return ProgressEvent{}, fmt.Errorf("progress %d out of range", p)
		}
		return ProgressEvent{Kind: EventProgress, Progress: p, Message: w.Message}, nil
	default:
		return ProgressEvent{}, fmt.Errorf("event payload %q has no progress, result, or error", data)
	}
}

// Encode returns the JSON wire form of e.
func (e ProgressEvent) Encode() ([]byte, error) {
	w := wireEvent{Message: e.Message}
	switch e.Kind {
	case EventProgress:
		p := e.Progress
		w.Progress = &p
	case EventResult:
		p := 100
		w.Progress = &p
		w.Result = e.Result
	case EventError:
		p := 100
		w.Progress = &p
		w.Error = e.Error
	}
	return sonic.Marshal(w)
}

// ProgressOf is the constructor for a progress event.
func ProgressOf(p int, message string) ProgressEvent {
	return ProgressEvent{Kind: EventProgress, Progress: p, Message: message}
}

// ResultOf is the constructor for a result event.
func ResultOf(token string) ProgressEvent {
	return ProgressEvent{Kind: EventResult, Result: token, Progress: 100}
}

// ErrorOf is the constructor for an error event.
func ErrorOf(msg string) ProgressEvent {
	return ProgressEvent{Kind: EventError, Error: msg}
}
