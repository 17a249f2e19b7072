package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
)

// CloseEvent is the record name the server sends after its last event.
const CloseEvent = "close"

// Event is one dispatched server-sent-event record.
type Event struct {
	Name string
	Data string
	ID   string
}

// EventDecoder reads server-sent-event records from a stream one at a time.
type EventDecoder struct {
	r *bufio.Reader
}

// NewEventDecoder returns an [EventDecoder] reading from r.
func NewEventDecoder(r io.Reader) *EventDecoder {
	return &EventDecoder{r: bufio.NewReader(r)}
}

// Next blocks until a complete record is available and returns it.
//
// A record still pending when the stream ends is dispatched before [io.EOF] is returned.
func (d *EventDecoder) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		pending bool
	)

	for {
		line, err := d.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			if eof {
				return Event{}, io.EOF
			}
			continue
		}

		if !strings.HasPrefix(line, ":") {
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")

			switch field {
			case "data":
				data = append(data, value)
				pending = true
			case "event":
				ev.Name = value
				pending = true
			case "id":
				ev.ID = value
			}
		}

		if eof {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			return Event{}, io.EOF
		}
	}
}

// EventStream yields [models.ProgressEvent] values from a processing response body.
type EventStream struct {
	body    io.ReadCloser
	decoder *EventDecoder
}

// NewEventStream wraps body, which is closed by [EventStream.Close].
func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, decoder: NewEventDecoder(body)}
}

// Next returns the next progress event.
//
// It returns [io.EOF] when the body ends or a close record arrives, and an error wrapping [shared.ErrStream] for undecodable payloads.
func (s *EventStream) Next() (models.ProgressEvent, error) {
	for {
		ev, err := s.decoder.Next()
		if err != nil {
			return models.ProgressEvent{}, err
		}

		if ev.Name == CloseEvent {
			return models.ProgressEvent{}, io.EOF
		}
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}

		pe, err := models.ParseProgressEvent([]byte(ev.Data))
		if err != nil {
			return models.ProgressEvent{}, fmt.Errorf("%w: %v", shared.ErrStream, err)
		}
		return pe, nil
	}
}

// Close releases the underlying response body.
func (s *EventStream) Close() error {
	return s.body.Close()
}
