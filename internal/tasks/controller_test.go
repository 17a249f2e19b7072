package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/services"
	"github.com/desertthunder/annihilator/internal/shared"
	tu "github.com/desertthunder/annihilator/internal/testing"
)

const waitTimeout = 2 * time.Second

type fakeProcessor struct {
	mu        sync.Mutex
	body      func() io.ReadCloser
	err       error
	submits   int
	downloads []string
	content   string
}

func streamOf(payloads ...string) func() io.ReadCloser {
	return func() io.ReadCloser {
		return io.NopCloser(strings.NewReader(tu.SSEFrames(payloads...)))
	}
}

func (f *fakeProcessor) Submit(ctx context.Context, file models.AudioFile) (*services.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.err != nil {
		return nil, f.err
	}
	return services.NewEventStream(f.body()), nil
}

func (f *fakeProcessor) DownloadURL(token string) string {
	return "http://localhost:8000/api/v1/files/download-processed-file/?processed-filename=" + token + "&result-filename=vocals.mp3"
}

func (f *fakeProcessor) Download(ctx context.Context, token string, w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, token)
	n, err := io.WriteString(w, f.content)
	return int64(n), err
}

func (f *fakeProcessor) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

type fakePlayer struct {
	mu      sync.Mutex
	playErr error
	urls    []string
	stops   int
	done    func(error)
}

func (p *fakePlayer) Play(ctx context.Context, url string, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.urls = append(p.urls, url)
	p.done = done
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) finish(err error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	done(err)
}

var songFile = models.AudioFile{Name: "song.mp3", Path: "/music/song.mp3", Size: 1024}

func newTestController(proc Processor, opts ControllerOpts) *Controller {
	opts.Processor = proc
	if opts.SimInterval == 0 {
		opts.SimInterval = time.Hour
	}
	return NewController(opts)
}

// harness drives a controller whose stream is fed by hand through a pipe.
type harness struct {
	c       *Controller
	proc    *fakeProcessor
	w       *io.PipeWriter
	updates chan ProgressUpdate
	done    chan error
}

func newHarness(t *testing.T, opts ControllerOpts) *harness {
	t.Helper()
	pr, pw := io.Pipe()
	proc := &fakeProcessor{body: func() io.ReadCloser { return pr }}
	h := &harness{
		c:       newTestController(proc, opts),
		proc:    proc,
		w:       pw,
		updates: make(chan ProgressUpdate, 256),
		done:    make(chan error, 1),
	}
	h.c.Subscribe(h.updates)
	t.Cleanup(func() {
		pw.Close()
		h.c.RemoveFile()
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.c.SelectFile(songFile)
	go func() { h.done <- h.c.StartProcessing(context.Background()) }()
	h.waitFor(t, func(u ProgressUpdate) bool { return u.State == models.Uploading && !u.Simulated })
}

func (h *harness) send(t *testing.T, payload string) {
	t.Helper()
	if _, err := fmt.Fprintf(h.w, "data: %s\n\n", payload); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
	h.waitFor(t, func(u ProgressUpdate) bool { return !u.Simulated })
}

func (h *harness) waitFor(t *testing.T, match func(ProgressUpdate) bool) ProgressUpdate {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case u := <-h.updates:
			if match(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for progress update")
			return ProgressUpdate{}
		}
	}
}

func (h *harness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("StartProcessing did not return")
		return nil
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestController(t *testing.T) {
	t.Run("StartProcessing", func(t *testing.T) {
		t.Run("Without File Is A No-op", func(t *testing.T) {
			proc := &fakeProcessor{body: streamOf(`{"progress": 10}`)}
			c := newTestController(proc, ControllerOpts{})
			before := c.Snapshot()

			err := c.StartProcessing(context.Background())
			if !errors.Is(err, shared.ErrNoFileSelected) {
				t.Fatalf("expected ErrNoFileSelected, got %v", err)
			}
			if proc.submitCount() != 0 {
				t.Errorf("expected no network call, got %d submits", proc.submitCount())
			}
			if !reflect.DeepEqual(before, c.Snapshot()) {
				t.Errorf("expected unchanged session, got %+v", c.Snapshot())
			}
		})

		t.Run("Initial State", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)

			s := h.c.Snapshot()
			if !s.UploadInProgress || s.ProcessingInProgress {
				t.Errorf("expected uploading state, got %+v", s)
			}
			if s.DisplayedProgress != 10 {
				t.Errorf("expected progress 10, got %d", s.DisplayedProgress)
			}
			if s.ID == "" {
				t.Error("expected a session ID")
			}
			if !h.c.SimulatorRunning() {
				t.Error("expected simulator to be running")
			}
		})

		t.Run("While Busy", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)
			before := h.c.Snapshot()

			if err := h.c.StartProcessing(context.Background()); !errors.Is(err, shared.ErrSessionBusy) {
				t.Fatalf("expected ErrSessionBusy, got %v", err)
			}
			if h.proc.submitCount() != 1 {
				t.Errorf("expected a single submit, got %d", h.proc.submitCount())
			}
			if after := h.c.Snapshot(); after.ID != before.ID || after.DisplayedProgress != before.DisplayedProgress {
				t.Errorf("expected unchanged session, got %+v", after)
			}
		})

		t.Run("Connection Failure", func(t *testing.T) {
			proc := &fakeProcessor{err: fmt.Errorf("%w: request failed: refused", shared.ErrConnection)}
			c := newTestController(proc, ControllerOpts{})
			c.SelectFile(songFile)

			err := c.StartProcessing(context.Background())
			if !errors.Is(err, shared.ErrConnection) {
				t.Fatalf("expected ErrConnection, got %v", err)
			}

			s := c.Snapshot()
			if s.State() != models.Failed || s.DisplayedProgress != 0 || s.Active() {
				t.Errorf("expected failed idle flags, got %+v", s)
			}
			if !strings.Contains(s.ErrorMessage, "refused") {
				t.Errorf("expected error message to carry cause, got %q", s.ErrorMessage)
			}
			if c.SimulatorRunning() {
				t.Error("expected simulator to be stopped")
			}
		})

		t.Run("Caller Cancellation Fails Session", func(t *testing.T) {
			pr, pw := io.Pipe()
			defer pw.Close()
			proc := &fakeProcessor{body: func() io.ReadCloser { return pr }}
			c := newTestController(proc, ControllerOpts{})
			c.SelectFile(songFile)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- c.StartProcessing(ctx) }()
			eventually(t, func() bool { return c.Snapshot().Active() })
			cancel()

			select {
			case err := <-done:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("expected context.Canceled, got %v", err)
				}
			case <-time.After(waitTimeout):
				t.Fatal("StartProcessing did not return")
			}
			if s := c.Snapshot(); s.State() != models.Failed {
				t.Errorf("expected failed state, got %s", s.State())
			}
		})
	})

	t.Run("Progress Events", func(t *testing.T) {
		tt := []struct {
			name   string
			values []int
		}{
			{name: "server milestones", values: []int{15, 30, 50, 80, 90}},
			{name: "repeated values", values: []int{10, 10, 60, 60}},
			{name: "from zero", values: []int{0, 1, 2, 3}},
			{name: "single jump", values: []int{99}},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				h := newHarness(t, ControllerOpts{})
				h.start(t)

				for _, p := range tc.values {
					h.send(t, fmt.Sprintf(`{"progress": %d}`, p))

					if got := h.c.Snapshot().DisplayedProgress; got != p {
						t.Errorf("after progress %d displayed %d", p, got)
					}
					if h.c.SimulatorRunning() {
						t.Errorf("simulator still running after progress %d", p)
					}
				}
			})
		}

		t.Run("Phase Boundary", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)

			h.send(t, `{"progress": 49}`)
			if s := h.c.Snapshot(); !s.UploadInProgress || s.ProcessingInProgress {
				t.Errorf("expected uploading below 50, got %+v", s)
			}

			h.send(t, `{"progress": 50}`)
			if s := h.c.Snapshot(); s.UploadInProgress || !s.ProcessingInProgress {
				t.Errorf("expected processing at 50, got %+v", s)
			}
			if got := h.c.Snapshot().State(); got != models.Processing {
				t.Errorf("expected processing state, got %s", got)
			}
		})

		t.Run("Status Message", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)

			h.send(t, `{"progress": 30, "message": "Separating stems"}`)
			if got := h.c.Snapshot().StatusMessage; got != "Separating stems" {
				t.Errorf("expected status message, got %q", got)
			}
		})
	})

	t.Run("Terminal Events", func(t *testing.T) {
		t.Run("Result Regardless Of Prior Progress", func(t *testing.T) {
			tt := []struct {
				name  string
				prior []string
			}{
				{name: "no progress", prior: nil},
				{name: "uploading", prior: []string{`{"progress": 10}`}},
				{name: "processing", prior: []string{`{"progress": 60}`}},
			}

			for _, tc := range tt {
				t.Run(tc.name, func(t *testing.T) {
					frames := append(append([]string{}, tc.prior...), `{"progress": 100, "result": "abc123.mp3"}`)
					c := newTestController(&fakeProcessor{body: streamOf(frames...)}, ControllerOpts{})
					c.SelectFile(songFile)

					if err := c.StartProcessing(context.Background()); err != nil {
						t.Fatalf("StartProcessing() error = %v", err)
					}

					s := c.Snapshot()
					if s.UploadInProgress || s.ProcessingInProgress {
						t.Errorf("expected both flags false, got %+v", s)
					}
					if s.ResultToken != "abc123.mp3" {
						t.Errorf("expected result token, got %q", s.ResultToken)
					}
					if s.DisplayedProgress != 100 || s.State() != models.Completed {
						t.Errorf("expected completed at 100, got %s at %d", s.State(), s.DisplayedProgress)
					}
					if c.SimulatorRunning() {
						t.Error("expected simulator to be stopped")
					}
				})
			}
		})

		t.Run("Elapsed Time", func(t *testing.T) {
			start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
			calls := 0
			clock := func() time.Time {
				calls++
				if calls == 1 {
					return start
				}
				return start.Add(12600 * time.Millisecond)
			}

			c := newTestController(&fakeProcessor{body: streamOf(`{"result": "tok"}`)}, ControllerOpts{Clock: clock})
			c.SelectFile(songFile)
			if err := c.StartProcessing(context.Background()); err != nil {
				t.Fatalf("StartProcessing() error = %v", err)
			}
			if got := c.Snapshot().ProcessingElapsedSeconds; got != 13 {
				t.Errorf("expected 13 elapsed seconds, got %d", got)
			}
		})

		t.Run("Error Event", func(t *testing.T) {
			tt := []struct {
				name   string
				frames []string
			}{
				{name: "immediately", frames: []string{`{"error": "bad format"}`}},
				{name: "after processing", frames: []string{`{"progress": 80}`, `{"error": "bad format"}`}},
				{name: "with progress attached", frames: []string{`{"progress": 100, "error": "bad format"}`}},
			}

			for _, tc := range tt {
				t.Run(tc.name, func(t *testing.T) {
					c := newTestController(&fakeProcessor{body: streamOf(tc.frames...)}, ControllerOpts{})
					c.SelectFile(songFile)

					err := c.StartProcessing(context.Background())
					if !errors.Is(err, shared.ErrStream) {
						t.Fatalf("expected ErrStream, got %v", err)
					}

					s := c.Snapshot()
					if s.ErrorMessage != "bad format" {
						t.Errorf("expected errorMessage 'bad format', got %q", s.ErrorMessage)
					}
					if s.DisplayedProgress != 0 || s.UploadInProgress || s.ProcessingInProgress {
						t.Errorf("expected reset progress and flags, got %+v", s)
					}
				})
			}
		})

		t.Run("Stream Closed Without Result", func(t *testing.T) {
			tt := []struct {
				name string
				body string
			}{
				{name: "eof", body: tu.SSEFrames(`{"progress": 10}`)},
				{name: "close record", body: tu.SSEFrames(`{"progress": 60}`) + "event: close\n\n"},
				{name: "empty body", body: ""},
			}

			for _, tc := range tt {
				t.Run(tc.name, func(t *testing.T) {
					body := tc.body
					proc := &fakeProcessor{body: func() io.ReadCloser { return io.NopCloser(strings.NewReader(body)) }}
					c := newTestController(proc, ControllerOpts{})
					c.SelectFile(songFile)

					err := c.StartProcessing(context.Background())
					if !errors.Is(err, shared.ErrStream) {
						t.Fatalf("expected ErrStream, got %v", err)
					}

					s := c.Snapshot()
					if s.State() != models.Failed || s.DisplayedProgress != 0 {
						t.Errorf("expected failed at 0, got %s at %d", s.State(), s.DisplayedProgress)
					}
					if !strings.Contains(s.ErrorMessage, "stream closed before a result was received") {
						t.Errorf("unexpected error message %q", s.ErrorMessage)
					}
				})
			}
		})

		t.Run("Malformed Payload", func(t *testing.T) {
			c := newTestController(&fakeProcessor{body: streamOf(`{"progress": "ten"}`)}, ControllerOpts{})
			c.SelectFile(songFile)

			if err := c.StartProcessing(context.Background()); !errors.Is(err, shared.ErrStream) {
				t.Fatalf("expected ErrStream, got %v", err)
			}
			if s := c.Snapshot(); s.State() != models.Failed {
				t.Errorf("expected failed state, got %s", s.State())
			}
		})

		t.Run("Idle Timeout", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{IdleTimeout: 30 * time.Millisecond})
			h.start(t)
			h.send(t, `{"progress": 15}`)

			err := h.result(t)
			if !errors.Is(err, shared.ErrStream) || !errors.Is(err, shared.ErrTimeout) {
				t.Fatalf("expected ErrStream and ErrTimeout, got %v", err)
			}
			if s := h.c.Snapshot(); s.State() != models.Failed || s.DisplayedProgress != 0 {
				t.Errorf("expected failed at 0, got %s at %d", s.State(), s.DisplayedProgress)
			}
		})
	})

	t.Run("RemoveFile", func(t *testing.T) {
		assertDefaults := func(t *testing.T, c *Controller) {
			t.Helper()
			if s := c.Snapshot(); !reflect.DeepEqual(s, models.UploadSession{}) {
				t.Errorf("expected default session, got %+v", s)
			}
			if c.SimulatorRunning() {
				t.Error("expected simulator to be stopped")
			}
		}

		t.Run("From Idle", func(t *testing.T) {
			c := newTestController(&fakeProcessor{}, ControllerOpts{})
			c.SelectFile(songFile)
			c.RemoveFile()
			assertDefaults(t, c)
		})

		t.Run("From Uploading", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)

			h.c.RemoveFile()
			assertDefaults(t, h.c)
			if err := h.result(t); !errors.Is(err, shared.ErrAbandoned) {
				t.Errorf("expected ErrAbandoned, got %v", err)
			}
			assertDefaults(t, h.c)
		})

		t.Run("From Processing", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)
			h.send(t, `{"progress": 70}`)

			h.c.RemoveFile()
			if err := h.result(t); !errors.Is(err, shared.ErrAbandoned) {
				t.Errorf("expected ErrAbandoned, got %v", err)
			}
			assertDefaults(t, h.c)
		})

		t.Run("From Completed While Playing", func(t *testing.T) {
			player := &fakePlayer{}
			c := newTestController(&fakeProcessor{body: streamOf(`{"result": "tok"}`)}, ControllerOpts{Player: player})
			c.SelectFile(songFile)
			if err := c.StartProcessing(context.Background()); err != nil {
				t.Fatalf("StartProcessing() error = %v", err)
			}
			if err := c.TogglePlayback(context.Background()); err != nil {
				t.Fatalf("TogglePlayback() error = %v", err)
			}

			c.RemoveFile()
			assertDefaults(t, c)
			if player.stops != 1 {
				t.Errorf("expected player to be stopped once, got %d", player.stops)
			}
		})

		t.Run("From Failed", func(t *testing.T) {
			c := newTestController(&fakeProcessor{body: streamOf(`{"error": "bad format"}`)}, ControllerOpts{})
			c.SelectFile(songFile)
			c.StartProcessing(context.Background())

			c.RemoveFile()
			assertDefaults(t, c)
		})
	})

	t.Run("SelectFile", func(t *testing.T) {
		t.Run("Replaces File And Clears Result", func(t *testing.T) {
			c := newTestController(&fakeProcessor{body: streamOf(`{"result": "tok"}`)}, ControllerOpts{})
			c.SelectFile(songFile)
			c.StartProcessing(context.Background())

			other := models.AudioFile{Name: "other.wav", Path: "/music/other.wav"}
			c.SelectFile(other)

			s := c.Snapshot()
			if s.FileName() != "other.wav" || s.ResultToken != "" || s.ErrorMessage != "" {
				t.Errorf("unexpected session after reselect %+v", s)
			}
			if s.State() != models.Idle {
				t.Errorf("expected idle state, got %s", s.State())
			}
		})

		t.Run("Abandons In-flight Stream", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)
			h.send(t, `{"progress": 30}`)

			h.c.SelectFile(models.AudioFile{Name: "next.flac", Path: "/music/next.flac"})
			if err := h.result(t); !errors.Is(err, shared.ErrAbandoned) {
				t.Errorf("expected ErrAbandoned, got %v", err)
			}

			s := h.c.Snapshot()
			if s.State() != models.Idle || s.DisplayedProgress != 0 || s.FileName() != "next.flac" {
				t.Errorf("unexpected session %+v", s)
			}
		})
	})

	t.Run("ApplyEvent", func(t *testing.T) {
		t.Run("Stale Session Is Ignored", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)
			old := h.c.Snapshot().ID

			if _, applied := h.c.ApplyEvent("not-a-session", models.ProgressOf(40, "")); applied {
				t.Error("expected event for unknown session to be dropped")
			}

			h.c.RemoveFile()
			h.result(t)

			if _, applied := h.c.ApplyEvent(old, models.ResultOf("late")); applied {
				t.Error("expected event for abandoned session to be dropped")
			}
			if s := h.c.Snapshot(); s.ResultToken != "" {
				t.Errorf("late result leaked into session: %+v", s)
			}
		})

		t.Run("Ended Session Is Ignored", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{})
			h.start(t)
			id := h.c.Snapshot().ID

			terminal, applied := h.c.ApplyEvent(id, models.ErrorOf("boom"))
			if !terminal || !applied {
				t.Fatalf("expected applied terminal event, got terminal=%v applied=%v", terminal, applied)
			}
			if _, applied := h.c.ApplyEvent(id, models.ProgressOf(50, "")); applied {
				t.Error("expected event after terminal to be dropped")
			}
		})
	})

	t.Run("Simulated Progress", func(t *testing.T) {
		t.Run("Advances Until Real Data", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{SimInterval: 2 * time.Millisecond})
			h.start(t)

			u := h.waitFor(t, func(u ProgressUpdate) bool { return u.Simulated && u.Progress >= 12 })
			if u.State != models.Uploading {
				t.Errorf("expected simulated updates while uploading, got %s", u.State)
			}

			h.send(t, `{"progress": 30}`)
			if h.c.SimulatorRunning() {
				t.Fatal("expected simulator to stop after real progress")
			}

			time.Sleep(20 * time.Millisecond)
			if got := h.c.Snapshot().DisplayedProgress; got != 30 {
				t.Errorf("expected progress to stay at 30, got %d", got)
			}
		})

		t.Run("Never Reaches 100", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{SimInterval: time.Millisecond, StartProgress: 97})
			h.start(t)

			eventually(t, func() bool { return h.c.Snapshot().DisplayedProgress == SimulatedCeiling })
			time.Sleep(20 * time.Millisecond)
			if got := h.c.Snapshot().DisplayedProgress; got != SimulatedCeiling {
				t.Errorf("expected progress capped at %d, got %d", SimulatedCeiling, got)
			}
		})

		t.Run("Guard Stops Ticks", func(t *testing.T) {
			h := newHarness(t, ControllerOpts{SimInterval: 2 * time.Millisecond, SimStopAfter: 20 * time.Millisecond})
			h.start(t)

			eventually(t, func() bool { return !h.c.SimulatorRunning() })
			settled := h.c.Snapshot().DisplayedProgress
			time.Sleep(20 * time.Millisecond)
			if got := h.c.Snapshot().DisplayedProgress; got != settled {
				t.Errorf("expected progress to settle at %d, got %d", settled, got)
			}
			if !h.c.Snapshot().UploadInProgress {
				t.Error("guard must not end the session")
			}
		})
	})

	t.Run("Playback", func(t *testing.T) {
		completed := func(t *testing.T, player Player) *Controller {
			t.Helper()
			c := newTestController(&fakeProcessor{body: streamOf(`{"result": "abc123.mp3"}`)}, ControllerOpts{Player: player})
			c.SelectFile(songFile)
			if err := c.StartProcessing(context.Background()); err != nil {
				t.Fatalf("StartProcessing() error = %v", err)
			}
			return c
		}

		t.Run("Without Result", func(t *testing.T) {
			c := newTestController(&fakeProcessor{}, ControllerOpts{Player: &fakePlayer{}})
			if err := c.TogglePlayback(context.Background()); !errors.Is(err, shared.ErrNoResult) {
				t.Errorf("expected ErrNoResult, got %v", err)
			}
		})

		t.Run("Toggle On And Off", func(t *testing.T) {
			player := &fakePlayer{}
			c := completed(t, player)

			if err := c.TogglePlayback(context.Background()); err != nil {
				t.Fatalf("TogglePlayback() error = %v", err)
			}
			if !c.Snapshot().IsPlaying {
				t.Error("expected playing state")
			}
			if len(player.urls) != 1 || !strings.Contains(player.urls[0], "processed-filename=abc123.mp3") {
				t.Errorf("unexpected player urls %v", player.urls)
			}

			if err := c.TogglePlayback(context.Background()); err != nil {
				t.Fatalf("TogglePlayback() error = %v", err)
			}
			if c.Snapshot().IsPlaying {
				t.Error("expected paused state")
			}
			if player.stops != 1 {
				t.Errorf("expected one stop, got %d", player.stops)
			}
		})

		t.Run("Ends On Its Own", func(t *testing.T) {
			player := &fakePlayer{}
			c := completed(t, player)
			c.TogglePlayback(context.Background())

			player.finish(nil)
			if c.Snapshot().IsPlaying {
				t.Error("expected playing to reset when playback ends")
			}
		})

		t.Run("Failure After Start Is Reported", func(t *testing.T) {
			player := &fakePlayer{}
			c := completed(t, player)
			updates := make(chan ProgressUpdate, 16)
			c.Subscribe(updates)
			c.TogglePlayback(context.Background())

			player.finish(errors.New("invalid data found when processing input"))

			var last ProgressUpdate
			for len(updates) > 0 {
				last = <-updates
			}
			if !errors.Is(last.Err, shared.ErrPlayback) {
				t.Errorf("expected ErrPlayback on the last update, got %v", last.Err)
			}
			if !strings.Contains(last.Message, "Playback failed: invalid data") {
				t.Errorf("unexpected message %q", last.Message)
			}
			if c.Snapshot().IsPlaying {
				t.Error("expected playing to reset after failure")
			}
		})

		t.Run("Stale End Is Ignored", func(t *testing.T) {
			player := &fakePlayer{}
			c := completed(t, player)
			c.TogglePlayback(context.Background())
			first := player.done

			c.TogglePlayback(context.Background())
			c.TogglePlayback(context.Background())
			first(nil)

			if !c.Snapshot().IsPlaying {
				t.Error("expected second playback to keep playing")
			}
		})

		t.Run("Start Failure", func(t *testing.T) {
			c := completed(t, &fakePlayer{playErr: errors.New("ffplay not found")})

			err := c.TogglePlayback(context.Background())
			if !errors.Is(err, shared.ErrPlayback) {
				t.Fatalf("expected ErrPlayback, got %v", err)
			}
			s := c.Snapshot()
			if s.IsPlaying {
				t.Error("expected not playing after failure")
			}
			if s.ErrorMessage != "" {
				t.Errorf("playback failure must not set session error, got %q", s.ErrorMessage)
			}
		})

		t.Run("No Player", func(t *testing.T) {
			c := completed(t, nil)
			if err := c.TogglePlayback(context.Background()); !errors.Is(err, shared.ErrPlayback) {
				t.Errorf("expected ErrPlayback, got %v", err)
			}
		})
	})

	t.Run("Download", func(t *testing.T) {
		t.Run("Without Result", func(t *testing.T) {
			proc := &fakeProcessor{}
			c := newTestController(proc, ControllerOpts{})
			c.SelectFile(songFile)

			if _, err := c.DownloadResult(context.Background(), t.TempDir()); !errors.Is(err, shared.ErrNoResult) {
				t.Errorf("expected ErrNoResult, got %v", err)
			}
			if len(proc.downloads) != 0 {
				t.Error("expected no download request")
			}
			if c.DownloadURL() != "" {
				t.Error("expected empty download URL")
			}
		})

		t.Run("Writes Vocals File", func(t *testing.T) {
			proc := &fakeProcessor{body: streamOf(`{"result": "abc123.mp3"}`), content: "vocals"}
			c := newTestController(proc, ControllerOpts{})
			c.SelectFile(songFile)
			c.StartProcessing(context.Background())

			dir := t.TempDir()
			path, err := c.DownloadResult(context.Background(), dir)
			if err != nil {
				t.Fatalf("DownloadResult() error = %v", err)
			}
			if !strings.HasSuffix(path, "vocals_song.mp3.mp3") {
				t.Errorf("unexpected download path %s", path)
			}
			if got := tu.MustReadFile(t, path); got != "vocals" {
				t.Errorf("unexpected file content %q", got)
			}
		})
	})
}

func TestDownloadName(t *testing.T) {
	tt := []struct {
		original string
		want     string
	}{
		{original: "song.mp3", want: "vocals_song.mp3.mp3"},
		{original: "track", want: "vocals_track.mp3"},
		{original: "", want: "vocals_audio.mp3"},
	}

	for _, tc := range tt {
		t.Run(tc.want, func(t *testing.T) {
			if got := DownloadName(tc.original); got != tc.want {
				t.Errorf("DownloadName(%q) = %s, want %s", tc.original, got, tc.want)
			}
		})
	}
}

func TestSongScenario(t *testing.T) {
	var (
		mu          sync.Mutex
		downloadURL string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/processing/spleeter-sse", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("filename"); got != "song.mp3" {
			t.Errorf("expected filename song.mp3, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, tu.SSEFrames(`{"progress": 10}`, `{"progress": 60}`, `{"result": "abc123.mp3"}`))
	})
	mux.HandleFunc("/api/v1/files/download-processed-file/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		downloadURL = r.URL.String()
		mu.Unlock()
		io.WriteString(w, "vocals-bytes")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	path := tu.WriteAudioFile(t, "song.mp3", []byte("fake-audio"))
	file, err := models.NewAudioFile(path)
	if err != nil {
		t.Fatalf("NewAudioFile() error = %v", err)
	}

	proc := services.NewProcessingService(services.ProcessingOpts{BaseURL: server.URL})
	c := newTestController(proc, ControllerOpts{})
	c.SelectFile(file)

	if err := c.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() error = %v", err)
	}

	s := c.Snapshot()
	if s.UploadInProgress || s.ProcessingInProgress || s.ResultToken != "abc123.mp3" {
		t.Fatalf("unexpected final session %+v", s)
	}

	if _, err := c.DownloadResult(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("DownloadResult() error = %v", err)
	}

	want := "/api/v1/files/download-processed-file/?processed-filename=abc123.mp3&result-filename=vocals.mp3"
	mu.Lock()
	defer mu.Unlock()
	if downloadURL != want {
		t.Errorf("download requested %s, want %s", downloadURL, want)
	}
	if got := c.DownloadURL(); got != server.URL+want {
		t.Errorf("DownloadURL() = %s, want %s", got, server.URL+want)
	}
}

func TestBadFormatScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, tu.SSEFrames(`{"error": "bad format"}`))
	}))
	defer server.Close()

	path := tu.WriteAudioFile(t, "song.mp3", []byte("fake-audio"))
	file, _ := models.NewAudioFile(path)

	c := newTestController(services.NewProcessingService(services.ProcessingOpts{BaseURL: server.URL}), ControllerOpts{})
	c.SelectFile(file)

	if err := c.StartProcessing(context.Background()); !errors.Is(err, shared.ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}

	s := c.Snapshot()
	if s.ErrorMessage != "bad format" || s.DisplayedProgress != 0 || s.UploadInProgress || s.ProcessingInProgress {
		t.Errorf("unexpected session %+v", s)
	}
}
