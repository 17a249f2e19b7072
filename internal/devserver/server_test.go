package devserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/services"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/desertthunder/annihilator/internal/tasks"
	tu "github.com/desertthunder/annihilator/internal/testing"
)

const (
	processingPath = "/api/v1/processing/spleeter-sse"
	downloadPath   = "/api/v1/files/download-processed-file/"
)

func newTestServer(t *testing.T, opts Opts) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func uploadRequest(t *testing.T, url string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "song.mp3")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(content)
	mw.WriteField("filename", "song.mp3")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPlan(t *testing.T) {
	t.Run("Milestones Then Result", func(t *testing.T) {
		events := plan("tok", 10)

		var values []int
		for _, ev := range events[:len(events)-1] {
			values = append(values, ev.Progress)
		}
		want := []int{15, 30, 50, 80, 90}
		if len(values) != len(want) {
			t.Fatalf("expected %v, got %v", want, values)
		}
		for i := range want {
			if values[i] != want[i] {
				t.Errorf("milestone %d = %d, want %d", i, values[i], want[i])
			}
		}

		last := events[len(events)-1]
		if last.Kind != models.EventResult || last.Result != "tok" {
			t.Errorf("expected result event, got %+v", last)
		}
	})

	t.Run("Empty Upload Fails", func(t *testing.T) {
		events := plan("tok", 0)
		last := events[len(events)-1]
		if last.Kind != models.EventError {
			t.Errorf("expected error event, got %+v", last)
		}
	})
}

func TestServer(t *testing.T) {
	t.Run("Process Streams Events", func(t *testing.T) {
		srv := New(Opts{})
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, uploadRequest(t, processingPath, []byte("audio")))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
			t.Errorf("expected event stream content type, got %s", ct)
		}

		body := rec.Body.String()
		if !strings.Contains(body, `data: {"progress":15,"message":"Preparing work"}`) {
			t.Errorf("missing first milestone, got:\n%s", body)
		}
		if !strings.HasSuffix(body, "event: close\n\n") {
			t.Errorf("expected close record at end, got:\n%s", body)
		}
	})

	t.Run("Process Requires File", func(t *testing.T) {
		srv := New(Opts{})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, processingPath, strings.NewReader(""))
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("Download Unknown Token", func(t *testing.T) {
		srv := New(Opts{})
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, downloadPath+"?processed-filename=nope&result-filename=vocals.mp3", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Download Missing Parameters", func(t *testing.T) {
		srv := New(Opts{})
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, downloadPath+"?processed-filename=tok", nil))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		srv := New(Opts{RateLimit: 0.001, Burst: 1})

		first := httptest.NewRecorder()
		srv.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, downloadPath+"?processed-filename=a&result-filename=vocals.mp3", nil))
		if first.Code == http.StatusTooManyRequests {
			t.Fatal("first request must not be limited")
		}

		second := httptest.NewRecorder()
		srv.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, downloadPath+"?processed-filename=a&result-filename=vocals.mp3", nil))
		if second.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", second.Code)
		}
	})

	t.Run("Concurrent First Requests Share One Bucket", func(t *testing.T) {
		srv := New(Opts{RateLimit: 0.001, Burst: 1})
		handler := srv.Handler()

		const clients = 16
		codes := make(chan int, clients)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for range clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, downloadPath+"?processed-filename=a&result-filename=vocals.mp3", nil))
				codes <- rec.Code
			}()
		}
		close(start)
		wg.Wait()
		close(codes)

		allowed := 0
		for code := range codes {
			if code != http.StatusTooManyRequests {
				allowed++
			}
		}
		if allowed != 1 {
			t.Errorf("expected exactly 1 request through the limiter, got %d", allowed)
		}
	})

	t.Run("Process Stops When Client Leaves", func(t *testing.T) {
		srv := New(Opts{StepDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		req := uploadRequest(t, processingPath, []byte("audio")).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			srv.Handler().ServeHTTP(rec, req)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler kept streaming after the request was cancelled")
		}
	})

	t.Run("Client Round Trip", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		path := tu.WriteAudioFile(t, "song.mp3", []byte("fake-vocals"))
		file, err := models.NewAudioFile(path)
		if err != nil {
			t.Fatalf("NewAudioFile() error = %v", err)
		}

		proc := services.NewProcessingService(services.ProcessingOpts{BaseURL: ts.URL})
		stream, err := proc.Submit(context.Background(), file)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		defer stream.Close()

		var (
			progress []int
			token    string
		)
		for {
			ev, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if ev.Kind == models.EventResult {
				token = ev.Result
				continue
			}
			progress = append(progress, ev.Progress)
		}

		if len(progress) != 5 || progress[2] != 50 {
			t.Errorf("unexpected progress sequence %v", progress)
		}
		if token == "" {
			t.Fatal("expected a result token")
		}

		var buf bytes.Buffer
		if _, err := proc.Download(context.Background(), token, &buf); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if buf.String() != "fake-vocals" {
			t.Errorf("unexpected download %q", buf.String())
		}
	})

	t.Run("Controller End To End", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		path := tu.WriteAudioFile(t, "song.mp3", []byte("fake-vocals"))
		file, _ := models.NewAudioFile(path)

		proc := services.NewProcessingService(services.ProcessingOpts{BaseURL: ts.URL})
		ctrl := tasks.NewController(tasks.ControllerOpts{Processor: proc})
		ctrl.SelectFile(file)

		if err := ctrl.StartProcessing(context.Background()); err != nil {
			t.Fatalf("StartProcessing() error = %v", err)
		}
		if s := ctrl.Snapshot(); s.State() != models.Completed || s.DisplayedProgress != 100 {
			t.Fatalf("unexpected session %+v", s)
		}
		if got := ctrl.Snapshot().StatusMessage; got != "Processing complete" {
			t.Errorf("expected status message from result, got %q", got)
		}

		saved, err := ctrl.DownloadResult(context.Background(), t.TempDir())
		if err != nil {
			t.Fatalf("DownloadResult() error = %v", err)
		}
		if got := tu.MustReadFile(t, saved); got != "fake-vocals" {
			t.Errorf("unexpected saved content %q", got)
		}
	})

	t.Run("Controller Empty Upload Fails", func(t *testing.T) {
		_, ts := newTestServer(t, Opts{})
		path := tu.WriteAudioFile(t, "empty.mp3", nil)
		file, _ := models.NewAudioFile(path)

		ctrl := tasks.NewController(tasks.ControllerOpts{Processor: services.NewProcessingService(services.ProcessingOpts{BaseURL: ts.URL})})
		ctrl.SelectFile(file)

		if err := ctrl.StartProcessing(context.Background()); !errors.Is(err, shared.ErrStream) {
			t.Fatalf("expected ErrStream, got %v", err)
		}
		if s := ctrl.Snapshot(); s.ErrorMessage != "Spleeter processing failed" || s.DisplayedProgress != 0 {
			t.Errorf("unexpected session %+v", s)
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig()
	srv := NewFromConfig(cfg, false, nil)

	if srv.opts.Addr != "127.0.0.1:8000" {
		t.Errorf("unexpected addr %s", srv.opts.Addr)
	}
	if srv.opts.ProcessingPath != processingPath || srv.opts.DownloadPath != downloadPath {
		t.Errorf("unexpected paths %+v", srv.opts)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before Start should be a no-op, got %v", err)
	}
}
