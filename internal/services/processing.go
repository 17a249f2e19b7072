package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultProcessingPath = "/api/v1/processing/spleeter-sse"
	defaultDownloadPath   = "/api/v1/files/download-processed-file/"
	defaultResultFilename = "vocals.mp3"
)

// ProcessingOpts configures a [ProcessingService].
type ProcessingOpts struct {
	BaseURL        string
	ProcessingPath string
	DownloadPath   string
	ResultFilename string
	RateLimit      float64 // Requests per second; <= 0 disables limiting
	HTTPClient     *http.Client
	Logger         *log.Logger
}

// ProcessingService talks to the separation API: it submits files and downloads results.
type ProcessingService struct {
	baseURL        string
	processingPath string
	downloadPath   string
	resultFilename string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *log.Logger
}

// NewProcessingService creates a new [ProcessingService], filling unset options with the public API defaults.
func NewProcessingService(opts ProcessingOpts) *ProcessingService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ProcessingPath == "" {
		opts.ProcessingPath = defaultProcessingPath
	}
	if opts.DownloadPath == "" {
		opts.DownloadPath = defaultDownloadPath
	}
	if opts.ResultFilename == "" {
		opts.ResultFilename = defaultResultFilename
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &ProcessingService{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		processingPath: opts.ProcessingPath,
		downloadPath:   opts.DownloadPath,
		resultFilename: opts.ResultFilename,
		httpClient:     opts.HTTPClient,
		limiter:        limiter,
		logger:         opts.Logger,
	}
}

// NewProcessingServiceFromConfig builds a [ProcessingService] from the api section of cfg.
func NewProcessingServiceFromConfig(cfg shared.APIConfig, client *http.Client, logger *log.Logger) *ProcessingService {
	return NewProcessingService(ProcessingOpts{
		BaseURL:        cfg.BaseURL,
		ProcessingPath: cfg.ProcessingPath,
		DownloadPath:   cfg.DownloadPath,
		ResultFilename: cfg.ResultFilename,
		RateLimit:      cfg.RateLimit,
		HTTPClient:     client,
		Logger:         logger,
	})
}

func (s *ProcessingService) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Submit uploads file and returns the event stream of the processing response.
//
// Fails with [shared.ErrConnection] when the endpoint is unreachable or answers with a non-2xx status.
func (s *ProcessingService) Submit(ctx context.Context, file models.AudioFile) (*EventStream, error) {
	if _, err := os.Stat(file.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := s.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrConnection, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUpload(mw, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+s.processingPath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")

	s.logger.Debug("submitting file for processing", "file", file.Name, "size", file.Size, "url", req.URL.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		pr.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: server returned %s: %s", shared.ErrConnection, resp.Status, strings.TrimSpace(string(detail)))
	}

	s.logger.Debug("processing stream opened", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))
	return NewEventStream(resp.Body), nil
}

// writeUpload writes the multipart form fields in the order the API expects: file, then filename.
func writeUpload(mw *multipart.Writer, file models.AudioFile) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to stream %s: %w", file.Name, err)
	}

	if err := mw.WriteField("filename", file.Name); err != nil {
		return err
	}

	return mw.Close()
}

// DownloadURL builds the download URL of the processed file identified by token.
func (s *ProcessingService) DownloadURL(token string) string {
	q := url.Values{}
	q.Set("processed-filename", token)
	q.Set("result-filename", s.resultFilename)
	return s.baseURL + s.downloadPath + "?" + q.Encode()
}

// Download streams the processed file identified by token into w and returns the number of bytes written.
func (s *ProcessingService) Download(ctx context.Context, token string, w io.Writer) (int64, error) {
	if token == "" {
		return 0, shared.ErrNoResult
	}
	if err := s.wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.DownloadURL(token), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: download failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", shared.ErrResultNotFound, token)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("%w: download returned %s", shared.ErrAPIRequest, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.Debug("downloaded processed file", "token", token, "bytes", n)
	return n, nil
}
