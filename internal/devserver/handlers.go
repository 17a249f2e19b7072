package devserver

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/gin-gonic/gin"
)

// milestones mirror the progress values the real service reports while separating.
var milestones = []models.ProgressEvent{
	models.ProgressOf(15, "Preparing work"),
	models.ProgressOf(30, "File received, starting processing"),
	models.ProgressOf(50, "Processing in progress"),
	models.ProgressOf(80, "Processing completed"),
	models.ProgressOf(90, "Files found"),
}

// plan returns the events streamed for an upload of size bytes.
func plan(token string, size int) []models.ProgressEvent {
	if size == 0 {
		return []models.ProgressEvent{milestones[0], milestones[1], milestones[2], models.ErrorOf("Spleeter processing failed")}
	}

	events := append([]models.ProgressEvent{}, milestones...)
	result := models.ResultOf(token)
	result.Message = "Processing complete"
	return append(events, result)
}

// POST {processing_path} (multipart: file, filename)
func (s *Server) handleProcess(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "file field is required"})
		return
	}

	filename := c.PostForm("filename")
	if filename == "" {
		filename = fh.Filename
	}

	data, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	token := shared.GenerateID()
	events := plan(token, len(data))
	s.logger.Info("processing upload", "filename", filename, "bytes", len(data), "token", token)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for i, ev := range events {
		if i > 0 && s.opts.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.StepDelay):
			}
		}

		if ev.Kind == models.EventResult {
			s.results.Set(resultKey(token, s.opts.ResultFilename), data)
		}

		payload, err := ev.Encode()
		if err != nil {
			s.logger.Error("failed to encode event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			s.logger.Debug("client went away", "token", token, "error", err)
			return
		}
		c.Writer.Flush()
	}

	io.WriteString(c.Writer, "event: close\n\n")
	c.Writer.Flush()
}

// GET {download_path}?processed-filename=<token>&result-filename=<stem>
func (s *Server) handleDownload(c *gin.Context) {
	token := c.Query("processed-filename")
	stem := c.Query("result-filename")
	if token == "" || stem == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "processed-filename and result-filename are required"})
		return
	}

	data := s.results.Get(resultKey(token, stem))
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+stem)
	c.Data(http.StatusOK, "audio/mpeg", data)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
