// package formatter renders processing sessions in various formats (plain text, Markdown, JSON, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// Formats lists the supported formats in help order.
var Formats = []Format{Text, JSON, Markdown, CSV}

// ParseFormat validates s as a [Format].
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension used by [WriteReport].
func (f Format) Extension() string {
	switch f {
	case JSON:
		return "json"
	case Markdown:
		return "md"
	case CSV:
		return "csv"
	default:
		return "txt"
	}
}

// Report is the printable summary of a finished session.
type Report struct {
	File           string `json:"file"`
	Size           int64  `json:"size"`
	State          string `json:"state"`
	Progress       int    `json:"progress"`
	ResultToken    string `json:"result_token,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	DownloadURL    string `json:"download_url,omitempty"`
	SavedPath      string `json:"saved_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewReport builds a [Report] from a session snapshot, its download URL, and the path the result was saved to.
func NewReport(session models.UploadSession, downloadURL, savedPath string) Report {
	r := Report{
		File:           session.FileName(),
		State:          session.State().String(),
		Progress:       session.DisplayedProgress,
		ResultToken:    session.ResultToken,
		ElapsedSeconds: session.ProcessingElapsedSeconds,
		DownloadURL:    downloadURL,
		SavedPath:      savedPath,
		Error:          session.ErrorMessage,
	}
	if session.SelectedFile != nil {
		r.Size = session.SelectedFile.Size
	}
	return r
}

// Render converts r to the given format.
func Render(r Report, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return ToJSON(r)
	case Markdown:
		return ToMarkdown(r)
	case CSV:
		return ToCSV(r)
	case Text, "":
		return ToText(r)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ToText converts a Report to plain text format
func ToText(r Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("File: %s (%s)\n", r.File, shared.FormatBytes(r.Size)))
	buf.WriteString(fmt.Sprintf("State: %s\n", r.State))

	if r.Error != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", r.Error))
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("Processing time: %ds\n", r.ElapsedSeconds))
	if r.ResultToken != "" {
		buf.WriteString(fmt.Sprintf("Result: %s\n", r.ResultToken))
	}
	if r.DownloadURL != "" {
		buf.WriteString(fmt.Sprintf("Download: %s\n", r.DownloadURL))
	}
	if r.SavedPath != "" {
		buf.WriteString(fmt.Sprintf("Saved to: %s\n", r.SavedPath))
	}

	return buf.Bytes(), nil
}

// ToMarkdown converts a Report to Markdown format
func ToMarkdown(r Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Vocals: %s\n\n", r.File))
	buf.WriteString(fmt.Sprintf("**State**: %s\n", r.State))
	buf.WriteString(fmt.Sprintf("**Size**: %s\n", shared.FormatBytes(r.Size)))

	if r.Error != "" {
		buf.WriteString(fmt.Sprintf("**Error**: %s\n", r.Error))
		return buf.Bytes(), nil
	}

	buf.WriteString(fmt.Sprintf("**Processing time**: %ds\n\n", r.ElapsedSeconds))

	if r.DownloadURL != "" {
		buf.WriteString(fmt.Sprintf("[Download vocals](%s)\n", r.DownloadURL))
	}
	if r.SavedPath != "" {
		buf.WriteString(fmt.Sprintf("\nSaved to `%s`\n", r.SavedPath))
	}

	return buf.Bytes(), nil
}

// ToJSON converts a Report to indented JSON
func ToJSON(r Report) ([]byte, error) {
	data, err := sonic.ConfigStd.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ToCSV converts a Report to CSV format with columns: File, State, Progress, Token, Elapsed, Download, Error
func ToCSV(r Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"File", "State", "Progress", "Token", "Elapsed", "Download", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	record := []string{
		r.File,
		r.State,
		strconv.Itoa(r.Progress),
		r.ResultToken,
		strconv.Itoa(r.ElapsedSeconds),
		r.DownloadURL,
		r.Error,
	}
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("failed to write CSV record: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReport renders r and writes it to dir as "<file>_report.<ext>", returning the path written.
func WriteReport(r Report, format Format, dir string) (string, error) {
	data, err := Render(r, format)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := r.File
	if name == "" {
		name = "session"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_report.%s", strings.TrimSuffix(name, filepath.Ext(name)), format.Extension()))

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
