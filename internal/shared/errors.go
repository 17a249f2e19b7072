package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Processing flow errors
	ErrConnection     = fmt.Errorf("connection error")
	ErrStream         = fmt.Errorf("stream error")
	ErrPlayback       = fmt.Errorf("playback error")
	ErrNoFileSelected = fmt.Errorf("no file selected")
	ErrSessionBusy    = fmt.Errorf("upload or processing already in progress")
	ErrNoResult       = fmt.Errorf("no processed result available")
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrAbandoned      = fmt.Errorf("session abandoned")

	// API and service errors
	ErrAPIRequest     = fmt.Errorf("API request failed")
	ErrResultNotFound = fmt.Errorf("processed file not found")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidTheme    = fmt.Errorf("invalid theme")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
