package tasks

import (
	"fmt"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
)

// ProgressUpdate represents a change of the session during processing.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	SessionID string       // Session the update belongs to
	State     models.State // Session state after the change
	Progress  int          // Displayed progress, 0-100
	Message   string       // Human-readable message for display
	Simulated bool         // True when the progress came from the simulator
	Err       error        // Set when playback ended with a failure; wraps [shared.ErrPlayback]
}

func startedUpdate(s models.UploadSession) ProgressUpdate {
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   fmt.Sprintf("Uploading %s...", s.FileName()),
	}
}

func simulatedUpdate(s models.UploadSession) ProgressUpdate {
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   phaseMessage(s),
		Simulated: true,
	}
}

func progressUpdate(s models.UploadSession) ProgressUpdate {
	msg := s.StatusMessage
	if msg == "" {
		msg = phaseMessage(s)
	}
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   msg,
	}
}

func resultUpdate(s models.UploadSession) ProgressUpdate {
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   fmt.Sprintf("Processing complete in %ds", s.ProcessingElapsedSeconds),
	}
}

func errorUpdate(s models.UploadSession) ProgressUpdate {
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   fmt.Sprintf("Processing failed: %s", s.ErrorMessage),
	}
}

func resetUpdate(s models.UploadSession) ProgressUpdate {
	msg := "No file selected"
	if s.HasFile() {
		msg = fmt.Sprintf("Selected %s", s.FileName())
	}
	return ProgressUpdate{SessionID: s.ID, State: s.State(), Message: msg}
}

func playbackUpdate(s models.UploadSession) ProgressUpdate {
	msg := "Playback stopped"
	if s.IsPlaying {
		msg = "Playing vocals..."
	}
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   msg,
	}
}

func playbackFailedUpdate(s models.UploadSession, err error) ProgressUpdate {
	return ProgressUpdate{
		SessionID: s.ID,
		State:     s.State(),
		Progress:  s.DisplayedProgress,
		Message:   fmt.Sprintf("Playback failed: %v", err),
		Err:       fmt.Errorf("%w: %v", shared.ErrPlayback, err),
	}
}

func phaseMessage(s models.UploadSession) string {
	if s.ProcessingInProgress {
		return "Separating vocals..."
	}
	return "Uploading..."
}
