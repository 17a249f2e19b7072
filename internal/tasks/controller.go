package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/services"
	"github.com/desertthunder/annihilator/internal/shared"
)

const (
	// SimulatedCeiling is the highest value the simulator will display.
	SimulatedCeiling = 99

	defaultStartProgress = 10
	fallbackDownloadName = "audio"
)

// Processor submits files to the separation service and fetches results.
//
// Implemented by [services.ProcessingService].
type Processor interface {
	Submit(ctx context.Context, file models.AudioFile) (*services.EventStream, error)
	DownloadURL(token string) string
	Download(ctx context.Context, token string, w io.Writer) (int64, error)
}

// Player plays a remote audio URL. done is called once when playback ends on its own or fails after starting.
type Player interface {
	Play(ctx context.Context, url string, done func(error)) error
	Stop() error
}

// ControllerOpts configures a [Controller].
type ControllerOpts struct {
	Processor     Processor
	Player        Player // Optional; playback fails with [shared.ErrPlayback] without one
	Logger        *log.Logger
	StartProgress int           // Progress shown as soon as an upload starts; values outside 1-99 fall back to 10
	SimInterval   time.Duration // <= 0 disables simulated progress
	SimStopAfter  time.Duration
	IdleTimeout   time.Duration    // Longest wait between stream events; <= 0 waits forever
	Clock         func() time.Time // Defaults to time.Now
}

// Controller owns one [models.UploadSession] and serialises every mutation of it.
type Controller struct {
	mu      sync.Mutex
	session models.UploadSession
	cancel  context.CancelFunc
	playGen uint64
	notify  chan<- ProgressUpdate

	processor     Processor
	player        Player
	logger        *log.Logger
	sim           *Simulator
	startProgress int
	idleTimeout   time.Duration
	now           func() time.Time
}

// NewController creates a [Controller] with an empty session.
func NewController(opts ControllerOpts) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.StartProgress <= 0 || opts.StartProgress > SimulatedCeiling {
		opts.StartProgress = defaultStartProgress
	}

	c := &Controller{
		processor:     opts.Processor,
		player:        opts.Player,
		logger:        opts.Logger,
		startProgress: opts.StartProgress,
		idleTimeout:   opts.IdleTimeout,
		now:           opts.Clock,
	}
	c.sim = NewSimulator(opts.SimInterval, opts.SimStopAfter, c.simulatedTick)
	return c
}

// NewControllerFromConfig creates a [Controller] using the simulator and api sections of cfg.
func NewControllerFromConfig(cfg *shared.Config, processor Processor, player Player, logger *log.Logger) *Controller {
	return NewController(ControllerOpts{
		Processor:     processor,
		Player:        player,
		Logger:        logger,
		StartProgress: cfg.Simulator.StartProgress,
		SimInterval:   cfg.Simulator.Interval(),
		SimStopAfter:  cfg.Simulator.StopAfter(),
		IdleTimeout:   cfg.API.IdleTimeout(),
	})
}

// Subscribe registers ch to receive progress updates. Updates are dropped when ch is not ready; a nil ch unsubscribes.
func (c *Controller) Subscribe(ch chan<- ProgressUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = ch
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() models.UploadSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// SimulatorRunning reports whether simulated progress is currently scheduled.
func (c *Controller) SimulatorRunning() bool {
	return c.sim.Running()
}

// SelectFile replaces the selected file and returns the session to idle, abandoning any in-flight work.
func (c *Controller) SelectFile(file models.AudioFile) {
	c.reset(&file)
}

// RemoveFile resets the session to its defaults, abandoning any in-flight work and stopping playback.
func (c *Controller) RemoveFile() {
	c.reset(nil)
}

func (c *Controller) reset(file *models.AudioFile) {
	c.mu.Lock()
	cancel := c.cancel
	playing := c.session.IsPlaying
	c.cancel = nil
	c.playGen++
	c.sim.Stop()
	c.session = models.UploadSession{SelectedFile: file}
	c.publishLocked(resetUpdate(c.session))
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if playing {
		c.stopPlayer()
	}
}

// StartProcessing uploads the selected file and applies stream events until the session ends.
//
// It is a no-op returning [shared.ErrNoFileSelected] without a file and [shared.ErrSessionBusy] while a session is active.
// Connection failures wrap [shared.ErrConnection]; server errors, malformed payloads, premature stream ends,
// and idle timeouts wrap [shared.ErrStream]. [shared.ErrAbandoned] means the session was reset mid-flight.
func (c *Controller) StartProcessing(ctx context.Context) error {
	c.mu.Lock()
	if c.session.SelectedFile == nil {
		c.mu.Unlock()
		return shared.ErrNoFileSelected
	}
	if c.session.Active() {
		c.mu.Unlock()
		return shared.ErrSessionBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	playing := c.session.IsPlaying
	file := *c.session.SelectedFile
	id := shared.GenerateID()

	c.playGen++
	c.cancel = cancel
	c.session = models.UploadSession{
		ID:                id,
		SelectedFile:      &file,
		UploadInProgress:  true,
		DisplayedProgress: c.startProgress,
		StartedAt:         c.now(),
	}
	c.sim.Start(id)
	c.publishLocked(startedUpdate(c.session))
	c.mu.Unlock()

	if playing {
		c.stopPlayer()
	}

	c.logger.Info("processing started", "session", id, "file", file.Name, "size", file.Size)

	stream, err := c.processor.Submit(ctx, file)
	if err != nil {
		if !c.current(id) {
			return shared.ErrAbandoned
		}
		if ctx.Err() != nil {
			return c.interrupted(ctx, id)
		}
		c.fail(id, err)
		return err
	}
	defer stream.Close()

	return c.consume(ctx, id, stream)
}

type streamItem struct {
	event models.ProgressEvent
	err   error
}

func (c *Controller) consume(ctx context.Context, id string, stream *services.EventStream) error {
	items := make(chan streamItem)
	go func() {
		for {
			ev, err := stream.Next()
			select {
			case items <- streamItem{event: ev, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var (
		idle  <-chan time.Time
		touch = func() {}
	)
	if c.idleTimeout > 0 {
		timer := time.NewTimer(c.idleTimeout)
		defer timer.Stop()
		idle = timer.C
		touch = func() { timer.Reset(c.idleTimeout) }
	}

	return c.consumeLoop(ctx, id, items, idle, touch)
}

func (c *Controller) consumeLoop(ctx context.Context, id string, items <-chan streamItem, idle <-chan time.Time, touch func()) error {
	for {
		select {
		case <-ctx.Done():
			return c.interrupted(ctx, id)

		case <-idle:
			err := fmt.Errorf("%w: %w: no events for %s", shared.ErrStream, shared.ErrTimeout, c.idleTimeout)
			if !c.fail(id, err) {
				return shared.ErrAbandoned
			}
			return err

		case it := <-items:
			if it.err != nil {
				if ctx.Err() != nil {
					return c.interrupted(ctx, id)
				}
				err := streamFailure(it.err)
				if !c.fail(id, err) {
					return shared.ErrAbandoned
				}
				return err
			}

			terminal, applied := c.ApplyEvent(id, it.event)
			if !applied {
				return shared.ErrAbandoned
			}
			if terminal {
				if it.event.Kind == models.EventError {
					return fmt.Errorf("%w: %s", shared.ErrStream, it.event.Error)
				}
				return nil
			}
			touch()
		}
	}
}

func streamFailure(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: stream closed before a result was received", shared.ErrStream)
	case errors.Is(err, shared.ErrStream):
		return err
	default:
		return fmt.Errorf("%w: %v", shared.ErrStream, err)
	}
}

// interrupted settles a session whose context ended: abandoned sessions are left alone, current ones fail.
func (c *Controller) interrupted(ctx context.Context, id string) error {
	if !c.current(id) {
		return shared.ErrAbandoned
	}
	c.fail(id, errors.New("processing cancelled"))
	return ctx.Err()
}

func (c *Controller) fail(id string, err error) bool {
	_, applied := c.ApplyEvent(id, models.ErrorOf(err.Error()))
	return applied
}

func (c *Controller) current(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID == id
}

// ApplyEvent applies one stream event to the session identified by sessionID.
//
// applied is false when sessionID is stale or the session already ended; terminal is true for result and error events.
func (c *Controller) ApplyEvent(sessionID string, ev models.ProgressEvent) (terminal, applied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sessionID == "" || sessionID != c.session.ID || !c.session.Active() {
		c.logger.Debug("dropping stale event", "session", sessionID, "kind", ev.Kind)
		return false, false
	}

	c.sim.Stop()
	if ev.Message != "" {
		c.session.StatusMessage = ev.Message
	}

	switch ev.Kind {
	case models.EventProgress:
		if ev.Progress >= 50 && c.session.UploadInProgress {
			c.session.UploadInProgress = false
			c.session.ProcessingInProgress = true
		}
		c.session.DisplayedProgress = ev.Progress
		c.publishLocked(progressUpdate(c.session))
		c.logger.Debug("progress", "session", sessionID, "value", ev.Progress, "state", c.session.State())
		return false, true

	case models.EventResult:
		c.session.ResultToken = ev.Result
		c.session.ProcessingElapsedSeconds = int(math.Round(c.now().Sub(c.session.StartedAt).Seconds()))
		c.session.UploadInProgress = false
		c.session.ProcessingInProgress = false
		c.session.DisplayedProgress = 100
		c.cancel = nil
		c.publishLocked(resultUpdate(c.session))
		c.logger.Info("processing complete", "session", sessionID, "token", ev.Result, "elapsed", c.session.ProcessingElapsedSeconds)
		return true, true

	default:
		c.session.ErrorMessage = ev.Error
		c.session.UploadInProgress = false
		c.session.ProcessingInProgress = false
		c.session.DisplayedProgress = 0
		c.cancel = nil
		c.publishLocked(errorUpdate(c.session))
		c.logger.Warn("processing failed", "session", sessionID, "error", ev.Error)
		return true, true
	}
}

func (c *Controller) simulatedTick(sessionID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sessionID != c.session.ID || !c.session.Active() || !c.sim.Active(gen) {
		return
	}
	if c.session.DisplayedProgress >= SimulatedCeiling {
		return
	}
	c.session.DisplayedProgress++
	c.publishLocked(simulatedUpdate(c.session))
}

// TogglePlayback starts playback of the processed file, or stops it when already playing.
func (c *Controller) TogglePlayback(ctx context.Context) error {
	c.mu.Lock()
	if c.session.ResultToken == "" {
		c.mu.Unlock()
		return shared.ErrNoResult
	}

	if c.session.IsPlaying {
		c.playGen++
		c.session.IsPlaying = false
		c.publishLocked(playbackUpdate(c.session))
		c.mu.Unlock()
		return c.stopPlayer()
	}

	if c.player == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no player configured", shared.ErrPlayback)
	}

	c.playGen++
	gen := c.playGen
	url := c.processor.DownloadURL(c.session.ResultToken)
	c.session.IsPlaying = true
	c.publishLocked(playbackUpdate(c.session))
	c.mu.Unlock()

	if err := c.player.Play(ctx, url, func(err error) { c.playbackEnded(gen, err) }); err != nil {
		c.mu.Lock()
		if c.playGen == gen {
			c.session.IsPlaying = false
			c.publishLocked(playbackUpdate(c.session))
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrPlayback, err)
	}

	c.logger.Debug("playback started", "url", url)
	return nil
}

func (c *Controller) playbackEnded(gen uint64, err error) {
	if err != nil {
		c.logger.Warn("playback ended with error", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.playGen || !c.session.IsPlaying {
		return
	}
	c.session.IsPlaying = false
	if err != nil {
		c.publishLocked(playbackFailedUpdate(c.session, err))
		return
	}
	c.publishLocked(playbackUpdate(c.session))
}

func (c *Controller) stopPlayer() error {
	if c.player == nil {
		return nil
	}
	if err := c.player.Stop(); err != nil {
		c.logger.Warn("failed to stop player", "error", err)
		return fmt.Errorf("%w: %v", shared.ErrPlayback, err)
	}
	return nil
}

// DownloadURL returns the URL of the processed file, or "" without a result.
func (c *Controller) DownloadURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.ResultToken == "" {
		return ""
	}
	return c.processor.DownloadURL(c.session.ResultToken)
}

// DownloadResult writes the processed file into dir and returns its path.
func (c *Controller) DownloadResult(ctx context.Context, dir string) (string, error) {
	snap := c.Snapshot()
	if snap.ResultToken == "" {
		return "", shared.ErrNoResult
	}
	return SaveResult(ctx, c.processor, snap.ResultToken, snap.FileName(), dir, c.logger)
}

// DownloadName returns the local filename of the vocals extracted from original.
func DownloadName(original string) string {
	if original == "" {
		original = fallbackDownloadName
	}
	return "vocals_" + original + ".mp3"
}

// SaveResult downloads the file identified by token into dir as [DownloadName] of original.
func SaveResult(ctx context.Context, p Processor, token, original, dir string, logger *log.Logger) (string, error) {
	if token == "" {
		return "", shared.ErrNoResult
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	path := filepath.Join(dir, DownloadName(original))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := p.Download(ctx, token, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	if logger != nil {
		logger.Info("downloaded result", "path", path, "bytes", n)
	}
	return path, nil
}

func (c *Controller) publishLocked(u ProgressUpdate) {
	if c.notify == nil {
		return
	}
	select {
	case c.notify <- u:
	default:
	}
}
