// Package player plays processed results through an external media player process.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/shared"
)

const defaultCommand = "ffplay"

// CommandPlayer runs one player process at a time, passing the stream URL as the last argument.
type CommandPlayer struct {
	mu      sync.Mutex
	command string
	args    []string
	logger  *log.Logger
	cmd     *exec.Cmd
	gen     uint64
}

// NewCommandPlayer creates a CommandPlayer from the player section of the config.
func NewCommandPlayer(cfg shared.PlayerConfig, logger *log.Logger) *CommandPlayer {
	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &CommandPlayer{command: cfg.Command, args: cfg.Args, logger: logger}
}

// Play stops any current playback and starts the player on url.
//
// done is called once with the exit status when the process ends on its own; it is not called after [CommandPlayer.Stop].
func (p *CommandPlayer) Play(ctx context.Context, url string, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.stopLocked(); err != nil {
		return err
	}

	path, err := exec.LookPath(p.command)
	if err != nil {
		return fmt.Errorf("%w: %s is not installed: %v", shared.ErrPlayback, p.command, err)
	}

	args := append(append([]string{}, p.args...), url)
	cmd := exec.CommandContext(ctx, path, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %v", shared.ErrPlayback, p.command, err)
	}

	p.gen++
	gen := p.gen
	p.cmd = cmd
	p.logger.Debug("player started", "command", p.command, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()

		p.mu.Lock()
		current := p.gen == gen
		if current {
			p.cmd = nil
		}
		p.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			err = fmt.Errorf("%w: %s exited: %v", shared.ErrPlayback, p.command, err)
		}
		if done != nil {
			done(err)
		}
	}()

	return nil
}

// Wait plays url and blocks until playback ends or ctx is cancelled.
func (p *CommandPlayer) Wait(ctx context.Context, url string) error {
	finished := make(chan error, 1)
	if err := p.Play(ctx, url, func(err error) { finished <- err }); err != nil {
		return err
	}

	select {
	case err := <-finished:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

// Stop terminates the running player, if any.
func (p *CommandPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// Playing reports whether a player process is running.
func (p *CommandPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

func (p *CommandPlayer) stopLocked() error {
	if p.cmd == nil {
		return nil
	}

	p.gen++
	cmd := p.cmd
	p.cmd = nil

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%w: failed to stop %s: %v", shared.ErrPlayback, p.command, err)
	}
	p.logger.Debug("player stopped", "command", p.command)
	return nil
}
