package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/annihilator/internal/formatter"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/desertthunder/annihilator/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Process uploads a file, logs streamed progress, and prints a report of the finished session.
//
// With --download the result is saved to the output directory; with --play it is played once processing completes.
func (r *Runner) Process(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file path is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	file, err := models.NewAudioFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	dir := r.outputDir(cmd)
	ctrl := r.newController()
	ctrl.SelectFile(file)

	updates := make(chan tasks.ProgressUpdate, 64)
	ctrl.Subscribe(updates)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.logProgress(updates)
	}()

	r.logger.Info("uploading", "file", file.Name, "size", shared.FormatBytes(file.Size))
	procErr := ctrl.StartProcessing(ctx)
	ctrl.Subscribe(nil)
	close(updates)
	<-done

	var savedPath string
	if procErr == nil && cmd.Bool("download") {
		if savedPath, err = ctrl.DownloadResult(ctx, dir); err != nil {
			return err
		}
		r.logger.Info("saved result", "path", savedPath)
	}

	report := formatter.NewReport(ctrl.Snapshot(), ctrl.DownloadURL(), savedPath)
	if err := r.emitReport(cmd, report, format, dir); err != nil {
		return err
	}

	if procErr != nil {
		return procErr
	}

	if cmd.Bool("play") {
		return r.play(ctx, ctrl.Snapshot().ResultToken)
	}
	return nil
}

// logProgress logs each update until updates is closed. Simulated steps are logged at debug level.
func (r *Runner) logProgress(updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		kv := []any{"state", u.State, "progress", u.Progress}
		if u.Message != "" {
			kv = append(kv, "message", u.Message)
		}
		if u.Simulated {
			r.logger.Debug("progress", kv...)
			continue
		}
		r.logger.Info("progress", kv...)
	}
}

func (r *Runner) emitReport(cmd *cli.Command, report formatter.Report, format formatter.Format, dir string) error {
	if cmd.Bool("save-report") {
		path, err := formatter.WriteReport(report, format, dir)
		if err != nil {
			return err
		}
		r.logger.Info("saved report", "path", path)
		return nil
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	return r.write(data)
}

// Download saves the processed file identified by the token argument, or opens its URL in the browser.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		return fmt.Errorf("%w: token is required", shared.ErrMissingArgument)
	}

	if cmd.Bool("browser") {
		url := r.processing.DownloadURL(token)
		r.logger.Info("opening download in browser", "url", url)
		return r.openURL(url)
	}

	path, err := tasks.SaveResult(ctx, r.processing, token, cmd.String("name"), r.outputDir(cmd), r.logger)
	if err != nil {
		return err
	}
	return r.writePlainln("%s", path)
}

// Play streams the processed file identified by the token argument through the configured player.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		return fmt.Errorf("%w: token is required", shared.ErrMissingArgument)
	}
	return r.play(ctx, token)
}

func (r *Runner) play(ctx context.Context, token string) error {
	if token == "" {
		return shared.ErrNoResult
	}

	url := r.processing.DownloadURL(token)
	r.logger.Info("playing", "url", url)
	if err := r.player.Wait(ctx, url); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) outputDir(cmd *cli.Command) string {
	if dir := cmd.String("output"); dir != "" {
		return dir
	}
	if r.config.Download.Dir != "" {
		return r.config.Download.Dir
	}
	return "."
}
