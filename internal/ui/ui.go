package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/desertthunder/annihilator/internal/tasks"
)

// AudioTypes are the extensions offered by the file picker.
var AudioTypes = []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SelectView ViewState = iota
	SessionView
	HelpView
)

// ThemeStore loads and persists the theme preference.
type ThemeStore interface {
	Theme() (models.Theme, error)
	Toggle() (models.Theme, error)
}

// Options configures a [Model].
type Options struct {
	StartDir    string       // Directory the file picker opens in
	DownloadDir string       // Directory results are saved to
	Theme       models.Theme // Theme used when the store has none
	Logger      *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	ctrl        *tasks.Controller
	themes      ThemeStore
	theme       models.Theme
	palette     *Palette
	downloadDir string
	logger      *log.Logger

	view     ViewState
	prevView ViewState
	width    int
	height   int

	picker   filepicker.Model
	bar      progress.Model
	spinner  spinner.Model
	features list.Model
	help     help.Model
	keys     keyMap

	updates chan tasks.ProgressUpdate
	session models.UploadSession
	notice  string
	err     error
}

// NewModel creates a new TUI model driving ctrl. themes may be nil, in which case toggles are not persisted.
func NewModel(ctx context.Context, ctrl *tasks.Controller, themes ThemeStore, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	theme := opts.Theme
	if theme == "" {
		theme = models.DefaultTheme
	}
	if themes != nil {
		saved, err := themes.Theme()
		if err != nil {
			opts.Logger.Warn("failed to load theme", "error", err)
		}
		theme = saved
	}

	picker := filepicker.New()
	picker.AllowedTypes = AudioTypes
	picker.AutoHeight = true
	picker.CurrentDirectory = opts.StartDir
	if picker.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			picker.CurrentDirectory = wd
		}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		themes:      themes,
		downloadDir: opts.DownloadDir,
		logger:      opts.Logger,
		view:        SelectView,
		picker:      picker,
		spinner:     sp,
		features:    newFeatureList(60, 14),
		help:        help.New(),
		keys:        newKeyMap(),
		updates:     make(chan tasks.ProgressUpdate, 64),
		session:     ctrl.Snapshot(),
	}
	m.applyTheme(theme)
	if m.session.HasFile() {
		m.view = SessionView
	}

	ctrl.Subscribe(m.updates)
	return m
}

// Init starts the file picker, the spinner, and the progress listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.picker.Init(), m.spinner.Tick, m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		m.features.SetSize(min(msg.Width-4, 80), max(msg.Height-12, 6))
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		if bar, ok := model.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.session = m.ctrl.Snapshot()
		if update.Message != "" && !update.Simulated {
			m.notice = update.Message
		}
		if update.Err != nil {
			m.logger.Warn("playback failed", "error", update.Err)
		}
		return m, tea.Batch(m.bar.SetPercent(float64(m.session.DisplayedProgress)/100), m.waitForProgress())

	case MsgProcessingDone:
		m.session = m.ctrl.Snapshot()
		if err := asError(msg.data); err != nil && !errors.Is(err, shared.ErrAbandoned) {
			m.logger.Warn("processing ended with error", "error", err)
		}
		return m, m.bar.SetPercent(float64(m.session.DisplayedProgress) / 100)

	case MsgPlaybackToggled:
		m.session = m.ctrl.Snapshot()
		if err := asError(msg.data); err != nil {
			m.notice = fmt.Sprintf("Playback failed: %v", err)
			m.logger.Warn("playback failed", "error", err)
		}
		return m, nil

	case MsgDownloadDone:
		res := msg.data.(downloadResult)
		if res.err != nil {
			m.notice = fmt.Sprintf("Download failed: %v", res.err)
			m.logger.Warn("download failed", "error", res.err)
			return m, nil
		}
		m.notice = fmt.Sprintf("Saved to %s", res.path)
		return m, nil

	case MsgThemeSaved:
		res := msg.data.(themeResult)
		if res.err != nil {
			m.notice = fmt.Sprintf("Failed to save theme: %v", res.err)
			m.logger.Warn("failed to save theme", "error", res.err)
		}
		m.applyTheme(res.theme)
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.ctrl.RemoveFile()
		return m, tea.Quit
	case key.Matches(msg, m.keys.info):
		if m.view == HelpView {
			m.view = m.prevView
		} else {
			m.prevView = m.view
			m.view = HelpView
		}
		return m, nil
	case key.Matches(msg, m.keys.theme):
		return m, m.toggleTheme()
	}

	switch m.view {
	case SelectView:
		return m.handleSelectKeys(msg)
	case SessionView:
		return m.handleSessionKeys(msg)
	case HelpView:
		if key.Matches(msg, m.keys.back) {
			m.view = m.prevView
			return m, nil
		}
		var cmd tea.Cmd
		m.features, cmd = m.features.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleSelectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) && m.session.HasFile() {
		m.view = SessionView
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if didSelect, path := m.picker.DidSelectFile(msg); didSelect {
		return m, tea.Batch(cmd, m.selectFile(path))
	}
	if didSelect, path := m.picker.DidSelectDisabledFile(msg); didSelect {
		m.notice = fmt.Sprintf("%s is not a supported audio file", path)
	}
	return m, cmd
}

func (m *Model) handleSessionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.start):
		if m.session.Active() || !m.session.HasFile() {
			return m, nil
		}
		return m, m.startProcessing()
	case key.Matches(msg, m.keys.play):
		if m.session.ResultToken == "" {
			return m, nil
		}
		return m, m.togglePlayback()
	case key.Matches(msg, m.keys.download):
		if m.session.ResultToken == "" {
			return m, nil
		}
		m.notice = "Downloading..."
		return m, m.downloadResult()
	case key.Matches(msg, m.keys.remove):
		m.ctrl.RemoveFile()
		m.session = m.ctrl.Snapshot()
		m.notice = ""
		m.view = SelectView
		return m, m.bar.SetPercent(0)
	case key.Matches(msg, m.keys.open):
		m.view = SelectView
		return m, nil
	}
	return m, nil
}

// selectFile hands path to the controller and switches to the session view.
func (m *Model) selectFile(path string) tea.Cmd {
	file, err := models.NewAudioFile(path)
	if err != nil {
		m.notice = fmt.Sprintf("Cannot open %s: %v", path, err)
		return nil
	}

	m.ctrl.SelectFile(file)
	m.session = m.ctrl.Snapshot()
	m.notice = ""
	m.view = SessionView
	return m.bar.SetPercent(0)
}

func (m *Model) startProcessing() tea.Cmd {
	return func() tea.Msg {
		return processingDoneMsg(m.ctrl.StartProcessing(m.ctx))
	}
}

func (m *Model) togglePlayback() tea.Cmd {
	return func() tea.Msg {
		return playbackToggledMsg(m.ctrl.TogglePlayback(m.ctx))
	}
}

func (m *Model) downloadResult() tea.Cmd {
	return func() tea.Msg {
		path, err := m.ctrl.DownloadResult(m.ctx, m.downloadDir)
		return downloadDoneMsg(path, err)
	}
}

func (m *Model) toggleTheme() tea.Cmd {
	current := m.theme
	themes := m.themes
	return func() tea.Msg {
		if themes == nil {
			return themeSavedMsg(current.Toggle(), nil)
		}
		next, err := themes.Toggle()
		if err != nil {
			return themeSavedMsg(current.Toggle(), err)
		}
		return themeSavedMsg(next, nil)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		return progressUpdateMsg(<-m.updates)
	}
}

func (m *Model) applyTheme(theme models.Theme) {
	m.theme = theme
	m.palette = paletteFor(theme)
	width := m.bar.Width
	if width == 0 {
		width = 40
	}
	m.bar = progress.New(progress.WithGradient(string(m.palette.accent), string(m.palette.success)))
	m.bar.Width = width
	m.spinner.Style = m.palette.warn
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SelectView:
		return m.renderSelect()
	case SessionView:
		return m.renderSession()
	case HelpView:
		return m.renderHelp()
	default:
		return ""
	}
}

func (m *Model) renderSelect() string {
	title := m.palette.title.Render("Annihilator: remove the music from any audio file")
	prompt := "Pick an audio file (MP3, WAV, FLAC, AAC, OGG):"

	var notice string
	if m.notice != "" {
		notice = "\n" + m.palette.warn.Render(m.notice)
	}

	helpKeys := []key.Binding{m.keys.info, m.keys.theme, m.keys.quit}
	if m.session.HasFile() {
		helpKeys = append([]key.Binding{m.keys.back}, helpKeys...)
	}

	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s", title, prompt, m.picker.View(), notice, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSession() string {
	s := m.session
	title := m.palette.title.Render("Annihilator")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("File: %s", m.palette.As(s.FileName(), m.palette.accent)))
	if s.SelectedFile != nil {
		b.WriteString(fmt.Sprintf(" (%s)", shared.FormatBytes(s.SelectedFile.Size)))
	}
	b.WriteString("\n\n")

	var helpKeys []key.Binding
	switch s.State() {
	case models.Idle:
		b.WriteString("Ready to separate vocals.")
		helpKeys = []key.Binding{m.keys.start, m.keys.remove, m.keys.open}

	case models.Uploading, models.Processing:
		label := "Uploading"
		if s.State() == models.Processing {
			label = "Processing"
		}
		b.WriteString(fmt.Sprintf("%s %s %d%%\n", m.spinner.View(), label, s.DisplayedProgress))
		b.WriteString(m.bar.View())
		if s.StatusMessage != "" {
			b.WriteString("\n" + m.palette.help.Render(s.StatusMessage))
		}
		helpKeys = []key.Binding{m.keys.remove}

	case models.Completed:
		b.WriteString(m.palette.ok.Render(fmt.Sprintf("✓ Vocals ready in %ds", s.ProcessingElapsedSeconds)))
		b.WriteString("\n" + m.bar.View())
		status := "Paused"
		if s.IsPlaying {
			status = "Playing"
		}
		b.WriteString(fmt.Sprintf("\n\n%s  %s", status, m.palette.help.Render(m.ctrl.DownloadURL())))
		helpKeys = []key.Binding{m.keys.play, m.keys.download, m.keys.remove, m.keys.open}

	case models.Failed:
		b.WriteString(m.palette.err.Render(fmt.Sprintf("✗ Processing failed: %s", s.ErrorMessage)))
		helpKeys = []key.Binding{m.keys.start, m.keys.remove, m.keys.open}
	}

	if m.notice != "" && s.State() != models.Uploading && s.State() != models.Processing {
		b.WriteString("\n\n" + m.palette.warn.Render(m.notice))
	}

	helpKeys = append(helpKeys, m.keys.info, m.keys.theme, m.keys.quit)
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.palette.card.Render(b.String()), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderHelp() string {
	title := m.palette.title.Render("How it works")
	body := lipgloss.NewStyle().Width(min(max(m.width-4, 40), 80)).Render(howItWorks)
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, body, m.features.View(), m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.info, m.keys.quit}))
}
