package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
)

// ViewState represents the current view in the generation TUI.
type ViewState int

const (
	GenerateView ViewState = iota
	ResultView
)

// progressBuffer absorbs bursts of updates; the engine drops updates rather than block.
const progressBuffer = 64

// Model represents the generation TUI state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	gen          tasks.Generator
	req          models.GenerationRequest
	width        int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	done         chan models.Outcome
	progress     tasks.ProgressUpdate
	outcome      models.Outcome
	finished     bool
	notice       string
	opener       func(urls ...string) error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that runs req through gen once started.
func NewModel(ctx context.Context, gen tasks.Generator, req models.GenerationRequest) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    GenerateView,
		gen:     gen,
		req:     req,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		opener:  shared.OpenBrowser,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Outcome returns the final outcome and whether the generation finished.
func (m *Model) Outcome() (models.Outcome, bool) {
	return m.outcome, m.finished
}

// Init starts the spinner and the generation.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startGeneration())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), 60)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view != GenerateView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgGenerationComplete:
			m.outcome = msg.data.(models.Outcome)
			m.finished = true
			m.view = ResultView
			return m, nil
		case MsgBrowserOpened:
			if err, _ := msg.data.(error); err != nil {
				m.notice = Failure(fmt.Sprintf("Could not open browser: %v", err))
			} else {
				m.notice = Hint("Opened in browser")
			}
			return m, nil
		}
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case m.view == ResultView && key.Matches(msg, m.keys.open):
		if !m.outcome.OK() {
			return m, nil
		}
		return m, m.openResults(m.outcome.ImageURLs)
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case GenerateView:
		return m.renderGenerate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// startGeneration runs the generator in the background, feeding progress through a channel.
//
// The outcome is sent before the channel closes so the reader always finds it.
func (m *Model) startGeneration() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan models.Outcome, 1)

	go func() {
		var out models.Outcome
		if m.gen == nil {
			out = models.Failed(fmt.Errorf("%w: generator not initialized", shared.ErrServiceUnavailable), "", 0)
		} else {
			out = m.gen.Run(m.ctx, m.req, m.progressChan)
		}
		m.done <- out
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return generationCompleteMsg(<-m.done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) openResults(urls []string) tea.Cmd {
	opener := m.opener
	return func() tea.Msg {
		return browserOpenedMsg(opener(urls...))
	}
}

// pollPercent is the share of the attempt budget used so far.
func (m *Model) pollPercent() float64 {
	if m.progress.Phase != tasks.Poll || m.progress.Total <= 0 {
		return 0
	}
	return float64(m.progress.Step) / float64(m.progress.Total)
}

func (m *Model) renderGenerate() string {
	title := styles.title.Render(fmt.Sprintf("Generating (%s)", m.req.Mode))

	var phase string
	switch m.progress.Phase {
	case tasks.Validate:
		phase = "Validating request..."
	case tasks.Submit:
		phase = "Submitting task..."
	case tasks.Poll:
		phase = fmt.Sprintf("Waiting for task (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Complete:
		phase = "Finishing..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n", title, m.spinner.View(), phase)
	if m.progress.Message != "" {
		fmt.Fprintf(&b, "%s\n", Hint(m.progress.Message))
	}
	fmt.Fprintf(&b, "\n%s\n\n%s", m.bar.ViewAs(m.pollPercent()), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder
	out := m.outcome
	helpKeys := []key.Binding{m.keys.quit}

	switch {
	case out.OK():
		b.WriteString(Success(fmt.Sprintf("✓ Generated %d image(s)", len(out.ImageURLs))))
		b.WriteString("\n")
		for _, u := range out.ImageURLs {
			fmt.Fprintf(&b, "\n  • %s", u)
		}
		b.WriteString("\n")
		helpKeys = []key.Binding{m.keys.open, m.keys.quit}
	case out.Kind == models.OutcomeTimeout:
		b.WriteString(Warn(fmt.Sprintf("⧗ %s", out.Error())))
		b.WriteString("\n\nThe task may still finish; check it later with `animx task status`.\n")
	default:
		b.WriteString(Failure(fmt.Sprintf("✗ Generation failed: %s", out.Error())))
		b.WriteString("\n")
		if errors.Is(out.Err, shared.ErrMissingCredentials) {
			b.WriteString("\nSet DASHSCOPE_API_KEY or provider.api_key in the config file.\n")
		}
	}

	if out.TaskID != "" {
		fmt.Fprintf(&b, "\n%s\n", Hint(fmt.Sprintf("task %s • %d status check(s)", out.TaskID, out.Attempts)))
	}
	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s\n", m.notice)
	}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}
