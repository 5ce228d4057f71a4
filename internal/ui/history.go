package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
)

const (
	HistoryListView ViewState = iota + 10
	HistoryDetailView
)

var _ list.Item = recordItem{}

// recordItem wraps [models.GenerationRecord] to implement [list.Item].
type recordItem struct {
	record *models.GenerationRecord
}

func (i recordItem) FilterValue() string { return i.record.Prompt }
func (i recordItem) Title() string {
	return fmt.Sprintf("#%d %s", i.record.Sequence, i.record.Prompt)
}
func (i recordItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %s", i.record.Mode, i.record.Status, i.record.CreatedAt.Local().Format(time.DateTime))
	if n := len(i.record.ResultURLs); n > 0 {
		desc = fmt.Sprintf("%s • %d image(s)", desc, n)
	}
	return desc
}

// HistoryModel browses stored generations.
type HistoryModel struct {
	view     ViewState
	list     list.Model
	selected *models.GenerationRecord
	notice   string
	opener   func(urls ...string) error
	help     help.Model
	keys     keyMap
}

// NewHistoryModel lists records in the order given, newest first by convention.
func NewHistoryModel(records []*models.GenerationRecord) *HistoryModel {
	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = recordItem{record: rec}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Generation History"
	l.Styles.Title = styles.title.UnsetMarginBottom()

	return &HistoryModel{
		view:   HistoryListView,
		list:   l,
		opener: shared.OpenBrowser,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

func (m *HistoryModel) Init() tea.Cmd { return nil }

// Update handles incoming messages and updates the model state.
func (m *HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case HistoryListView:
			return m.handleListKeys(msg)
		case HistoryDetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		if msg.kind == MsgBrowserOpened {
			if err, _ := msg.data.(error); err != nil {
				m.notice = Failure(fmt.Sprintf("Could not open browser: %v", err))
			} else {
				m.notice = Hint("Opened in browser")
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *HistoryModel) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.list.SelectedItem().(recordItem); ok {
			m.selected = item.record
			m.notice = ""
			m.view = HistoryDetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *HistoryModel) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = HistoryListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.open):
		if m.selected == nil || len(m.selected.ResultURLs) == 0 {
			return m, nil
		}
		urls := m.selected.ResultURLs
		opener := m.opener
		return m, func() tea.Msg { return browserOpenedMsg(opener(urls...)) }
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *HistoryModel) View() string {
	if m.view == HistoryDetailView && m.selected != nil {
		return m.renderDetail()
	}
	return m.list.View()
}

func (m *HistoryModel) renderDetail() string {
	rec := m.selected
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("#%d %s", rec.Sequence, rec.Prompt)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Mode:     %s\n", rec.Mode)
	fmt.Fprintf(&b, "Status:   %s\n", OutcomeStyle(rec.Status == models.OutcomeSuccess, rec.Status == models.OutcomeTimeout, rec.Status.String()))
	fmt.Fprintf(&b, "Created:  %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Checks:   %d\n", rec.Attempts)
	if rec.TaskID != "" {
		fmt.Fprintf(&b, "Task:     %s\n", rec.TaskID)
	}
	if rec.ImageRef != "" {
		fmt.Fprintf(&b, "Source:   %s\n", rec.ImageRef)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", Failure(rec.Error))
	}
	for _, u := range rec.ResultURLs {
		fmt.Fprintf(&b, "\n  • %s", u)
	}
	if len(rec.ResultURLs) > 0 {
		b.WriteString("\n")
	}
	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s\n", m.notice)
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	if len(rec.ResultURLs) > 0 {
		helpKeys = []key.Binding{m.keys.open, m.keys.back, m.keys.quit}
	}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}
