package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type progressType string

const (
	progressStatus        progressType = "status"
	progressCheck         progressType = "check"
	progressDownloadStart progressType = "download_start"
	progressUpdated       progressType = "updated"
	progressError         progressType = "error"
	progressSummary       progressType = "summary"
	progressDone          progressType = "done"
)

// UpdateProgressMsg is one step reported by the mod update worker.
type UpdateProgressMsg struct {
	Type    progressType
	Message string
	ModName string
	ModID   string
	Version string
}

// UpdateModel controls the UI for the mods update command
type UpdateModel struct {
	spinner      spinner.Model
	progressChan chan UpdateProgressMsg
	run          func(chan<- UpdateProgressMsg)

	status      string
	downloading []string
	completed   []string
	errors      []string
	summary     string
	done        bool

	totalChecked int
	totalUpdated int
}

func initialUpdateModel(run func(chan<- UpdateProgressMsg)) UpdateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return UpdateModel{
		spinner:      s,
		progressChan: make(chan UpdateProgressMsg, 100),
		run:          run,
		status:       "Initializing...",
	}
}

func (m UpdateModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startUpdate(),
		m.waitForActivity(),
	)
}

func (m UpdateModel) startUpdate() tea.Cmd {
	return func() tea.Msg {
		go func() {
			defer close(m.progressChan)
			m.run(m.progressChan)
		}()
		return nil
	}
}

func (m UpdateModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return UpdateProgressMsg{Type: progressDone}
		}
		return msg
	}
}

func (m UpdateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The worker keeps running on ctrl+c; the installation stays guarded
		// until it returns.
		if msg.String() == "q" || msg.String() == "ctrl+c" || m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case UpdateProgressMsg:
		m.apply(msg)
		if m.done {
			return m, tea.Quit
		}
		return m, m.waitForActivity()
	}

	return m, nil
}

func (m *UpdateModel) apply(msg UpdateProgressMsg) {
	switch msg.Type {
	case progressDone:
		m.done = true
		m.status = "Finished"
	case progressStatus:
		m.status = msg.Message
	case progressCheck:
		m.status = fmt.Sprintf("Checking %s...", msg.ModName)
		m.totalChecked++
	case progressDownloadStart:
		m.downloading = append(m.downloading, downloadLabel(msg))
	case progressUpdated:
		m.downloading = without(m.downloading, downloadLabel(msg))
		m.completed = append(m.completed, fmt.Sprintf("Updated %s to %s", msg.ModName, msg.Version))
		m.totalUpdated++
	case progressError:
		m.downloading = without(m.downloading, downloadLabel(msg))
		name := msg.ModName
		if name == "" {
			name = "update"
		}
		m.errors = append(m.errors, fmt.Sprintf("%s: %s", name, msg.Message))
	case progressSummary:
		m.summary = msg.Message
	}
}

func downloadLabel(msg UpdateProgressMsg) string {
	return fmt.Sprintf("%s (%s)", msg.ModName, msg.Version)
}

func without(list []string, item string) []string {
	for i, v := range list {
		if v == item {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (m UpdateModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n %s %s\n\n", symbol, m.status)

	section := func(title string, color string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(title) + "\n")
		for _, it := range items {
			fmt.Fprintf(&b, "  • %s\n", it)
		}
		b.WriteString("\n")
	}
	section("Downloading:", "12", m.downloading)
	section("Errors:", "9", m.errors)

	completed := m.completed
	if len(completed) > 5 && !m.done {
		completed = completed[len(completed)-5:]
	}
	section("Completed:", "10", completed)

	if m.done && m.summary != "" {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(m.summary) + "\n")
	}
	return b.String()
}
