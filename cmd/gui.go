package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"vslmanager/guard"
	"vslmanager/lifecycle"
	"vslmanager/state"
	"vslmanager/ui"
)

// guiCmd represents the gui command
var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Open the interactive installation dashboard",
	Long: `Open an interactive dashboard listing every installation with its busy
state. Backups, restores and mod rescans run in the background while the
dashboard stays responsive.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			notes := &ui.RecordingNotifier{}
			a.manager.Notifier = notes
			updates, cancel := a.store.Subscribe()
			defer cancel()

			model := newDashboard(ctx, a.manager, notes, updates)
			_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

// Dashboard is the bubbletea model behind the gui command.
type Dashboard struct {
	ctx     context.Context
	manager *lifecycle.Manager
	notes   *ui.RecordingNotifier
	updates <-chan state.Config

	cfg           state.Config
	selectedIndex int
	busy          map[string][]guard.Reason
	spinner       spinner.Model
	messages      []ui.Note
	quitting      bool
	width         int
}

type configMsg state.Config

type opDoneMsg struct {
	op  string
	err error
}

type refreshTickMsg struct{}

func newDashboard(ctx context.Context, m *lifecycle.Manager, notes *ui.RecordingNotifier, updates <-chan state.Config) Dashboard {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = ui.BusyStyle
	return Dashboard{
		ctx:     ctx,
		manager: m,
		notes:   notes,
		updates: updates,
		cfg:     m.Store.Snapshot(),
		busy:    m.CloseBlockers(),
		spinner: s,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, d.waitForConfig(), tickRefresh())
}

func (d Dashboard) waitForConfig() tea.Cmd {
	if d.updates == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-d.updates
		if !ok {
			return nil
		}
		return configMsg(cfg)
	}
}

func tickRefresh() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// awaitOp turns a background result channel into a message.
func awaitOp(op string, ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: <-ch}
	}
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return d.handleKey(msg)
	case tea.WindowSizeMsg:
		d.width = msg.Width
	case configMsg:
		d.cfg = state.Config(msg)
		if d.selectedIndex >= len(d.cfg.Installations) {
			d.selectedIndex = max(len(d.cfg.Installations)-1, 0)
		}
		return d, d.waitForConfig()
	case refreshTickMsg:
		d.busy = d.manager.CloseBlockers()
		d.pushNotes(d.notes.Drain())
		if d.quitting && d.manager.CanClose() {
			return d, tea.Quit
		}
		return d, tickRefresh()
	case opDoneMsg:
		if msg.err != nil {
			d.pushNotes([]ui.Note{{Message: fmt.Sprintf("%s: %v", msg.op, describeError(msg.err)), Severity: ui.SeverityError}})
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return d, tea.Quit
	case "q":
		if d.manager.CanClose() {
			return d, tea.Quit
		}
		d.quitting = true
		d.pushNotes([]ui.Note{{Message: "Waiting for running operations before closing...", Severity: ui.SeverityWarning}})
	case "up", "k":
		if d.selectedIndex > 0 {
			d.selectedIndex--
		}
	case "down", "j":
		if d.selectedIndex < len(d.cfg.Installations)-1 {
			d.selectedIndex++
		}
	case "b":
		if inst, ok := d.selected(); ok {
			return d, awaitOp("backup", d.manager.CreateBackupAsync(d.ctx, inst.ID))
		}
	case "r":
		if inst, ok := d.selected(); ok {
			return d, awaitOp("scan", d.manager.RefreshModsAsync(d.ctx, inst.ID))
		}
	case "R":
		if inst, ok := d.selected(); ok && len(inst.Backups) > 0 {
			latest := inst.Backups[len(inst.Backups)-1]
			return d, awaitOp("restore", d.manager.RestoreBackupAsync(d.ctx, inst.ID, latest.ID))
		}
	}
	return d, nil
}

func (d Dashboard) selected() (state.Installation, bool) {
	if d.selectedIndex < 0 || d.selectedIndex >= len(d.cfg.Installations) {
		return state.Installation{}, false
	}
	return d.cfg.Installations[d.selectedIndex], true
}

// pushNotes keeps the last few notifications for the status area.
func (d *Dashboard) pushNotes(notes []ui.Note) {
	d.messages = append(d.messages, notes...)
	if len(d.messages) > 4 {
		d.messages = d.messages[len(d.messages)-4:]
	}
}

func (d Dashboard) View() string {
	var b strings.Builder
	if len(d.cfg.Installations) == 0 {
		b.WriteString("No installations yet. Create one with 'vslmanager installation add'.\n")
	} else {
		b.WriteString(ui.HeaderStyle.Render(fmt.Sprintf("%-30s %-10s %5s %7s %-16s %s", "Name", "Version", "Mods", "Backups", "Last played", "Status")))
		b.WriteString("\n")
		for i, inst := range d.cfg.Installations {
			b.WriteString(d.renderRow(i, inst))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	for _, n := range d.messages {
		b.WriteString(ui.SeverityStyle(n.Severity).Render(n.Message) + "\n")
	}
	b.WriteString(ui.FooterStyle.Render("↑/k: up  ↓/j: down  b: backup  R: restore latest  r: rescan mods  q: quit"))
	return b.String()
}

func (d Dashboard) renderRow(index int, inst state.Installation) string {
	status := "idle"
	if reasons := d.busy[inst.ID]; len(reasons) > 0 {
		descs := make([]string, len(reasons))
		for i, r := range reasons {
			descs[i] = r.Description
		}
		status = ui.BusyStyle.Render(d.spinner.View() + " " + strings.Join(descs, ", "))
	}

	row := fmt.Sprintf("%-30s %-10s %5d %7d %-16s %s",
		truncate(inst.Name, 30),
		inst.Version,
		inst.ModsCount,
		len(inst.Backups),
		formatLastPlayed(inst.LastTimePlayed),
		status,
	)
	style := lipgloss.NewStyle().Padding(0, 1)
	if index == d.selectedIndex {
		style = style.Background(lipgloss.Color("8")).Bold(true)
	}
	return style.Render(row)
}
