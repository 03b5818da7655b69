package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/tasks"
)

// taskRow is one line of the task table, merged from snapshot polls and
// live gateway events.
type taskRow struct {
	ID           string
	Label        string
	Task         string
	Status       tasks.Status
	Profile      string
	Iteration    int
	CreatedAt    time.Time
	LastActivity time.Time
	CompletedAt  *time.Time
	Result       string
	Error        string
}

type snapshotMsg struct {
	snap *tasks.Snapshot
	err  error
}

type pollTickMsg struct{}

type eventMsg struct {
	event events.Event
}

type wsClosedMsg struct {
	err error
}

// App is the monitor model.
type App struct {
	snapshotPath string
	pollInterval time.Duration

	rows       []taskRow
	selected   int
	showDetail bool

	spin     spinner.Model
	width    int
	height   int
	wsOnline bool
	pollErr  error
	lastPoll time.Time
	snapTime time.Time
	quitting bool

	renderer      *glamour.TermRenderer
	rendererWidth int
}

func newApp(snapshotPath string, pollInterval time.Duration) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return &App{
		snapshotPath: snapshotPath,
		pollInterval: pollInterval,
		spin:         s,
		width:        80,
		height:       24,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, pollSnapshot(a.snapshotPath))
}

func pollSnapshot(path string) tea.Cmd {
	return func() tea.Msg {
		snap, err := tasks.LoadSnapshot(path)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case snapshotMsg:
		a.applySnapshot(msg)
		return a, tea.Tick(a.pollInterval, func(time.Time) tea.Msg {
			return pollTickMsg{}
		})

	case pollTickMsg:
		return a, pollSnapshot(a.snapshotPath)

	case eventMsg:
		a.applyEvent(msg.event)
		return a, nil

	case wsClosedMsg:
		a.wsOnline = false
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.quitting = true
		return a, tea.Quit
	case "up", "k":
		if a.selected > 0 {
			a.selected--
		}
	case "down", "j":
		if a.selected < len(a.rows)-1 {
			a.selected++
		}
	case "enter":
		a.showDetail = !a.showDetail
	case "r":
		return a, pollSnapshot(a.snapshotPath)
	}
	return a, nil
}

// applySnapshot rebuilds the table from a status file poll. A read error
// keeps the previous rows so a slow daemon start does not blank the view.
func (a *App) applySnapshot(msg snapshotMsg) {
	a.lastPoll = time.Now()
	if msg.err != nil {
		a.pollErr = msg.err
		return
	}
	a.pollErr = nil
	a.snapTime = msg.snap.Timestamp

	rows := make([]taskRow, 0, len(msg.snap.Workers))
	for id, entry := range msg.snap.Workers {
		rows = append(rows, taskRow{
			ID:           id,
			Label:        entry.Label,
			Task:         entry.Task,
			Status:       entry.Status,
			Profile:      entry.Profile,
			Iteration:    entry.Iteration,
			CreatedAt:    entry.CreatedAt,
			LastActivity: entry.LastActivity,
			CompletedAt:  entry.CompletedAt,
			Result:       entry.Result,
			Error:        entry.Error,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	a.rows = rows
	a.clampSelection()
}

// applyEvent folds a live gateway event into the table between polls.
func (a *App) applyEvent(e events.Event) {
	if e.TaskID == "" {
		return
	}
	switch e.Type {
	case events.EventTaskSpawned:
		if a.findRow(e.TaskID) >= 0 {
			return
		}
		row := taskRow{
			ID:           e.TaskID,
			Status:       tasks.StatusRunning,
			CreatedAt:    e.Timestamp,
			LastActivity: e.Timestamp,
		}
		if p, ok := events.GetTaskSpawnedPayload(e); ok {
			row.Label = p.Label
			row.Task = tasks.Truncate(p.Description, 100)
			row.Profile = p.Profile
		}
		a.rows = append(a.rows, row)

	case events.EventTaskProgress:
		i := a.findRow(e.TaskID)
		if i < 0 {
			return
		}
		if p, ok := events.GetTaskProgressPayload(e); ok {
			a.rows[i].Iteration = p.Iteration
		}
		a.rows[i].LastActivity = e.Timestamp

	case events.EventTaskCompleted:
		i := a.findRow(e.TaskID)
		if i < 0 {
			return
		}
		a.rows[i].Status = tasks.StatusCompleted
		ts := e.Timestamp
		a.rows[i].CompletedAt = &ts
		if p, ok := events.GetTaskCompletedPayload(e); ok {
			a.rows[i].Result = tasks.Truncate(p.Result, 200)
			a.rows[i].Iteration = p.Iterations
		}

	case events.EventTaskFailed:
		i := a.findRow(e.TaskID)
		if i < 0 {
			return
		}
		a.rows[i].Status = tasks.StatusFailed
		ts := e.Timestamp
		a.rows[i].CompletedAt = &ts
		if p, ok := events.GetTaskFailedPayload(e); ok {
			a.rows[i].Error = tasks.Truncate(p.Error, 200)
			a.rows[i].Iteration = p.Iterations
		}

	case events.EventTaskCancelled:
		i := a.findRow(e.TaskID)
		if i < 0 {
			return
		}
		a.rows[i].Status = tasks.StatusCancelled
		ts := e.Timestamp
		a.rows[i].CompletedAt = &ts
	}
}

func (a *App) findRow(id string) int {
	for i := range a.rows {
		if a.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (a *App) clampSelection() {
	if a.selected >= len(a.rows) {
		a.selected = len(a.rows) - 1
	}
	if a.selected < 0 {
		a.selected = 0
	}
}

func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.headerView())
	b.WriteString("\n\n")
	b.WriteString(a.tableView())
	if a.showDetail {
		if detail := a.detailView(); detail != "" {
			b.WriteString("\n")
			b.WriteString(detail)
		}
	}
	b.WriteString("\n")
	b.WriteString(a.footerView())
	return b.String()
}

func (a *App) headerView() string {
	running := 0
	for _, r := range a.rows {
		if r.Status == tasks.StatusRunning {
			running++
		}
	}
	feed := faintStyle.Render("polling")
	if a.wsOnline {
		feed = statusRunning.Render("live")
	}
	header := fmt.Sprintf("%s %s  %d running / %d tasks  [%s]",
		a.spin.View(),
		titleStyle.Render("crew monitor"),
		running,
		len(a.rows),
		feed,
	)
	if a.pollErr != nil {
		header += "  " + errorStyle.Render("status unavailable")
	} else if a.isStale() {
		header += "  " + errorStyle.Render("daemon offline?")
	}
	return header
}

// isStale reports whether the daemon stopped refreshing the status file.
// The janitor rewrites it at least once a minute while the daemon runs.
func (a *App) isStale() bool {
	return !a.snapTime.IsZero() && time.Since(a.snapTime) > 2*time.Minute
}

func (a *App) tableView() string {
	if len(a.rows) == 0 {
		return faintStyle.Render("  no tasks yet")
	}

	const (
		idW     = 13
		statusW = 9
		iterW   = 4
		ageW    = 8
	)
	labelW := a.width - idW - statusW - iterW - ageW - 10
	if labelW < 10 {
		labelW = 10
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-*s  %-*s  %-*s  %*s  %*s",
		idW, "ID", labelW, "LABEL", statusW, "STATUS", iterW, "ITER", ageW, "AGE")))
	b.WriteString("\n")

	now := time.Now()
	for i, row := range a.rows {
		marker := "  "
		if i == a.selected {
			marker = "> "
		}
		line := fmt.Sprintf("%s%-*s  %-*s  %-*s  %*d  %*s",
			marker,
			idW, tasks.Truncate(row.ID, idW),
			labelW, tasks.Truncate(row.Label, labelW),
			statusW, statusText(row.Status),
			iterW, row.Iteration,
			ageW, formatAge(rowAge(row, now)),
		)
		if i == a.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(colorizeStatus(row.Status, line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) detailView() string {
	if a.selected < 0 || a.selected >= len(a.rows) {
		return ""
	}
	row := a.rows[a.selected]

	innerWidth := a.width - 6
	if innerWidth < 20 {
		innerWidth = 20
	}

	var body string
	switch {
	case row.Status == tasks.StatusCompleted && row.Result != "":
		body = a.renderMarkdown(row.Result, innerWidth)
	case row.Status == tasks.StatusFailed && row.Error != "":
		body = errorStyle.Render(row.Error)
	case row.Task != "":
		body = row.Task
	default:
		body = faintStyle.Render("no detail")
	}

	title := fmt.Sprintf("%s (%s)", row.Label, row.Status)
	return detailStyle.Width(innerWidth + 2).Render(titleStyle.Render(title) + "\n" + body)
}

func (a *App) footerView() string {
	return faintStyle.Render("  up/down select  enter detail  r refresh  q quit")
}

// renderMarkdown renders a task result through glamour, rebuilding the
// renderer only when the terminal width changes.
func (a *App) renderMarkdown(text string, width int) string {
	if a.renderer == nil || a.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		a.renderer = r
		a.rendererWidth = width
	}
	out, err := a.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func statusText(s tasks.Status) string {
	switch s {
	case tasks.StatusRunning:
		return "running"
	case tasks.StatusCompleted:
		return "done"
	case tasks.StatusFailed:
		return "failed"
	case tasks.StatusCancelled:
		return "cancelled"
	default:
		return string(s)
	}
}

func colorizeStatus(s tasks.Status, line string) string {
	switch s {
	case tasks.StatusRunning:
		return statusRunning.Render(line)
	case tasks.StatusCompleted:
		return statusDone.Render(line)
	case tasks.StatusFailed:
		return statusFailed.Render(line)
	case tasks.StatusCancelled:
		return statusCancelled.Render(line)
	default:
		return line
	}
}

// rowAge is time spent running for live tasks and total runtime for
// finished ones.
func rowAge(row taskRow, now time.Time) time.Duration {
	if row.CompletedAt != nil {
		return row.CompletedAt.Sub(row.CreatedAt)
	}
	return now.Sub(row.CreatedAt)
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
