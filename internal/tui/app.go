// internal/tui/app.go
//
// Terminal dashboard for the sales pipeline. Built on bubbletea's Elm
// architecture: the App model holds all state, Update reacts to messages,
// View renders the current lane and its prospects.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/peb7268/salesvault/internal/board"
	"github.com/peb7268/salesvault/internal/config"
	"github.com/peb7268/salesvault/internal/logbook"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
)

// appState represents which screen is active.
type appState int

const (
	stateLanes  appState = iota // lane browser, one pipeline stage at a time
	stateDetail                 // single prospect detail
)

const refreshInterval = 5 * time.Second

type refreshMsg struct {
	prospects []*schema.Prospect
	metrics   board.Metrics
	err       error
}

type syncedMsg struct{ err error }

// prospectItem implements list.Item for the lane list.
type prospectItem struct {
	prospect *schema.Prospect
	level    pipeline.Level
}

func (i prospectItem) Title() string { return i.prospect.Business.Name }

func (i prospectItem) Description() string {
	p := i.prospect
	return fmt.Sprintf("%s, %s · score %.0f (%s)",
		p.Business.Location.City, p.Business.Location.State,
		p.QualificationScore.Total, i.level)
}

func (i prospectItem) FilterValue() string { return i.prospect.Business.Name }

// App is the dashboard model.
type App struct {
	state   appState
	cfg     *config.Config
	store   *store.Store
	board   *board.Synchronizer
	logbook *logbook.Logbook

	stages    []pipeline.Stage
	stageIdx  int
	prospects []*schema.Prospect
	metrics   board.Metrics
	lane      list.Model
	selected  *schema.Prospect

	statusMsg string
	loadErr   string
	width     int
	height    int
}

// NewApp builds the dashboard over a vault root.
func NewApp(root string) (*App, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	lb, _ := logbook.ForVault(root)
	st := store.New(cfg, store.WithLogger(lb))
	if err := st.Initialize(); err != nil {
		return nil, err
	}

	lane := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	lane.SetShowStatusBar(false)
	lane.SetFilteringEnabled(false)

	app := &App{
		state:   stateLanes,
		cfg:     cfg,
		store:   st,
		board:   board.New(st, board.WithLogger(lb)),
		logbook: lb,
		stages:  pipeline.Stages(),
		lane:    lane,
	}
	if lb != nil {
		lb.Info("Dashboard opened for vault %s", root)
	}
	return app, nil
}

// Init starts the first data load.
func (a *App) Init() tea.Cmd {
	return a.fetchSnapshot()
}

func (a *App) fetchSnapshot() tea.Cmd {
	st, sync := a.store, a.board
	return func() tea.Msg {
		prospects, err := st.ListProspects(nil)
		if err != nil {
			return refreshMsg{err: err}
		}
		metrics, err := sync.ComputeMetrics()
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{prospects: prospects, metrics: metrics}
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return a.fetchSnapshot()()
	})
}

func (a *App) syncBoard() tea.Cmd {
	sync := a.board
	return func() tea.Msg {
		return syncedMsg{err: sync.SyncAll()}
	}
}

// Update reacts to one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.lane.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		return a, nil

	case refreshMsg:
		if msg.err != nil {
			a.loadErr = msg.err.Error()
		} else {
			a.loadErr = ""
			a.prospects = msg.prospects
			a.metrics = msg.metrics
			a.rebuildLane()
		}
		return a, a.scheduleRefresh()

	case syncedMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Board sync failed: %v", msg.err)
		} else {
			a.statusMsg = "Board synced to " + a.cfg.DashboardFile()
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if a.state == stateLanes {
				return a, tea.Quit
			}
			a.state = stateLanes
			return a, nil
		case "esc":
			if a.state == stateDetail {
				a.state = stateLanes
				a.selected = nil
			}
			return a, nil
		case "r":
			a.statusMsg = "Refreshing..."
			return a, a.fetchSnapshot()
		case "s":
			a.statusMsg = "Syncing board..."
			return a, a.syncBoard()
		case "left", "h":
			if a.state == stateLanes && a.stageIdx > 0 {
				a.stageIdx--
				a.rebuildLane()
			}
			return a, nil
		case "right", "l":
			if a.state == stateLanes && a.stageIdx < len(a.stages)-1 {
				a.stageIdx++
				a.rebuildLane()
			}
			return a, nil
		case "enter":
			if a.state == stateLanes {
				if item, ok := a.lane.SelectedItem().(prospectItem); ok {
					a.selected = item.prospect
					a.state = stateDetail
				}
			}
			return a, nil
		}
	}

	if a.state == stateLanes {
		var cmd tea.Cmd
		a.lane, cmd = a.lane.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) currentStage() pipeline.Stage {
	return a.stages[a.stageIdx]
}

func (a *App) rebuildLane() {
	stage := a.currentStage()
	bands := a.cfg.Bands()
	var items []list.Item
	for _, p := range a.prospects {
		if p.PipelineStage != stage {
			continue
		}
		items = append(items, prospectItem{prospect: p, level: bands.Level(p.QualificationScore.Total)})
	}
	a.lane.Title = fmt.Sprintf("%s (%d)", a.cfg.LaneLabel(stage), len(items))
	a.lane.SetItems(items)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	faintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateDetail:
		content = a.renderDetail()
	default:
		content = a.lane.View()
	}

	sections := []string{
		headerStyle.Render("◆ SALESVAULT"),
		a.renderStageTabs(),
		content,
		a.renderMetricsPanel(),
	}
	if a.loadErr != "" {
		sections = append(sections, errStyle.Render("load error: "+a.loadErr))
	}
	if a.statusMsg != "" {
		sections = append(sections, faintStyle.Render(a.statusMsg))
	}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, faintStyle.Render("←/→ lane · enter detail · s sync board · r refresh · q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStageTabs() string {
	tabs := make([]string, len(a.stages))
	for i, stage := range a.stages {
		label := fmt.Sprintf("%s %d", stage, a.metrics.CountByStage[stage])
		if i == a.stageIdx {
			tabs[i] = tabActiveStyle.Render("[" + label + "]")
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(tabs, "  ")
}

func (a *App) renderDetail() string {
	p := a.selected
	if p == nil {
		return "No prospect selected"
	}
	bands := a.cfg.Bands()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.Business.Name)
	fmt.Fprintf(&b, "%s · %s, %s\n", p.Business.Industry, p.Business.Location.City, p.Business.Location.State)
	fmt.Fprintf(&b, "Stage: %s\n", p.PipelineStage)
	fmt.Fprintf(&b, "Score: %.0f (%s)\n", p.QualificationScore.Total, bands.Level(p.QualificationScore.Total))
	if p.Contact.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", p.Contact.Phone)
	}
	if p.Contact.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", p.Contact.Email)
	}
	if len(p.Interactions) > 0 {
		b.WriteString("\nRecent interactions:\n")
		start := len(p.Interactions) - 5
		if start < 0 {
			start = 0
		}
		for _, entry := range p.Interactions[start:] {
			fmt.Fprintf(&b, "  %s  %s", entry.Date.Format("2006-01-02"), entry.Type)
			if entry.Outcome != "" {
				fmt.Fprintf(&b, " (%s)", entry.Outcome)
			}
			b.WriteString("\n")
		}
	}
	return panelStyle.Render(b.String())
}

func (a *App) renderMetricsPanel() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %d prospects", a.metrics.Total)
	for _, stage := range a.stages {
		count := a.metrics.CountByStage[stage]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, " · %s %d (avg %.0f)", stage, count, a.metrics.AvgScoreByStage[stage])
	}
	return panelStyle.Render(b.String())
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(5)
	if len(lines) == 0 {
		return ""
	}
	head := tabActiveStyle.Render("LOG")
	body := faintStyle.Render(strings.Join(lines, "\n"))
	return panelStyle.Render(head + "\n" + body)
}

// Run starts the dashboard program and blocks until exit.
func Run(root string) error {
	app, err := NewApp(root)
	if err != nil {
		return err
	}
	program := tea.NewProgram(app, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
