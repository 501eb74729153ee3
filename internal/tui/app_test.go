package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func seedProspects(t *testing.T, app *App) {
	t.Helper()
	for _, in := range []schema.ProspectInput{
		{BusinessName: "Alpha Diner", Industry: "restaurants", City: "Denver", State: "CO"},
		{BusinessName: "Beta Bistro", Industry: "restaurants", City: "Boulder", State: "CO"},
	} {
		if _, err := app.store.CreateProspect(in); err != nil {
			t.Fatalf("seed %s: %v", in.BusinessName, err)
		}
	}
}

func refresh(t *testing.T, app *App) {
	t.Helper()
	msg := app.fetchSnapshot()()
	refreshed, ok := msg.(refreshMsg)
	if !ok {
		t.Fatalf("snapshot returned %T", msg)
	}
	if refreshed.err != nil {
		t.Fatalf("snapshot: %v", refreshed.err)
	}
	model, _ := app.Update(refreshed)
	if _, ok := model.(*App); !ok {
		t.Fatalf("update returned %T", model)
	}
}

func TestSnapshotPopulatesLanes(t *testing.T) {
	app := newTestApp(t)
	seedProspects(t, app)
	refresh(t, app)

	if app.metrics.Total != 2 {
		t.Fatalf("metrics total = %d", app.metrics.Total)
	}
	if app.currentStage() != pipeline.StageCold {
		t.Fatalf("initial stage = %q", app.currentStage())
	}
	if got := len(app.lane.Items()); got != 2 {
		t.Fatalf("cold lane has %d items, want 2", got)
	}

	view := app.View()
	for _, want := range []string{"SALESVAULT", "Alpha Diner", "Beta Bistro", "Pipeline: 2 prospects"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestLaneNavigation(t *testing.T) {
	app := newTestApp(t)
	seedProspects(t, app)
	refresh(t, app)

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRight})
	app = model.(*App)
	if app.currentStage() != pipeline.StageContacted {
		t.Fatalf("stage after right = %q", app.currentStage())
	}
	if got := len(app.lane.Items()); got != 0 {
		t.Fatalf("contacted lane has %d items, want 0", got)
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyLeft})
	app = model.(*App)
	if app.currentStage() != pipeline.StageCold {
		t.Fatalf("stage after left = %q", app.currentStage())
	}
}

func TestEnterOpensDetail(t *testing.T) {
	app := newTestApp(t)
	seedProspects(t, app)
	refresh(t, app)

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	if app.state != stateDetail || app.selected == nil {
		t.Fatalf("enter did not open detail: state=%d selected=%v", app.state, app.selected)
	}
	view := app.View()
	if !strings.Contains(view, app.selected.Business.Name) {
		t.Fatalf("detail view missing business name:\n%s", view)
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(*App)
	if app.state != stateLanes {
		t.Fatalf("esc did not return to lanes")
	}
}

func TestSyncKeyWritesBoard(t *testing.T) {
	app := newTestApp(t)
	seedProspects(t, app)
	refresh(t, app)

	msg := app.syncBoard()()
	synced, ok := msg.(syncedMsg)
	if !ok {
		t.Fatalf("sync returned %T", msg)
	}
	if synced.err != nil {
		t.Fatalf("sync: %v", synced.err)
	}
	model, _ := app.Update(synced)
	app = model.(*App)
	if !strings.Contains(app.statusMsg, "Board synced") {
		t.Fatalf("status = %q", app.statusMsg)
	}
}
