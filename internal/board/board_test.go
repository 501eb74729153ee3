package board

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/peb7268/salesvault/internal/config"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
)

func newTestBoard(t *testing.T) (*Synchronizer, *store.Store) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	st := store.New(cfg, store.WithClock(func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}))
	if err := st.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return New(st), st
}

func createProspect(t *testing.T, st *store.Store, name, city string) *schema.Prospect {
	t.Helper()
	p, err := st.CreateProspect(schema.ProspectInput{
		BusinessName: name,
		Industry:     "restaurants",
		City:         city,
		State:        "CO",
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return p
}

func TestGenerateCard(t *testing.T) {
	sync, st := newTestBoard(t)
	p := createProspect(t, st, "Test Restaurant LLC", "Denver")

	card := sync.GenerateCard(p)
	for _, want := range []string{
		"[[test-restaurant-llc|Test Restaurant LLC]]",
		"Denver, CO",
		"Score: 0 (disqualified)",
		"#prospect",
		"#stage/cold",
	} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}
	if strings.Contains(card, "🔥") {
		t.Error("zero-score card carries the hot marker")
	}
}

func TestGenerateCardMarksHighScores(t *testing.T) {
	sync, st := newTestBoard(t)
	p := createProspect(t, st, "Hot Lead Inc", "Denver")

	p.QualificationScore.Total = 85
	card := sync.GenerateCard(p)
	if !strings.Contains(card, "🔥 85 (high)") {
		t.Fatalf("high score not marked:\n%s", card)
	}
}

func TestSyncAllIsIdempotent(t *testing.T) {
	sync, st := newTestBoard(t)
	createProspect(t, st, "Test Restaurant LLC", "Denver")
	createProspect(t, st, "Pizza Place", "Boulder")

	if err := sync.SyncAll(); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, err := os.ReadFile(st.Config().DashboardFile())
	if err != nil {
		t.Fatalf("read board: %v", err)
	}
	if err := sync.SyncAll(); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, _ := os.ReadFile(st.Config().DashboardFile())
	if string(first) != string(second) {
		t.Fatal("two syncs with no entity changes produced different boards")
	}
}

func TestSyncAllPlacesProspectsInTheirLanes(t *testing.T) {
	sync, st := newTestBoard(t)
	createProspect(t, st, "Test Restaurant LLC", "Denver")

	if err := sync.SyncAll(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	data, _ := os.ReadFile(st.Config().DashboardFile())
	content := string(data)

	// Every lane heading is present, in the fixed stage order.
	last := -1
	for _, stage := range pipeline.Stages() {
		heading := "## " + st.Config().LaneLabel(stage)
		idx := strings.Index(content, heading)
		if idx < 0 {
			t.Fatalf("board missing lane %q", heading)
		}
		if idx < last {
			t.Fatalf("lane %q out of order", heading)
		}
		last = idx
	}

	coldLane := content[strings.Index(content, "## "+st.Config().LaneLabel(pipeline.StageCold)):]
	coldLane = coldLane[:strings.Index(coldLane, "## "+st.Config().LaneLabel(pipeline.StageContacted))]
	if !strings.Contains(coldLane, "Test Restaurant LLC") {
		t.Fatalf("prospect not in cold lane:\n%s", content)
	}
	if !strings.Contains(content, "## Pipeline Metrics") {
		t.Fatal("board missing metrics section")
	}
}

func TestHandleStageTransitionMissingProspect(t *testing.T) {
	sync, _ := newTestBoard(t)

	applied, err := sync.HandleStageTransition("ghost", pipeline.StageCold, pipeline.StageContacted, time.Time{}, "test")
	if err != nil {
		t.Fatalf("err = %v, want nil for missing prospect", err)
	}
	if applied {
		t.Fatal("transition applied against a missing prospect")
	}
}

func TestHandleStageTransitionRejectsIllegalEdge(t *testing.T) {
	sync, st := newTestBoard(t)
	p := createProspect(t, st, "Test Restaurant LLC", "Denver")

	applied, err := sync.HandleStageTransition(p.ID, pipeline.StageCold, pipeline.StageQualified, time.Time{}, "test")
	if !errors.Is(err, pipeline.ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
	if applied {
		t.Fatal("illegal transition reported as applied")
	}

	got, err := st.GetProspect(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PipelineStage != pipeline.StageCold {
		t.Fatalf("stage changed to %q despite rejection", got.PipelineStage)
	}
}

func TestHandleStageTransitionAppliesLegalEdge(t *testing.T) {
	sync, st := newTestBoard(t)
	p := createProspect(t, st, "Test Restaurant LLC", "Denver")

	applied, err := sync.HandleStageTransition(p.ID, pipeline.StageCold, pipeline.StageContacted, time.Time{}, "cli")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !applied {
		t.Fatal("legal transition not applied")
	}

	got, err := st.GetProspect(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PipelineStage != pipeline.StageContacted {
		t.Fatalf("stage = %q, want contacted", got.PipelineStage)
	}
	var stageTags []string
	for _, tag := range got.Tags {
		if strings.HasPrefix(tag, "stage/") {
			stageTags = append(stageTags, tag)
		}
	}
	if len(stageTags) != 1 || stageTags[0] != "stage/contacted" {
		t.Fatalf("stage tags = %v, want exactly [stage/contacted]", stageTags)
	}
	if len(got.Interactions) == 0 || got.Interactions[len(got.Interactions)-1].Type != "stage_change" {
		t.Fatalf("transition not recorded in history: %+v", got.Interactions)
	}
}

func TestHandleStageTransitionRejectsStaleFrom(t *testing.T) {
	sync, st := newTestBoard(t)
	p := createProspect(t, st, "Test Restaurant LLC", "Denver")

	// Caller believes the prospect is contacted; it is still cold.
	applied, err := sync.HandleStageTransition(p.ID, pipeline.StageContacted, pipeline.StageInterested, time.Time{}, "test")
	if err == nil || applied {
		t.Fatalf("stale from accepted: applied=%v err=%v", applied, err)
	}
}

func TestComputeMetrics(t *testing.T) {
	sync, st := newTestBoard(t)
	a := createProspect(t, st, "Alpha Diner", "Denver")
	createProspect(t, st, "Beta Bistro", "Boulder")

	if _, err := st.UpdateProspect(a.ID, map[string]any{
		"qualificationScore": map[string]any{
			"breakdown": map[string]any{
				"businessSize":      10,
				"digitalPresence":   20,
				"competitorGaps":    10,
				"location":          10,
				"industry":          5,
				"revenueIndicators": 5,
			},
		},
	}); err != nil {
		t.Fatalf("score update: %v", err)
	}

	m, err := sync.ComputeMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.Total != 2 {
		t.Fatalf("total = %d", m.Total)
	}
	if m.CountByStage[pipeline.StageCold] != 2 {
		t.Fatalf("cold count = %d", m.CountByStage[pipeline.StageCold])
	}
	if avg := m.AvgScoreByStage[pipeline.StageCold]; avg != 30 {
		t.Fatalf("cold avg = %v, want 30", avg)
	}
}
