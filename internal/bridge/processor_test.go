package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/peb7268/salesvault/internal/board"
	"github.com/peb7268/salesvault/internal/config"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
)

var processorClock = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	st := store.New(cfg, store.WithClock(func() time.Time { return processorClock }))
	if err := st.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sync := board.New(st)
	return NewProcessor(st, sync, WithProcessorClock(func() time.Time { return processorClock })), st
}

func seedProspect(t *testing.T, st *store.Store) *schema.Prospect {
	t.Helper()
	p, err := st.CreateProspect(schema.ProspectInput{
		BusinessName: "Test Restaurant LLC",
		Industry:     "restaurants",
		City:         "Denver",
		State:        "CO",
	})
	if err != nil {
		t.Fatalf("seed prospect: %v", err)
	}
	return p
}

func activityEvent(t *testing.T, id, prospectID string) Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"prospectId":        prospectID,
		"activityType":      "call",
		"outcome":           "answered",
		"notes":             "auto-dialed",
		"callMetadata":      map[string]any{"duration": 95, "answered": true},
		"automatedActivity": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return Event{
		Version:    EventSchemaVersion,
		EventID:    id,
		Type:       EventActivityRecorded,
		Source:     "dialer",
		ServerTime: processorClock,
		Payload:    payload,
	}
}

func TestProcessorRecordsActivity(t *testing.T) {
	p, st := newTestProcessor(t)
	prospect := seedProspect(t, st)

	if err := p.HandleEvent(activityEvent(t, "evt-1", prospect.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	activities, err := st.ActivitiesForProspect(prospect.ID)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("got %d activities, want 1", len(activities))
	}
	a := activities[0]
	if !a.AutomatedActivity || len(a.AutomationRules) == 0 || a.AutomationRules[0] != "dialer" {
		t.Fatalf("automation attribution missing: %+v", a)
	}

	note, err := os.ReadFile(st.DailyNotePath(processorClock))
	if err != nil {
		t.Fatalf("daily note missing: %v", err)
	}
	if !strings.Contains(string(note), "Sales Activity") || !strings.Contains(string(note), prospect.ID) {
		t.Fatalf("daily note not updated:\n%s", note)
	}
}

func TestProcessorIgnoresDuplicateEvents(t *testing.T) {
	p, st := newTestProcessor(t)
	prospect := seedProspect(t, st)

	if err := p.HandleEvent(activityEvent(t, "evt-dup", prospect.ID)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := p.HandleEvent(activityEvent(t, "evt-dup", prospect.ID)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	activities, _ := st.ActivitiesForProspect(prospect.ID)
	if len(activities) != 1 {
		t.Fatalf("replay created a second activity: %d", len(activities))
	}
}

func TestProcessorRetriesAfterFailure(t *testing.T) {
	p, st := newTestProcessor(t)

	evt := activityEvent(t, "evt-retry", "not-created-yet")
	if err := p.HandleEvent(evt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Same event id retried after the prospect appears must apply.
	prospect := seedProspect(t, st)
	evt = activityEvent(t, "evt-retry", prospect.ID)
	if err := p.HandleEvent(evt); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestProcessorAppliesStageTransition(t *testing.T) {
	p, st := newTestProcessor(t)
	prospect := seedProspect(t, st)

	payload, _ := json.Marshal(StagePayload{ProspectID: prospect.ID, To: "contacted"})
	err := p.HandleEvent(Event{
		Version:    EventSchemaVersion,
		EventID:    "evt-move",
		Type:       EventStageTransition,
		Source:     "dialer",
		ServerTime: processorClock,
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, _ := st.GetProspect(prospect.ID)
	if got.PipelineStage != pipeline.StageContacted {
		t.Fatalf("stage = %q", got.PipelineStage)
	}
	if _, err := os.Stat(st.Config().DashboardFile()); err != nil {
		t.Fatalf("board not rewritten after transition: %v", err)
	}
}

func TestProcessorRejectsIllegalTransition(t *testing.T) {
	p, st := newTestProcessor(t)
	prospect := seedProspect(t, st)

	payload, _ := json.Marshal(StagePayload{ProspectID: prospect.ID, To: "closed_won"})
	err := p.HandleEvent(Event{
		Version: EventSchemaVersion,
		EventID: "evt-bad",
		Type:    EventStageTransition,
		Source:  "dialer",
		Payload: payload,
	})
	if !errors.Is(err, pipeline.ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
	if status, _ := errorStatus(err); status != http.StatusConflict {
		t.Fatalf("status = %d, want 409", status)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	verr := &schema.ValidationError{Kind: schema.KindProspect}
	if status, _ := errorStatus(verr); status != http.StatusUnprocessableEntity {
		t.Fatalf("validation status = %d", status)
	}
	if status, _ := errorStatus(store.ErrNotFound); status != http.StatusNotFound {
		t.Fatalf("not-found status = %d", status)
	}
	if status, _ := errorStatus(errors.New("disk on fire")); status != http.StatusInternalServerError {
		t.Fatalf("default status = %d", status)
	}
}
