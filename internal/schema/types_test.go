package schema

import (
	"testing"
	"time"

	"github.com/peb7268/salesvault/internal/pipeline"
)

func TestProspectMetadataRoundTripPreservesExtra(t *testing.T) {
	p := validProspect()
	p.Tags = []string{"prospect", "stage/cold"}
	p.Extra = map[string]any{
		"crm_sync_id":  "abc-123",
		"custom_notes": "imported from spreadsheet",
	}

	meta, err := p.Metadata()
	if err != nil {
		t.Fatalf("Metadata returned error: %v", err)
	}
	if meta["crm_sync_id"] != "abc-123" {
		t.Fatalf("extra field dropped from metadata: %#v", meta)
	}
	if meta["type"] != "prospect" {
		t.Fatalf("discriminator missing: %v", meta["type"])
	}

	back, err := ProspectFromMetadata(meta)
	if err != nil {
		t.Fatalf("ProspectFromMetadata returned error: %v", err)
	}
	if back.Business.Name != "Test Restaurant LLC" {
		t.Fatalf("business name lost: %q", back.Business.Name)
	}
	if back.PipelineStage != pipeline.StageCold {
		t.Fatalf("stage lost: %q", back.PipelineStage)
	}
	if back.Extra["crm_sync_id"] != "abc-123" {
		t.Fatalf("extra field not recaptured: %#v", back.Extra)
	}
	if back.Business.Size.EmployeeCount == nil || *back.Business.Size.EmployeeCount != 12 {
		t.Fatalf("employee count lost: %#v", back.Business.Size)
	}
}

func TestExtraNeverShadowsSchemaKeys(t *testing.T) {
	p := validProspect()
	p.Extra = map[string]any{"pipelineStage": "qualified"} // must not override the typed field
	meta, err := p.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta["pipelineStage"] != "cold" {
		t.Fatalf("extra shadowed schema key: %v", meta["pipelineStage"])
	}
}

func TestActivityMetadataRoundTrip(t *testing.T) {
	followUp := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	a := validActivity()
	a.FollowUpRequired = true
	a.FollowUpDate = &followUp
	a.FollowUpType = "call"
	a.Impact = &Impact{StageFrom: pipeline.StageCold, StageTo: pipeline.StageContacted, ScoreDelta: 5}

	meta, err := a.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ActivityFromMetadata(meta)
	if err != nil {
		t.Fatal(err)
	}
	if back.CallMetadata == nil || back.CallMetadata.Duration != 180 || !back.CallMetadata.Answered {
		t.Fatalf("call metadata lost: %#v", back.CallMetadata)
	}
	if back.FollowUpDate == nil || !back.FollowUpDate.Equal(followUp) {
		t.Fatalf("follow-up date lost: %v", back.FollowUpDate)
	}
	if back.Impact == nil || back.Impact.StageTo != pipeline.StageContacted {
		t.Fatalf("impact lost: %#v", back.Impact)
	}
}

func TestProspectFromMetadataNormalizesLooseFields(t *testing.T) {
	meta := map[string]any{
		"type":          "prospect",
		"id":            "corner-bakery",
		"created":       "03/01/2025",
		"tags":          "prospect, stage/cold",
		"business":      map[string]any{"name": "Corner Bakery"},
		"pipelineStage": "cold",
	}
	p, err := ProspectFromMetadata(meta)
	if err != nil {
		t.Fatalf("ProspectFromMetadata returned error: %v", err)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "prospect" || p.Tags[1] != "stage/cold" {
		t.Fatalf("tags = %v, want [prospect stage/cold]", p.Tags)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !p.Created.Equal(want) {
		t.Fatalf("created = %v, want %v", p.Created, want)
	}
}

func TestActivityFromMetadataResolvesWikiLinkReference(t *testing.T) {
	meta := map[string]any{
		"type":         "activity",
		"id":           "2025-03-14-call-aabbccdd",
		"prospectId":   "[[corner-bakery|Corner Bakery]]",
		"activityType": "call",
		"outcome":      "answered",
		"callMetadata": map[string]any{"duration": 60, "answered": true},
	}
	a, err := ActivityFromMetadata(meta)
	if err != nil {
		t.Fatalf("ActivityFromMetadata returned error: %v", err)
	}
	if a.ProspectID != "corner-bakery" {
		t.Fatalf("prospectId = %q, want corner-bakery", a.ProspectID)
	}
}

func TestOutcomeAllowed(t *testing.T) {
	if !OutcomeAllowed(ActivityCall, "voicemail") {
		t.Error("voicemail should be a valid call outcome")
	}
	if OutcomeAllowed(ActivityEmail, "busy") {
		t.Error("busy should not be a valid email outcome")
	}
	if OutcomeAllowed("unknown", "whatever") {
		t.Error("unknown type should allow nothing")
	}
}
