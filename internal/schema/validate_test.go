package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/peb7268/salesvault/internal/pipeline"
)

func intPtr(v int) *int { return &v }

func validProspect() *Prospect {
	return &Prospect{
		Entity: Entity{Type: KindProspect, ID: "test-restaurant-llc", Created: time.Now(), Updated: time.Now()},
		Business: Business{
			Name:     "Test Restaurant LLC",
			Industry: "restaurants",
			Location: Location{City: "Denver", State: "CO", Country: "US"},
			Size:     BusinessSize{Category: SizeSmall, EmployeeCount: intPtr(12)},
		},
		PipelineStage: pipeline.StageCold,
		QualificationScore: QualificationScore{
			Total: 45,
			Breakdown: pipeline.Breakdown{
				BusinessSize: 10, DigitalPresence: 15, CompetitorGaps: 5,
				Location: 10, Industry: 3, RevenueIndicators: 2,
			},
		},
	}
}

func TestValidateProspectOK(t *testing.T) {
	r := ValidateProspect(validProspect())
	if !r.Valid() {
		t.Fatalf("valid prospect rejected: %+v", r.Errors)
	}
}

func TestValidateProspectCollectsAllErrors(t *testing.T) {
	p := validProspect()
	p.Business.Name = ""
	p.Business.Industry = "space_travel"
	p.Business.Size.EmployeeCount = intPtr(500) // small is 10-49
	p.QualificationScore.Breakdown.Industry = 99
	r := ValidateProspect(p)
	if r.Valid() {
		t.Fatal("invalid prospect accepted")
	}
	if len(r.Errors) < 4 {
		t.Fatalf("expected all violations collected, got %d: %+v", len(r.Errors), r.Errors)
	}
	codes := map[string]bool{}
	for _, fe := range r.Errors {
		codes[fe.Code] = true
	}
	for _, want := range []string{CodeRequired, CodeInvalidEnum, CodeSizeMismatch, CodeScoreCap} {
		if !codes[want] {
			t.Errorf("missing expected code %s in %+v", want, r.Errors)
		}
	}
}

func TestValidateProspectScoreSum(t *testing.T) {
	p := validProspect()
	p.QualificationScore.Total = 90 // breakdown sums to 45
	r := ValidateProspect(p)
	if r.Valid() {
		t.Fatal("mismatched score total accepted")
	}
	if r.Errors[0].Code != CodeScoreSum {
		t.Fatalf("expected %s, got %+v", CodeScoreSum, r.Errors)
	}
}

func TestValidateProspectEmployeeCountRanges(t *testing.T) {
	cases := []struct {
		category string
		count    int
		valid    bool
	}{
		{SizeMicro, 1, true},
		{SizeMicro, 9, true},
		{SizeMicro, 10, false},
		{SizeSmall, 10, true},
		{SizeSmall, 49, true},
		{SizeSmall, 9, false},
		{SizeMedium, 50, true},
		{SizeMedium, 999, true},
		{SizeMedium, 1000, false},
	}
	for _, tc := range cases {
		p := validProspect()
		p.Business.Size = BusinessSize{Category: tc.category, EmployeeCount: intPtr(tc.count)}
		r := ValidateProspect(p)
		if r.Valid() != tc.valid {
			t.Errorf("%s/%d: valid=%v, want %v (%+v)", tc.category, tc.count, r.Valid(), tc.valid, r.Errors)
		}
	}
}

func validActivity() *Activity {
	return &Activity{
		Entity:       Entity{Type: KindActivity, ID: "act-1", Created: time.Now(), Updated: time.Now()},
		ProspectID:   "test-restaurant-llc",
		ActivityType: ActivityCall,
		Outcome:      "answered",
		CallMetadata: &CallMetadata{Duration: 180, Answered: true},
	}
}

func TestValidateActivityOK(t *testing.T) {
	if r := ValidateActivity(validActivity()); !r.Valid() {
		t.Fatalf("valid activity rejected: %+v", r.Errors)
	}
}

func TestActivityOutcomeWhitelist(t *testing.T) {
	a := validActivity()
	a.ActivityType = ActivityEmail
	a.Outcome = "busy" // call outcome, not an email one
	a.EmailMetadata = &EmailMetadata{Subject: "Intro"}
	a.CallMetadata = nil
	r := ValidateActivity(a)
	if r.Valid() {
		t.Fatal("email activity with call outcome accepted")
	}
	found := false
	for _, fe := range r.Errors {
		if fe.Code == CodeOutcomeMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %+v", CodeOutcomeMismatch, r.Errors)
	}
}

func TestActivityTypeMetadataRequired(t *testing.T) {
	a := validActivity()
	a.CallMetadata = nil
	r := ValidateActivity(a)
	if r.Valid() {
		t.Fatal("call activity without callMetadata accepted")
	}
	if r.Errors[0].Code != CodeMetadataMissing {
		t.Fatalf("expected %s, got %+v", CodeMetadataMissing, r.Errors)
	}

	m := validActivity()
	m.ActivityType = ActivityMeeting
	m.Outcome = "completed"
	m.CallMetadata = nil
	if r := ValidateActivity(m); r.Valid() {
		t.Fatal("meeting activity without meetingMetadata accepted")
	}
}

func TestActivityFollowUpJointPresence(t *testing.T) {
	date := time.Now().Add(48 * time.Hour)

	complete := validActivity()
	complete.FollowUpRequired = true
	complete.FollowUpDate = &date
	complete.FollowUpType = "call"
	if r := ValidateActivity(complete); !r.Valid() {
		t.Fatalf("complete follow-up rejected: %+v", r.Errors)
	}

	missingDate := validActivity()
	missingDate.FollowUpRequired = true
	missingDate.FollowUpType = "call"
	if r := ValidateActivity(missingDate); r.Valid() {
		t.Fatal("followUpRequired without date accepted")
	}

	orphanDate := validActivity()
	orphanDate.FollowUpDate = &date
	if r := ValidateActivity(orphanDate); r.Valid() {
		t.Fatal("followUpDate without followUpRequired accepted")
	}
}

func TestAutomatedActivityNeedsRules(t *testing.T) {
	a := validActivity()
	a.AutomatedActivity = true
	if r := ValidateActivity(a); r.Valid() {
		t.Fatal("automated activity without rules accepted")
	}
	a.AutomationRules = []string{"post-call-followup"}
	if r := ValidateActivity(a); !r.Valid() {
		t.Fatalf("automated activity with rules rejected: %+v", r.Errors)
	}
}

func TestValidateCampaign(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &Campaign{
		Entity:    Entity{Type: KindCampaign, ID: "q1-outreach", Created: time.Now(), Updated: time.Now()},
		Name:      "Q1 Outreach",
		Status:    CampaignActive,
		StartDate: start,
		EndDate:   start.AddDate(0, 1, 0),
		Targeting: Targeting{Industries: []string{"restaurants"}, MinScore: 40},
	}
	if r := ValidateCampaign(c); !r.Valid() {
		t.Fatalf("valid campaign rejected: %+v", r.Errors)
	}

	c.Status = "launching"
	c.EndDate = start.AddDate(0, -1, 0)
	c.Targeting.MinScore = 150
	r := ValidateCampaign(c)
	if len(r.Errors) < 3 {
		t.Fatalf("expected all violations collected, got %+v", r.Errors)
	}
}

func TestValidateInputStructTags(t *testing.T) {
	in := ProspectInput{
		BusinessName: "",
		Industry:     "restaurants",
		City:         "Denver",
		State:        "CO",
		Email:        "not-an-email",
	}
	r := ValidateInput(in)
	if r.Valid() {
		t.Fatal("invalid input accepted")
	}
	byField := map[string]string{}
	for _, fe := range r.Errors {
		byField[fe.Field] = fe.Code
	}
	if byField["businessName"] != CodeRequired {
		t.Errorf("businessName: %+v", r.Errors)
	}
	if byField["email"] != CodeInvalidFormat {
		t.Errorf("email: %+v", r.Errors)
	}
}

func TestStrictDecodeRejectsUnknownFields(t *testing.T) {
	var in ActivityInput
	payload := `{"prospectId":"x","activityType":"call","outcome":"answered","surprise":true}`
	if err := StrictDecodeJSON(strings.NewReader(payload), &in); err == nil {
		t.Fatal("unknown input field accepted")
	}
}
