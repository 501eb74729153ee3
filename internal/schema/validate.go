package schema

import (
	"fmt"
	"strings"

	"github.com/peb7268/salesvault/internal/pipeline"
)

// Validation error codes. Codes are stable identifiers callers can branch
// on; messages are for humans.
const (
	CodeRequired        = "required"
	CodeInvalidEnum     = "invalid_enum"
	CodeOutOfRange      = "out_of_range"
	CodeScoreCap        = "score_cap"
	CodeScoreSum        = "score_sum"
	CodeSizeMismatch    = "size_mismatch"
	CodeOutcomeMismatch = "outcome_mismatch"
	CodeFollowUpJoint   = "followup_joint"
	CodeMetadataMissing = "metadata_missing"
	CodeAutomationRules = "automation_rules"
	CodeDerivedField    = "derived_field"
	CodeInvalidFormat   = "invalid_format"
)

// FieldError describes one rule violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Value   any    `json:"value,omitempty"`
}

// Result collects every violation found in one pass; validation never
// aborts early.
type Result struct {
	Errors []FieldError
}

// Valid reports whether no violations were collected.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

func (r *Result) add(field, code string, value any, format string, args ...any) {
	r.Errors = append(r.Errors, FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Value:   value,
	})
}

// ValidationError wraps a failed Result as a typed error for callers that
// propagate through error returns.
type ValidationError struct {
	Kind   Kind
	Result Result
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field, fe.Code))
	}
	return fmt.Sprintf("schema: %s validation failed: %s", e.Kind, strings.Join(fields, ", "))
}

// ValidateProspect applies type and business rules to a prospect record.
func ValidateProspect(p *Prospect) Result {
	var r Result
	if p.ID == "" {
		r.add("id", CodeRequired, nil, "id is required")
	}
	if p.Business.Name == "" {
		r.add("business.name", CodeRequired, nil, "business name is required")
	}
	if p.Business.Industry != "" && !KnownIndustry(p.Business.Industry) {
		r.add("business.industry", CodeInvalidEnum, p.Business.Industry,
			"industry %q is not a known category", p.Business.Industry)
	}
	if _, ok := pipeline.ParseStage(string(p.PipelineStage)); !ok {
		r.add("pipelineStage", CodeInvalidEnum, string(p.PipelineStage),
			"unknown pipeline stage %q", p.PipelineStage)
	}
	validateSize(&r, p.Business.Size)
	validateScore(&r, p.QualificationScore)
	return r
}

func validateSize(r *Result, size BusinessSize) {
	if size.Category == "" {
		if size.EmployeeCount != nil {
			r.add("business.size.category", CodeRequired, nil,
				"employeeCount set without a size category")
		}
		return
	}
	min, max, ok := SizeRange(size.Category)
	if !ok {
		r.add("business.size.category", CodeInvalidEnum, size.Category,
			"size category %q is not one of micro, small, medium", size.Category)
		return
	}
	if size.EmployeeCount != nil {
		if count := *size.EmployeeCount; count < min || count > max {
			r.add("business.size.employeeCount", CodeSizeMismatch, count,
				"employee count %d outside %s range %d-%d", count, size.Category, min, max)
		}
	}
	if size.EstimatedRevenue != nil && *size.EstimatedRevenue < 0 {
		r.add("business.size.estimatedRevenue", CodeOutOfRange, *size.EstimatedRevenue,
			"estimated revenue must not be negative")
	}
}

func validateScore(r *Result, score QualificationScore) {
	b := score.Breakdown
	checks := []struct {
		field string
		value float64
		cap   float64
	}{
		{"businessSize", b.BusinessSize, pipeline.CapBusinessSize},
		{"digitalPresence", b.DigitalPresence, pipeline.CapDigitalPresence},
		{"competitorGaps", b.CompetitorGaps, pipeline.CapCompetitorGaps},
		{"location", b.Location, pipeline.CapLocation},
		{"industry", b.Industry, pipeline.CapIndustry},
		{"revenueIndicators", b.RevenueIndicators, pipeline.CapRevenueIndicators},
	}
	capsOK := true
	for _, c := range checks {
		field := "qualificationScore.breakdown." + c.field
		if c.value < 0 {
			r.add(field, CodeOutOfRange, c.value, "component must not be negative")
			capsOK = false
		}
		if c.value > c.cap {
			r.add(field, CodeScoreCap, c.value, "component %.1f exceeds cap %.0f", c.value, c.cap)
			capsOK = false
		}
	}
	if capsOK && !pipeline.ValidateScore(score.Total, b) {
		r.add("qualificationScore.total", CodeScoreSum, score.Total,
			"total %.1f does not match breakdown sum %.1f", score.Total, b.Total())
	}
}

// ValidateCampaign applies type and business rules to a campaign record.
func ValidateCampaign(c *Campaign) Result {
	var r Result
	if c.ID == "" {
		r.add("id", CodeRequired, nil, "id is required")
	}
	if c.Name == "" {
		r.add("name", CodeRequired, nil, "campaign name is required")
	}
	statusOK := false
	for _, status := range campaignStatuses {
		if c.Status == status {
			statusOK = true
			break
		}
	}
	if !statusOK {
		r.add("status", CodeInvalidEnum, c.Status, "unknown campaign status %q", c.Status)
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		r.add("endDate", CodeOutOfRange, c.EndDate, "end date precedes start date")
	}
	for _, industry := range c.Targeting.Industries {
		if !KnownIndustry(industry) {
			r.add("targeting.industries", CodeInvalidEnum, industry,
				"industry %q is not a known category", industry)
		}
	}
	for _, category := range c.Targeting.SizeCategories {
		if _, _, ok := SizeRange(category); !ok {
			r.add("targeting.sizeCategories", CodeInvalidEnum, category,
				"size category %q is not one of micro, small, medium", category)
		}
	}
	if c.Targeting.MinScore < 0 || c.Targeting.MinScore > 100 {
		r.add("targeting.minScore", CodeOutOfRange, c.Targeting.MinScore,
			"score threshold must be within [0,100]")
	}
	if m := c.Metrics; m.CallsPlaced < 0 || m.CallsAnswered < 0 || m.Meetings < 0 ||
		m.TotalCost < 0 || m.CostPerLead < 0 {
		r.add("metrics", CodeOutOfRange, nil, "metrics counters must not be negative")
	}
	return r
}

// ValidateActivity applies type and business rules to an activity record.
func ValidateActivity(a *Activity) Result {
	var r Result
	if a.ID == "" {
		r.add("id", CodeRequired, nil, "id is required")
	}
	if a.ProspectID == "" {
		r.add("prospectId", CodeRequired, nil, "prospectId is required")
	}
	if _, ok := outcomesByType[a.ActivityType]; !ok {
		r.add("activityType", CodeInvalidEnum, a.ActivityType,
			"unknown activity type %q", a.ActivityType)
	} else {
		if a.Outcome == "" {
			r.add("outcome", CodeRequired, nil, "outcome is required")
		} else if !OutcomeAllowed(a.ActivityType, a.Outcome) {
			r.add("outcome", CodeOutcomeMismatch, a.Outcome,
				"outcome %q is not valid for %s activities", a.Outcome, a.ActivityType)
		}
		validateActivityMetadata(&r, a)
	}
	validateFollowUp(&r, a)
	if a.AutomatedActivity && len(a.AutomationRules) == 0 {
		r.add("automationRules", CodeAutomationRules, nil,
			"automated activities require at least one automation rule")
	}
	if a.Impact != nil && a.Impact.StageFrom != "" && a.Impact.StageTo != "" {
		if !pipeline.IsLegalTransition(a.Impact.StageFrom, a.Impact.StageTo) {
			r.add("impact", CodeInvalidEnum, fmt.Sprintf("%s -> %s", a.Impact.StageFrom, a.Impact.StageTo),
				"recorded stage change is not a legal transition")
		}
	}
	return r
}

// validateActivityMetadata enforces the type-specific metadata presence
// rules. Absence is a validation error, never default-filled.
func validateActivityMetadata(r *Result, a *Activity) {
	switch a.ActivityType {
	case ActivityCall:
		if a.CallMetadata == nil {
			r.add("callMetadata", CodeMetadataMissing, nil, "call activities require callMetadata")
		} else if a.CallMetadata.Duration < 0 {
			r.add("callMetadata.duration", CodeOutOfRange, a.CallMetadata.Duration,
				"call duration must not be negative")
		}
	case ActivityEmail:
		if a.EmailMetadata == nil {
			r.add("emailMetadata", CodeMetadataMissing, nil, "email activities require emailMetadata")
		} else if a.EmailMetadata.Subject == "" {
			r.add("emailMetadata.subject", CodeRequired, nil, "email subject is required")
		}
	case ActivityMeeting:
		if a.MeetingMetadata == nil {
			r.add("meetingMetadata", CodeMetadataMissing, nil, "meeting activities require meetingMetadata")
		} else if a.MeetingMetadata.DurationMinutes < 0 {
			r.add("meetingMetadata.durationMinutes", CodeOutOfRange, a.MeetingMetadata.DurationMinutes,
				"meeting duration must not be negative")
		}
	}
}

// validateFollowUp enforces the joint-presence rule: the three follow-up
// fields appear together or not at all.
func validateFollowUp(r *Result, a *Activity) {
	hasDate := a.FollowUpDate != nil
	hasType := a.FollowUpType != ""
	if a.FollowUpRequired {
		if !hasDate || !hasType {
			r.add("followUpDate", CodeFollowUpJoint, nil,
				"followUpRequired needs followUpDate and followUpType")
		}
		return
	}
	if hasDate || hasType {
		r.add("followUpRequired", CodeFollowUpJoint, nil,
			"follow-up fields present without followUpRequired")
	}
}

// Validate dispatches to the kind-specific validator for a decoded record.
func Validate(kind Kind, entity any) Result {
	switch kind {
	case KindProspect:
		if p, ok := entity.(*Prospect); ok {
			return ValidateProspect(p)
		}
	case KindCampaign:
		if c, ok := entity.(*Campaign); ok {
			return ValidateCampaign(c)
		}
	case KindActivity:
		if a, ok := entity.(*Activity); ok {
			return ValidateActivity(a)
		}
	}
	var r Result
	r.add("type", CodeInvalidEnum, kind, "unsupported entity kind %q", kind)
	return r
}
