package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Input structs are the strict creation surface: unlike persisted
// frontmatter, unknown fields here are rejected (see StrictDecodeJSON), and
// the struct tags below are enforced with go-playground/validator before any
// business rules run.

// ProspectInput is the payload accepted by the document store's prospect
// creation operation.
type ProspectInput struct {
	BusinessName     string   `json:"businessName" validate:"required"`
	Industry         string   `json:"industry" validate:"required"`
	City             string   `json:"city" validate:"required"`
	State            string   `json:"state" validate:"required"`
	Country          string   `json:"country,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Email            string   `json:"email,omitempty" validate:"omitempty,email"`
	Website          string   `json:"website,omitempty"`
	DecisionMaker    string   `json:"decisionMaker,omitempty"`
	SizeCategory     string   `json:"sizeCategory,omitempty" validate:"omitempty,oneof=micro small medium"`
	EmployeeCount    *int     `json:"employeeCount,omitempty" validate:"omitempty,min=1,max=999"`
	EstimatedRevenue *float64 `json:"estimatedRevenue,omitempty" validate:"omitempty,min=0"`
	HasWebsite       bool     `json:"hasWebsite,omitempty"`
	HasGoogleProfile bool     `json:"hasGoogleProfile,omitempty"`
	HasSocialMedia   bool     `json:"hasSocialMedia,omitempty"`
	HasOnlineReviews bool     `json:"hasOnlineReviews,omitempty"`
	Competitors      []string `json:"competitors,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// CampaignInput is the payload accepted by campaign creation.
type CampaignInput struct {
	Name           string            `json:"name" validate:"required"`
	Status         string            `json:"status,omitempty" validate:"omitempty,oneof=draft active paused completed archived"`
	StartDate      *time.Time        `json:"startDate,omitempty"`
	EndDate        *time.Time        `json:"endDate,omitempty"`
	Industries     []string          `json:"industries,omitempty"`
	SizeCategories []string          `json:"sizeCategories,omitempty" validate:"omitempty,dive,oneof=micro small medium"`
	MinRevenue     float64           `json:"minRevenue,omitempty" validate:"omitempty,min=0"`
	MaxRevenue     float64           `json:"maxRevenue,omitempty" validate:"omitempty,min=0"`
	MinScore       float64           `json:"minScore,omitempty" validate:"omitempty,min=0,max=100"`
	Templates      map[string]string `json:"templates,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

// ActivityInput is the payload accepted by activity creation, including from
// the webhook bridge.
type ActivityInput struct {
	ProspectID        string           `json:"prospectId" validate:"required"`
	ActivityType      string           `json:"activityType" validate:"required,oneof=call email meeting research proposal follow_up"`
	Outcome           string           `json:"outcome" validate:"required"`
	Notes             string           `json:"notes,omitempty"`
	CallMetadata      *CallMetadata    `json:"callMetadata,omitempty"`
	EmailMetadata     *EmailMetadata   `json:"emailMetadata,omitempty"`
	MeetingMetadata   *MeetingMetadata `json:"meetingMetadata,omitempty"`
	Impact            *Impact          `json:"impact,omitempty"`
	FollowUpRequired  bool             `json:"followUpRequired,omitempty"`
	FollowUpDate      *time.Time       `json:"followUpDate,omitempty"`
	FollowUpType      string           `json:"followUpType,omitempty"`
	AutomatedActivity bool             `json:"automatedActivity,omitempty"`
	AutomationRules   []string         `json:"automationRules,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report FieldError.Field using json tag names so CLI and webhook
	// callers see the names they sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateInput runs the struct-tag rules for an input payload and converts
// violations into the shared Result shape. All violations are collected.
func ValidateInput(input any) Result {
	var r Result
	err := validate.Struct(input)
	if err == nil {
		return r
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		r.add("", CodeInvalidFormat, nil, "input is not validatable: %v", err)
		return r
	}
	for _, fe := range verrs {
		// Drop the leading struct name from the namespace so fields read
		// the way they were submitted, e.g. "businessName".
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch fe.Tag() {
		case "required":
			r.add(field, CodeRequired, fe.Value(), "%s is required", field)
		case "oneof":
			r.add(field, CodeInvalidEnum, fe.Value(), "%s must be one of: %s", field, fe.Param())
		case "min":
			r.add(field, CodeOutOfRange, fe.Value(), "%s must be at least %s", field, fe.Param())
		case "max":
			r.add(field, CodeOutOfRange, fe.Value(), "%s must be at most %s", field, fe.Param())
		case "email":
			r.add(field, CodeInvalidFormat, fe.Value(), "%s must be a valid email address", field)
		default:
			r.add(field, CodeInvalidFormat, fe.Value(), "%s is invalid", field)
		}
	}
	return r
}

// StrictDecodeJSON decodes an input payload rejecting unknown fields. This
// is the stricter surface for machine callers; persisted frontmatter stays
// open-ended.
func StrictDecodeJSON(r io.Reader, target any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("schema: decode input: %w", err)
	}
	return nil
}
