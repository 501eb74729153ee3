// Package schema defines the persisted sales entities (prospects, campaigns,
// activities), their frontmatter encoding, and the field-level validation
// rules the document store enforces before every write.
package schema

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/pipeline"
)

// Kind discriminates the persisted entity types. It is stored in the
// frontmatter `type` field of every file.
type Kind string

const (
	KindProspect Kind = "prospect"
	KindCampaign Kind = "campaign"
	KindActivity Kind = "activity"
)

// Entity carries the fields shared by every persisted record. FilePath and
// Extra never serialize into frontmatter directly: the path is derived from
// the vault layout, and Extra holds unknown frontmatter keys preserved
// verbatim across round trips.
type Entity struct {
	Type     Kind           `yaml:"type"`
	ID       string         `yaml:"id"`
	Created  time.Time      `yaml:"created"`
	Updated  time.Time      `yaml:"updated"`
	Tags     []string       `yaml:"tags,omitempty"`
	FilePath string         `yaml:"-"`
	Extra    map[string]any `yaml:"-"`
}

// Location places a business geographically.
type Location struct {
	City    string `yaml:"city,omitempty"`
	State   string `yaml:"state,omitempty"`
	Country string `yaml:"country,omitempty"`
}

// Business size categories and the employee-count range each implies.
const (
	SizeMicro  = "micro"
	SizeSmall  = "small"
	SizeMedium = "medium"
)

// SizeRange returns the inclusive employee-count bounds implied by a size
// category. ok is false for unknown categories.
func SizeRange(category string) (min, max int, ok bool) {
	switch category {
	case SizeMicro:
		return 1, 9, true
	case SizeSmall:
		return 10, 49, true
	case SizeMedium:
		return 50, 999, true
	default:
		return 0, 0, false
	}
}

// BusinessSize captures how large a prospect's business is.
type BusinessSize struct {
	Category         string   `yaml:"category,omitempty"`
	EmployeeCount    *int     `yaml:"employeeCount,omitempty"`
	EstimatedRevenue *float64 `yaml:"estimatedRevenue,omitempty"`
}

// DigitalPresence flags which online surfaces the business already has.
type DigitalPresence struct {
	HasWebsite        bool `yaml:"hasWebsite"`
	HasGoogleBusiness bool `yaml:"hasGoogleBusiness"`
	HasSocialMedia    bool `yaml:"hasSocialMedia"`
	HasOnlineReviews  bool `yaml:"hasOnlineReviews"`
}

// Industries is the fixed category enum for prospect businesses.
var Industries = []string{
	"restaurants",
	"retail",
	"professional_services",
	"healthcare",
	"fitness",
	"automotive",
	"home_services",
	"beauty_wellness",
	"construction",
	"other",
}

// KnownIndustry reports whether the value is a member of the industry enum.
func KnownIndustry(value string) bool {
	for _, industry := range Industries {
		if industry == value {
			return true
		}
	}
	return false
}

// Business describes the prospect's company.
type Business struct {
	Name            string          `yaml:"name"`
	Industry        string          `yaml:"industry"`
	Location        Location        `yaml:"location"`
	Size            BusinessSize    `yaml:"size"`
	DigitalPresence DigitalPresence `yaml:"digitalPresence"`
}

// ContactInfo holds how to reach the prospect.
type ContactInfo struct {
	Phone          string            `yaml:"phone,omitempty"`
	Email          string            `yaml:"email,omitempty"`
	Website        string            `yaml:"website,omitempty"`
	DecisionMaker  string            `yaml:"decisionMaker,omitempty"`
	SocialProfiles map[string]string `yaml:"socialProfiles,omitempty"`
}

// QualificationScore is the capped, six-component weighted sum estimating
// prospect value. Total must stay within pipeline.ScoreTolerance of the
// breakdown sum.
type QualificationScore struct {
	Total       float64            `yaml:"total"`
	Breakdown   pipeline.Breakdown `yaml:"breakdown"`
	LastUpdated time.Time          `yaml:"lastUpdated"`
}

// Interaction is one entry in a prospect's append-only contact history.
type Interaction struct {
	Date    time.Time `yaml:"date"`
	Type    string    `yaml:"type"`
	Outcome string    `yaml:"outcome,omitempty"`
	Notes   string    `yaml:"notes,omitempty"`
}

// Prospect is a qualified-or-not sales lead persisted as one vault file.
type Prospect struct {
	Entity             `yaml:",inline"`
	Business           Business           `yaml:"business"`
	Contact            ContactInfo        `yaml:"contact"`
	PipelineStage      pipeline.Stage     `yaml:"pipelineStage"`
	QualificationScore QualificationScore `yaml:"qualificationScore"`
	Interactions       []Interaction      `yaml:"interactions,omitempty"`
	Competitors        []string           `yaml:"competitors,omitempty"`
}

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignArchived  = "archived"
)

var campaignStatuses = []string{
	CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted, CampaignArchived,
}

// Targeting narrows which prospects a campaign addresses.
type Targeting struct {
	Industries     []string `yaml:"industries,omitempty"`
	SizeCategories []string `yaml:"sizeCategories,omitempty"`
	MinRevenue     float64  `yaml:"minRevenue,omitempty"`
	MaxRevenue     float64  `yaml:"maxRevenue,omitempty"`
	MinScore       float64  `yaml:"minScore,omitempty"`
}

// CampaignMetrics are derived counters. They are computed from activity
// records and must never be hand-edited; the validator rejects direct
// updates to them.
type CampaignMetrics struct {
	CallsPlaced    int     `yaml:"callsPlaced"`
	CallsAnswered  int     `yaml:"callsAnswered"`
	Meetings       int     `yaml:"meetings"`
	AnswerRate     float64 `yaml:"answerRate"`
	ConversionRate float64 `yaml:"conversionRate"`
	TotalCost      float64 `yaml:"totalCost"`
	CostPerLead    float64 `yaml:"costPerLead"`
}

// Campaign is an outreach effort persisted as one vault file.
type Campaign struct {
	Entity    `yaml:",inline"`
	Name      string            `yaml:"name"`
	Status    string            `yaml:"status"`
	StartDate time.Time         `yaml:"startDate,omitempty"`
	EndDate   time.Time         `yaml:"endDate,omitempty"`
	Targeting Targeting         `yaml:"targeting"`
	Templates map[string]string `yaml:"templates,omitempty"`
	Metrics   CampaignMetrics   `yaml:"metrics"`
}

// Activity types.
const (
	ActivityCall     = "call"
	ActivityEmail    = "email"
	ActivityMeeting  = "meeting"
	ActivityResearch = "research"
	ActivityProposal = "proposal"
	ActivityFollowUp = "follow_up"
)

// outcomesByType whitelists the outcomes each activity type may report.
var outcomesByType = map[string][]string{
	ActivityCall:     {"answered", "voicemail", "busy", "no_answer", "disconnected", "interested", "not_interested", "callback_requested"},
	ActivityEmail:    {"sent", "delivered", "opened", "replied", "bounced", "unsubscribed"},
	ActivityMeeting:  {"scheduled", "completed", "no_show", "rescheduled", "cancelled"},
	ActivityResearch: {"completed", "needs_follow_up"},
	ActivityProposal: {"sent", "accepted", "rejected", "negotiating"},
	ActivityFollowUp: {"completed", "rescheduled", "no_response"},
}

// OutcomeAllowed reports whether the outcome is legal for the activity type.
func OutcomeAllowed(activityType, outcome string) bool {
	for _, allowed := range outcomesByType[activityType] {
		if allowed == outcome {
			return true
		}
	}
	return false
}

// CallMetadata is required on call activities.
type CallMetadata struct {
	Duration      int    `yaml:"duration"`
	Answered      bool   `yaml:"answered"`
	RecordingURL  string `yaml:"recordingUrl,omitempty"`
	VoicemailLeft bool   `yaml:"voicemailLeft,omitempty"`
}

// EmailMetadata is required on email activities.
type EmailMetadata struct {
	Subject string `yaml:"subject"`
	Opened  bool   `yaml:"opened,omitempty"`
	Replied bool   `yaml:"replied,omitempty"`
}

// MeetingMetadata is required on meeting activities.
type MeetingMetadata struct {
	Location        string   `yaml:"location,omitempty"`
	Attendees       []string `yaml:"attendees,omitempty"`
	DurationMinutes int      `yaml:"durationMinutes"`
}

// Impact records a stage change or score delta attributed to an activity.
type Impact struct {
	StageFrom  pipeline.Stage `yaml:"stageFrom,omitempty"`
	StageTo    pipeline.Stage `yaml:"stageTo,omitempty"`
	ScoreDelta float64        `yaml:"scoreDelta,omitempty"`
}

// Activity is one contact event referencing a prospect by id.
type Activity struct {
	Entity            `yaml:",inline"`
	ProspectID        string           `yaml:"prospectId"`
	ActivityType      string           `yaml:"activityType"`
	Outcome           string           `yaml:"outcome"`
	Notes             string           `yaml:"notes,omitempty"`
	CallMetadata      *CallMetadata    `yaml:"callMetadata,omitempty"`
	EmailMetadata     *EmailMetadata   `yaml:"emailMetadata,omitempty"`
	MeetingMetadata   *MeetingMetadata `yaml:"meetingMetadata,omitempty"`
	Impact            *Impact          `yaml:"impact,omitempty"`
	FollowUpRequired  bool             `yaml:"followUpRequired,omitempty"`
	FollowUpDate      *time.Time       `yaml:"followUpDate,omitempty"`
	FollowUpType      string           `yaml:"followUpType,omitempty"`
	AutomatedActivity bool             `yaml:"automatedActivity,omitempty"`
	AutomationRules   []string         `yaml:"automationRules,omitempty"`
}

// knownKeys lists the top-level frontmatter keys the schema owns per kind.
// Anything else in a file is preserved in Entity.Extra, untouched and
// unvalidated, so users can attach their own fields.
var knownKeys = map[Kind][]string{
	KindProspect: {"type", "id", "created", "updated", "tags", "business", "contact", "pipelineStage", "qualificationScore", "interactions", "competitors"},
	KindCampaign: {"type", "id", "created", "updated", "tags", "name", "status", "startDate", "endDate", "targeting", "templates", "metrics"},
	KindActivity: {"type", "id", "created", "updated", "tags", "prospectId", "activityType", "outcome", "notes", "callMetadata", "emailMetadata", "meetingMetadata", "impact", "followUpRequired", "followUpDate", "followUpType", "automatedActivity", "automationRules"},
}

// decode re-marshals a metadata map into a typed entity. YAML is used as the
// bridge so frontmatter field names and struct tags stay in one vocabulary.
func decode(meta map[string]any, target any) error {
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("schema: encode metadata: %w", err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("schema: decode metadata: %w", err)
	}
	return nil
}

// encode converts a typed entity back into a metadata map.
func encode(entity any) (map[string]any, error) {
	raw, err := yaml.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("schema: encode entity: %w", err)
	}
	var meta map[string]any
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("schema: decode entity map: %w", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

func extraKeys(kind Kind, meta map[string]any) map[string]any {
	known := make(map[string]bool, len(knownKeys[kind]))
	for _, key := range knownKeys[kind] {
		known[key] = true
	}
	var extra map[string]any
	for key, value := range meta {
		if known[key] {
			continue
		}
		if extra == nil {
			extra = map[string]any{}
		}
		extra[key] = value
	}
	return extra
}

// normalizeMetadata cleans a parsed frontmatter map before it is decoded
// into a typed entity. Hand-edited files drift from the canonical shapes:
// tags written as one comma-delimited string and dates in loose formats
// must still decode instead of dropping the record from scans.
func normalizeMetadata(meta map[string]any) map[string]any {
	out := frontmatter.NormalizeDates(meta)
	if raw, ok := out["tags"]; ok {
		if tags := frontmatter.ExtractTags(raw); tags != nil {
			out["tags"] = tags
		} else {
			delete(out, "tags")
		}
	}
	return out
}

// ProspectFromMetadata builds a typed prospect from parsed frontmatter,
// capturing unknown keys in Extra.
func ProspectFromMetadata(meta map[string]any) (*Prospect, error) {
	meta = normalizeMetadata(meta)
	var p Prospect
	if err := decode(meta, &p); err != nil {
		return nil, err
	}
	p.Extra = extraKeys(KindProspect, meta)
	if p.Type == "" {
		p.Type = KindProspect
	}
	return &p, nil
}

// CampaignFromMetadata builds a typed campaign from parsed frontmatter.
func CampaignFromMetadata(meta map[string]any) (*Campaign, error) {
	meta = normalizeMetadata(meta)
	var c Campaign
	if err := decode(meta, &c); err != nil {
		return nil, err
	}
	c.Extra = extraKeys(KindCampaign, meta)
	if c.Type == "" {
		c.Type = KindCampaign
	}
	return &c, nil
}

// ActivityFromMetadata builds a typed activity from parsed frontmatter.
// A prospect reference written as a wiki link resolves to its target id.
func ActivityFromMetadata(meta map[string]any) (*Activity, error) {
	meta = normalizeMetadata(meta)
	var a Activity
	if err := decode(meta, &a); err != nil {
		return nil, err
	}
	a.Extra = extraKeys(KindActivity, meta)
	if a.Type == "" {
		a.Type = KindActivity
	}
	if target, _, ok := frontmatter.ParseWikiLink(a.ProspectID); ok {
		a.ProspectID = target
	}
	return &a, nil
}

// Metadata renders the prospect as a frontmatter map, layering preserved
// extra fields back in without letting them shadow schema-owned keys.
func (p *Prospect) Metadata() (map[string]any, error) {
	meta, err := encode(p)
	if err != nil {
		return nil, err
	}
	mergeExtra(meta, p.Extra)
	return meta, nil
}

// Metadata renders the campaign as a frontmatter map.
func (c *Campaign) Metadata() (map[string]any, error) {
	meta, err := encode(c)
	if err != nil {
		return nil, err
	}
	mergeExtra(meta, c.Extra)
	return meta, nil
}

// Metadata renders the activity as a frontmatter map.
func (a *Activity) Metadata() (map[string]any, error) {
	meta, err := encode(a)
	if err != nil {
		return nil, err
	}
	mergeExtra(meta, a.Extra)
	return meta, nil
}

// StageTag is the tag that mirrors a prospect's pipeline stage inside its
// tag set. The board synchronizer swaps it on every transition.
func StageTag(stage pipeline.Stage) string {
	return "stage/" + string(stage)
}

// ReplaceStageTag returns tags with any stage tag removed and the tag for
// the given stage appended.
func ReplaceStageTag(tags []string, stage pipeline.Stage) []string {
	out := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		if strings.HasPrefix(tag, "stage/") {
			continue
		}
		out = append(out, tag)
	}
	return append(out, StageTag(stage))
}

// Metadata renders the score as a nested frontmatter value so partial
// updates can carry a recomputed score.
func (s QualificationScore) Metadata() (map[string]any, error) {
	return encode(s)
}

// MetricsMetadata renders derived campaign metrics as a nested frontmatter
// value. Only the metrics recomputation path should use this; direct edits
// to the metrics block are rejected by validation.
func MetricsMetadata(m CampaignMetrics) (map[string]any, error) {
	return encode(m)
}

// ScoreFromValue decodes a frontmatter value (nested map) into a typed
// qualification score.
func ScoreFromValue(value any) (QualificationScore, error) {
	var score QualificationScore
	raw, err := yaml.Marshal(value)
	if err != nil {
		return score, fmt.Errorf("schema: encode score value: %w", err)
	}
	if err := yaml.Unmarshal(raw, &score); err != nil {
		return score, fmt.Errorf("schema: decode score value: %w", err)
	}
	return score, nil
}

func mergeExtra(meta map[string]any, extra map[string]any) {
	for key, value := range extra {
		if _, owned := meta[key]; !owned {
			meta[key] = value
		}
	}
}
