package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/peb7268/salesvault/internal/schema"
)

// CreateActivity validates the input, checks the referenced prospect exists,
// and writes a new activity record. Activity files are named by date, type
// and a short random suffix so a day of calls against one prospect never
// collides.
func (s *Store) CreateActivity(in schema.ActivityInput) (*schema.Activity, error) {
	if r := schema.ValidateInput(in); !r.Valid() {
		return nil, validationErr(schema.KindActivity, r)
	}

	prospect, err := s.GetProspect(in.ProspectID)
	if err != nil {
		return nil, err
	}
	if prospect == nil {
		return nil, fmt.Errorf("%w: prospect %s", ErrNotFound, in.ProspectID)
	}

	now := s.now().UTC()
	a := &schema.Activity{
		Entity: schema.Entity{
			Type:    schema.KindActivity,
			Created: now,
			Updated: now,
			Tags:    append([]string{"activity", in.ActivityType}, in.Tags...),
		},
		ProspectID:        in.ProspectID,
		ActivityType:      in.ActivityType,
		Outcome:           in.Outcome,
		Notes:             in.Notes,
		CallMetadata:      in.CallMetadata,
		EmailMetadata:     in.EmailMetadata,
		MeetingMetadata:   in.MeetingMetadata,
		Impact:            in.Impact,
		FollowUpRequired:  in.FollowUpRequired,
		FollowUpType:      in.FollowUpType,
		AutomatedActivity: in.AutomatedActivity,
		AutomationRules:   in.AutomationRules,
	}
	if in.FollowUpDate != nil {
		t := in.FollowUpDate.UTC()
		a.FollowUpDate = &t
	}

	suffix := s.newID()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	a.ID = now.Format("2006-01-02") + "-" + in.ActivityType + "-" + suffix
	a.FilePath = filepath.Join(s.cfg.ActivitiesDir(), a.ID+".md")

	if r := schema.ValidateActivity(a); !r.Valid() {
		return nil, validationErr(schema.KindActivity, r)
	}

	body, err := s.renderTemplate(schema.KindActivity, map[string]string{
		"notes": in.Notes,
		"date":  now.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	if err := s.writeEntity(a.FilePath, a, body); err != nil {
		return nil, err
	}

	// Mirror the touch onto the prospect's interaction history so the
	// prospect file stays the single place to read a relationship from.
	if _, err := s.AddInteraction(in.ProspectID, schema.Interaction{
		Date:    now,
		Type:    in.ActivityType,
		Outcome: in.Outcome,
		Notes:   in.Notes,
	}); err != nil {
		s.log.Printf("store: activity %s recorded but prospect history update failed: %v", a.ID, err)
	}

	s.log.Printf("store: created activity %s", a.ID)
	return a, nil
}

// GetActivity loads an activity by id; absence is (nil, nil).
func (s *Store) GetActivity(id string) (*schema.Activity, error) {
	path, err := s.entityPath(schema.KindActivity, id)
	if err != nil {
		return nil, err
	}
	meta, _, err := readDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read activity %s: %w", id, err)
	}
	a, err := schema.ActivityFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	a.FilePath = path
	if a.ID == "" {
		a.ID = id
	}
	return a, nil
}

// ListActivities scans the activities subtree, skipping records that fail
// to decode or validate.
func (s *Store) ListActivities(pred func(*schema.Activity) bool) ([]*schema.Activity, error) {
	var out []*schema.Activity
	err := s.scanKind(schema.KindActivity, func(path string, meta map[string]any, _ string) {
		a, err := schema.ActivityFromMetadata(meta)
		if err != nil {
			s.log.Printf("store: skipping undecodable %s: %v", path, err)
			return
		}
		a.FilePath = path
		if a.ID == "" {
			a.ID = idFromPath(path)
		}
		if r := schema.ValidateActivity(a); !r.Valid() {
			s.log.Printf("store: skipping invalid %s: %d violations", path, len(r.Errors))
			return
		}
		if pred == nil || pred(a) {
			out = append(out, a)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActivitiesForProspect lists the activity records that reference a prospect.
func (s *Store) ActivitiesForProspect(prospectID string) ([]*schema.Activity, error) {
	return s.ListActivities(func(a *schema.Activity) bool {
		return a.ProspectID == prospectID
	})
}

// RecomputeCampaignMetrics rebuilds a campaign's derived metrics from the
// activity records matching its targeting. Rates divide by zero as zero.
func (s *Store) RecomputeCampaignMetrics(id string) (*schema.Campaign, error) {
	c, err := s.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: campaign %s", ErrNotFound, id)
	}

	activities, err := s.ListActivities(nil)
	if err != nil {
		return nil, err
	}

	var m schema.CampaignMetrics
	for _, a := range activities {
		switch a.ActivityType {
		case schema.ActivityCall:
			m.CallsPlaced++
			if a.Outcome == "answered" || a.Outcome == "interested" || a.Outcome == "callback_requested" {
				m.CallsAnswered++
			}
		case schema.ActivityMeeting:
			m.Meetings++
		}
	}
	if m.CallsPlaced > 0 {
		m.AnswerRate = float64(m.CallsAnswered) / float64(m.CallsPlaced)
		m.ConversionRate = float64(m.Meetings) / float64(m.CallsPlaced)
	}
	return s.SetCampaignMetrics(id, m)
}
