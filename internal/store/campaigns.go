package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/schema"
)

// CreateCampaign validates the input and writes a new campaign file. New
// campaigns start in draft status unless the input says otherwise; metrics
// always start zeroed because they are derived, never supplied.
func (s *Store) CreateCampaign(in schema.CampaignInput) (*schema.Campaign, error) {
	if r := schema.ValidateInput(in); !r.Valid() {
		return nil, validationErr(schema.KindCampaign, r)
	}

	now := s.now().UTC()
	status := in.Status
	if status == "" {
		status = schema.CampaignDraft
	}
	c := &schema.Campaign{
		Entity: schema.Entity{
			Type:    schema.KindCampaign,
			Created: now,
			Updated: now,
			Tags:    append([]string{"campaign"}, in.Tags...),
		},
		Name:   in.Name,
		Status: status,
		Targeting: schema.Targeting{
			Industries:     in.Industries,
			SizeCategories: in.SizeCategories,
			MinRevenue:     in.MinRevenue,
			MaxRevenue:     in.MaxRevenue,
			MinScore:       in.MinScore,
		},
		Templates: in.Templates,
	}
	if in.StartDate != nil {
		c.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		c.EndDate = in.EndDate.UTC()
	}

	slug := frontmatter.GenerateSlug(in.Name)
	if slug == "" {
		var r schema.Result
		r.Errors = append(r.Errors, schema.FieldError{
			Field: "name", Code: schema.CodeInvalidFormat,
			Message: "campaign name yields an empty file name", Value: in.Name,
		})
		return nil, validationErr(schema.KindCampaign, r)
	}
	path, id, err := s.uniquePath(s.cfg.CampaignsDir(), slug, "")
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.FilePath = path

	if r := schema.ValidateCampaign(c); !r.Valid() {
		return nil, validationErr(schema.KindCampaign, r)
	}

	body, err := s.renderTemplate(schema.KindCampaign, map[string]string{
		"campaign_name": in.Name,
		"notes":         in.Notes,
		"date":          now.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	if err := s.writeEntity(c.FilePath, c, body); err != nil {
		return nil, err
	}
	s.log.Printf("store: created campaign %s", c.ID)
	return c, nil
}

// GetCampaign loads a campaign by id; absence is (nil, nil).
func (s *Store) GetCampaign(id string) (*schema.Campaign, error) {
	path, err := s.entityPath(schema.KindCampaign, id)
	if err != nil {
		return nil, err
	}
	meta, _, err := readDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read campaign %s: %w", id, err)
	}
	c, err := schema.CampaignFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	c.FilePath = path
	if c.ID == "" {
		c.ID = id
	}
	return c, nil
}

// UpdateCampaign merges partial metadata over the stored campaign. Direct
// writes to the derived metrics block are rejected; SetCampaignMetrics is
// the only path that may touch them.
func (s *Store) UpdateCampaign(id string, partial map[string]any) (*schema.Campaign, error) {
	if _, ok := partial["metrics"]; ok {
		var r schema.Result
		r.Errors = append(r.Errors, schema.FieldError{
			Field: "metrics", Code: schema.CodeDerivedField,
			Message: "metrics are derived and cannot be edited directly",
		})
		return nil, validationErr(schema.KindCampaign, r)
	}
	return s.updateCampaignRaw(id, partial)
}

// SetCampaignMetrics overwrites the derived metrics block. Intended for the
// aggregation pass that recomputes metrics from activity records.
func (s *Store) SetCampaignMetrics(id string, metrics schema.CampaignMetrics) (*schema.Campaign, error) {
	raw, err := schema.MetricsMetadata(metrics)
	if err != nil {
		return nil, err
	}
	return s.updateCampaignRaw(id, map[string]any{"metrics": raw})
}

func (s *Store) updateCampaignRaw(id string, partial map[string]any) (*schema.Campaign, error) {
	path, err := s.entityPath(schema.KindCampaign, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: campaign %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: read campaign %s: %w", id, err)
	}

	merged := make(map[string]any, len(partial)+1)
	for k, v := range partial {
		merged[k] = v
	}
	merged["updated"] = s.now().UTC()

	updated := frontmatter.Update(string(data), merged)
	meta, _ := frontmatter.Parse(updated)
	c, err := schema.CampaignFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	c.FilePath = path
	if c.ID == "" {
		c.ID = id
	}
	if r := schema.ValidateCampaign(c); !r.Valid() {
		return nil, validationErr(schema.KindCampaign, r)
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return nil, err
	}
	s.log.Printf("store: updated campaign %s", id)
	return c, nil
}

// ListCampaigns scans the campaigns subtree, skipping anything that is not
// a valid campaign record.
func (s *Store) ListCampaigns(pred func(*schema.Campaign) bool) ([]*schema.Campaign, error) {
	var out []*schema.Campaign
	err := s.scanKind(schema.KindCampaign, func(path string, meta map[string]any, _ string) {
		c, err := schema.CampaignFromMetadata(meta)
		if err != nil {
			s.log.Printf("store: skipping undecodable %s: %v", path, err)
			return
		}
		c.FilePath = path
		if c.ID == "" {
			c.ID = idFromPath(path)
		}
		if r := schema.ValidateCampaign(c); !r.Valid() {
			s.log.Printf("store: skipping invalid %s: %d violations", path, len(r.Errors))
			return
		}
		if pred == nil || pred(c) {
			out = append(out, c)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
