package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
)

// CreateProspect validates the input, expands the prospect template, and
// writes a new entity file. On validation failure nothing touches the
// filesystem and a *schema.ValidationError is returned.
func (s *Store) CreateProspect(in schema.ProspectInput) (*schema.Prospect, error) {
	if r := schema.ValidateInput(in); !r.Valid() {
		return nil, validationErr(schema.KindProspect, r)
	}

	now := s.now().UTC()
	p := &schema.Prospect{
		Entity: schema.Entity{
			Type:    schema.KindProspect,
			Created: now,
			Updated: now,
			Tags:    append([]string{"prospect", schema.StageTag(pipeline.StageCold)}, in.Tags...),
		},
		Business: schema.Business{
			Name:     in.BusinessName,
			Industry: in.Industry,
			Location: schema.Location{City: in.City, State: in.State, Country: in.Country},
			Size: schema.BusinessSize{
				Category:         in.SizeCategory,
				EmployeeCount:    in.EmployeeCount,
				EstimatedRevenue: in.EstimatedRevenue,
			},
			DigitalPresence: schema.DigitalPresence{
				HasWebsite:        in.HasWebsite,
				HasGoogleBusiness: in.HasGoogleProfile,
				HasSocialMedia:    in.HasSocialMedia,
				HasOnlineReviews:  in.HasOnlineReviews,
			},
		},
		Contact: schema.ContactInfo{
			Phone:         in.Phone,
			Email:         in.Email,
			Website:       in.Website,
			DecisionMaker: in.DecisionMaker,
		},
		PipelineStage: pipeline.StageCold,
		QualificationScore: schema.QualificationScore{
			Total:       0,
			LastUpdated: now,
		},
		Competitors: in.Competitors,
	}

	slug := frontmatter.GenerateSlug(in.BusinessName)
	if slug == "" {
		var r schema.Result
		r.Errors = append(r.Errors, schema.FieldError{
			Field: "businessName", Code: schema.CodeInvalidFormat,
			Message: "business name yields an empty file name", Value: in.BusinessName,
		})
		return nil, validationErr(schema.KindProspect, r)
	}
	path, id, err := s.uniquePath(s.cfg.ProspectsDir(), slug, in.City)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.FilePath = path

	if r := schema.ValidateProspect(p); !r.Valid() {
		return nil, validationErr(schema.KindProspect, r)
	}

	body, err := s.renderTemplate(schema.KindProspect, map[string]string{
		"business_name": in.BusinessName,
		"industry":      in.Industry,
		"city":          in.City,
		"state":         in.State,
		"notes":         in.Notes,
		"date":          now.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	if err := s.writeEntity(p.FilePath, p, body); err != nil {
		return nil, err
	}
	s.log.Printf("store: created prospect %s", p.ID)
	return p, nil
}

// GetProspect loads a prospect by id. Absence is reported as (nil, nil):
// a missing entity is an expected, recoverable case.
func (s *Store) GetProspect(id string) (*schema.Prospect, error) {
	path, err := s.entityPath(schema.KindProspect, id)
	if err != nil {
		return nil, err
	}
	meta, _, err := readDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read prospect %s: %w", id, err)
	}
	p, err := schema.ProspectFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	p.FilePath = path
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

// UpdateProspect shallow-merges partial metadata over the existing file,
// re-validates the merged record, and writes back only on success. When the
// partial carries a qualificationScore, the total is recomputed from the
// breakdown before validation so the derivable-sum invariant holds.
func (s *Store) UpdateProspect(id string, partial map[string]any) (*schema.Prospect, error) {
	path, err := s.entityPath(schema.KindProspect, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: prospect %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: read prospect %s: %w", id, err)
	}

	now := s.now().UTC()
	merged := make(map[string]any, len(partial)+1)
	for k, v := range partial {
		merged[k] = v
	}
	if raw, ok := merged["qualificationScore"]; ok {
		score, err := schema.ScoreFromValue(raw)
		if err != nil {
			return nil, err
		}
		score.Total = score.Breakdown.Total()
		score.LastUpdated = now
		scoreMeta, err := score.Metadata()
		if err != nil {
			return nil, err
		}
		merged["qualificationScore"] = scoreMeta
	}
	merged["updated"] = now

	updated := frontmatter.Update(string(data), merged)
	meta, _ := frontmatter.Parse(updated)
	p, err := schema.ProspectFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	p.FilePath = path
	if p.ID == "" {
		p.ID = id
	}
	if r := schema.ValidateProspect(p); !r.Valid() {
		return nil, validationErr(schema.KindProspect, r)
	}
	// A stage change through the generic update path still has to walk the
	// transition graph.
	prevMeta, _ := frontmatter.Parse(string(data))
	if raw, ok := prevMeta["pipelineStage"].(string); ok {
		if prev, ok := pipeline.ParseStage(raw); ok && prev != p.PipelineStage {
			if err := pipeline.CheckTransition(prev, p.PipelineStage); err != nil {
				return nil, err
			}
		}
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return nil, err
	}
	s.log.Printf("store: updated prospect %s", id)
	return p, nil
}

// ListProspects scans the prospects subtree and returns every valid record,
// optionally filtered. Files with a different type discriminator or that
// fail to parse or validate are skipped, never fatal.
func (s *Store) ListProspects(pred func(*schema.Prospect) bool) ([]*schema.Prospect, error) {
	var out []*schema.Prospect
	err := s.scanKind(schema.KindProspect, func(path string, meta map[string]any, _ string) {
		p, err := schema.ProspectFromMetadata(meta)
		if err != nil {
			s.log.Printf("store: skipping undecodable %s: %v", path, err)
			return
		}
		p.FilePath = path
		if p.ID == "" {
			p.ID = idFromPath(path)
		}
		if r := schema.ValidateProspect(p); !r.Valid() {
			s.log.Printf("store: skipping invalid %s: %d violations", path, len(r.Errors))
			return
		}
		if pred == nil || pred(p) {
			out = append(out, p)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddInteraction appends one contact event to the prospect's history. The
// history is append-only: existing entries are never rewritten.
func (s *Store) AddInteraction(prospectID string, interaction schema.Interaction) (*schema.Prospect, error) {
	p, err := s.GetProspect(prospectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: prospect %s", ErrNotFound, prospectID)
	}
	if interaction.Date.IsZero() {
		interaction.Date = s.now().UTC()
	}
	p.Interactions = append(p.Interactions, interaction)
	p.Updated = s.now().UTC()

	if r := schema.ValidateProspect(p); !r.Valid() {
		return nil, validationErr(schema.KindProspect, r)
	}
	data, err := os.ReadFile(p.FilePath)
	if err != nil {
		return nil, fmt.Errorf("store: read prospect %s: %w", prospectID, err)
	}
	_, body := frontmatter.Parse(string(data))
	if err := s.writeEntity(p.FilePath, p, body); err != nil {
		return nil, err
	}
	return p, nil
}

// writeEntity renders an entity's frontmatter and writes header + body
// atomically.
func (s *Store) writeEntity(path string, entity interface {
	Metadata() (map[string]any, error)
}, body string) error {
	meta, err := entity.Metadata()
	if err != nil {
		return err
	}
	content := frontmatter.Generate(meta) + body
	return writeFileAtomic(path, []byte(content))
}
