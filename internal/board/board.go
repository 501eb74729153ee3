// Package board maintains the Kanban projection of the prospect pipeline:
// one lane per stage inside a single dashboard file, each lane holding a
// rendered card per prospect. The board is rebuilt whole on every sync, so a
// corrupted or hand-mangled board heals on the next pass instead of
// compounding.
package board

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
)

// Logger is the narrow logging surface the synchronizer needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Synchronizer projects prospects onto the board file and applies stage
// transitions back through the store.
type Synchronizer struct {
	store *store.Store
	log   Logger
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithLogger injects a logger.
func WithLogger(log Logger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a synchronizer over a store.
func New(st *store.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{store: st, log: nopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCard renders one prospect as a board card: a wiki link to the
// entity file, its location, a level-graded score annotation, and the tag
// set. Totals at or above the configured marker threshold get the hot flag.
func (s *Synchronizer) GenerateCard(p *schema.Prospect) string {
	cfg := s.store.Config()
	score := p.QualificationScore.Total
	level := cfg.Bands().Level(score)

	annotation := fmt.Sprintf("%.0f (%s)", score, level)
	if score >= cfg.Vault.Scoring.HighScoreMarker {
		annotation = "🔥 " + annotation
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- %s\n", frontmatter.FormatWikiLink(p.ID, p.Business.Name))
	fmt.Fprintf(&b, "  - 📍 %s, %s\n", p.Business.Location.City, p.Business.Location.State)
	fmt.Fprintf(&b, "  - Score: %s\n", annotation)
	if len(p.Tags) > 0 {
		tags := make([]string, len(p.Tags))
		for i, tag := range p.Tags {
			tags[i] = "#" + tag
		}
		fmt.Fprintf(&b, "  - %s\n", strings.Join(tags, " "))
	}
	return b.String()
}

// SyncAll reads every prospect and rewrites the whole board in one atomic
// pass. With no intervening entity changes two syncs produce byte-identical
// output, so the board carries no generation timestamp.
func (s *Synchronizer) SyncAll() error {
	prospects, err := s.store.ListProspects(nil)
	if err != nil {
		return fmt.Errorf("board: list prospects: %w", err)
	}
	content := s.render(prospects)
	if err := s.store.WriteDashboard([]byte(content)); err != nil {
		return fmt.Errorf("board: write dashboard: %w", err)
	}
	s.log.Printf("board: synced %d prospects", len(prospects))
	return nil
}

func (s *Synchronizer) render(prospects []*schema.Prospect) string {
	cfg := s.store.Config()

	lanes := make(map[pipeline.Stage][]*schema.Prospect)
	for _, p := range prospects {
		lanes[p.PipelineStage] = append(lanes[p.PipelineStage], p)
	}
	for _, lane := range lanes {
		sort.Slice(lane, func(i, j int) bool {
			if lane[i].Business.Name != lane[j].Business.Name {
				return lane[i].Business.Name < lane[j].Business.Name
			}
			return lane[i].ID < lane[j].ID
		})
	}

	var b strings.Builder
	b.WriteString("# Sales Pipeline\n")
	for _, stage := range pipeline.Stages() {
		fmt.Fprintf(&b, "\n## %s\n", cfg.LaneLabel(stage))
		lane := lanes[stage]
		if len(lane) == 0 {
			continue
		}
		b.WriteString("\n")
		for _, p := range lane {
			b.WriteString(s.GenerateCard(p))
		}
	}
	b.WriteString("\n")
	b.WriteString(renderMetrics(metricsOf(prospects)))
	return b.String()
}

// HandleStageTransition validates and applies a stage change. A missing
// prospect returns (false, nil) so callers holding stale board entries can
// decide what to do; an illegal edge returns pipeline.ErrIllegalTransition
// and leaves the file untouched.
func (s *Synchronizer) HandleStageTransition(prospectID string, from, to pipeline.Stage, at time.Time, triggeredBy string) (bool, error) {
	p, err := s.store.GetProspect(prospectID)
	if err != nil {
		return false, err
	}
	if p == nil {
		s.log.Printf("board: transition target %s not found", prospectID)
		return false, nil
	}
	if from == "" {
		from = p.PipelineStage
	}
	if from != p.PipelineStage {
		return false, fmt.Errorf("board: prospect %s is in stage %q, not %q", prospectID, p.PipelineStage, from)
	}
	if err := pipeline.CheckTransition(from, to); err != nil {
		return false, err
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	note := fmt.Sprintf("stage %s -> %s", from, to)
	if triggeredBy != "" {
		note += " (by " + triggeredBy + ")"
	}
	_, err = s.store.UpdateProspect(prospectID, map[string]any{
		"pipelineStage": string(to),
		"tags":          schema.ReplaceStageTag(p.Tags, to),
		"interactions": append(interactionMaps(p.Interactions), map[string]any{
			"date":  at,
			"type":  "stage_change",
			"notes": note,
		}),
	})
	if err != nil {
		return false, err
	}
	s.log.Printf("board: %s moved %s -> %s", prospectID, from, to)
	return true, nil
}

// interactionMaps re-encodes existing history entries so the merged tags and
// interactions keys replace, not duplicate, the stored ones.
func interactionMaps(history []schema.Interaction) []any {
	out := make([]any, 0, len(history))
	for _, entry := range history {
		m := map[string]any{
			"date": entry.Date,
			"type": entry.Type,
		}
		if entry.Outcome != "" {
			m["outcome"] = entry.Outcome
		}
		if entry.Notes != "" {
			m["notes"] = entry.Notes
		}
		out = append(out, m)
	}
	return out
}

// Metrics aggregates the pipeline by stage. Read-only; safe to call
// alongside writers.
type Metrics struct {
	CountByStage    map[pipeline.Stage]int
	AvgScoreByStage map[pipeline.Stage]float64
	Total           int
}

// ComputeMetrics scans all prospects and aggregates count and average
// qualification score per stage.
func (s *Synchronizer) ComputeMetrics() (Metrics, error) {
	prospects, err := s.store.ListProspects(nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("board: list prospects: %w", err)
	}
	return metricsOf(prospects), nil
}

func metricsOf(prospects []*schema.Prospect) Metrics {
	m := Metrics{
		CountByStage:    make(map[pipeline.Stage]int),
		AvgScoreByStage: make(map[pipeline.Stage]float64),
		Total:           len(prospects),
	}
	sums := make(map[pipeline.Stage]float64)
	for _, p := range prospects {
		m.CountByStage[p.PipelineStage]++
		sums[p.PipelineStage] += p.QualificationScore.Total
	}
	for stage, count := range m.CountByStage {
		m.AvgScoreByStage[stage] = sums[stage] / float64(count)
	}
	return m
}

func renderMetrics(m Metrics) string {
	var b strings.Builder
	b.WriteString("## Pipeline Metrics\n\n")
	fmt.Fprintf(&b, "- Total prospects: %d\n", m.Total)
	for _, stage := range pipeline.Stages() {
		count := m.CountByStage[stage]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %d (avg score %.1f)\n", stage, count, m.AvgScoreByStage[stage])
	}
	return b.String()
}
