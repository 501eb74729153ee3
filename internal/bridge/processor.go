package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/peb7268/salesvault/internal/board"
	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
)

// DefaultDedupeWindow is how long an event_id is remembered. Automation
// systems retry on timeouts; a replay inside the window is acknowledged
// without being applied twice.
const DefaultDedupeWindow = 10 * time.Minute

// Processor turns validated bridge events into store and board mutations.
type Processor struct {
	store *store.Store
	board *board.Synchronizer
	log   Logger
	clock func() time.Time

	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger injects a logger.
func WithProcessorLogger(log Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithDedupeWindow overrides how long event ids are remembered.
func WithDedupeWindow(window time.Duration) ProcessorOption {
	return func(p *Processor) {
		if window > 0 {
			p.window = window
		}
	}
}

// WithProcessorClock allows tests to control the dedupe clock.
func WithProcessorClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor wires the bridge to a store and board synchronizer.
func NewProcessor(st *store.Store, sync *board.Synchronizer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  st,
		board:  sync,
		log:    nopLogger{},
		clock:  func() time.Time { return time.Now().UTC() },
		seen:   make(map[string]time.Time),
		window: DefaultDedupeWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleEvent dispatches one event. Replays inside the dedupe window are
// acknowledged as no-ops; an event id is only remembered once its effects
// were applied, so a retry after a failure gets a fresh attempt.
func (p *Processor) HandleEvent(evt Event) error {
	if p.alreadySeen(evt.EventID) {
		p.log.Printf("bridge: duplicate event %s ignored", evt.EventID)
		return nil
	}
	var err error
	switch evt.Type {
	case EventActivityRecorded:
		err = p.handleActivity(evt)
	case EventStageTransition:
		err = p.handleStageTransition(evt)
	default:
		err = fmt.Errorf("bridge: unknown event type %q", evt.Type)
	}
	if err != nil {
		return err
	}
	p.markSeen(evt.EventID)
	return nil
}

func (p *Processor) alreadySeen(eventID string) bool {
	now := p.clock()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, at := range p.seen {
		if now.Sub(at) > p.window {
			delete(p.seen, id)
		}
	}
	_, dup := p.seen[eventID]
	return dup
}

func (p *Processor) markSeen(eventID string) {
	p.mu.Lock()
	p.seen[eventID] = p.clock()
	p.mu.Unlock()
}

func (p *Processor) handleActivity(evt Event) error {
	var in schema.ActivityInput
	if err := schema.StrictDecodeJSON(bytes.NewReader(evt.Payload), &in); err != nil {
		return err
	}
	if in.AutomatedActivity && len(in.AutomationRules) == 0 && evt.Source != "" {
		in.AutomationRules = []string{evt.Source}
	}
	a, err := p.store.CreateActivity(in)
	if err != nil {
		return err
	}

	entry := fmt.Sprintf("- %s %s (%s)", a.ActivityType,
		frontmatter.FormatWikiLink(a.ProspectID, ""), a.Outcome)
	if err := p.store.AppendDailyNote(evt.ServerTime, "Sales Activity", entry); err != nil {
		p.log.Printf("bridge: daily note update failed: %v", err)
	}
	p.log.Printf("bridge: recorded %s from %s", a.ID, evt.Source)
	return nil
}

func (p *Processor) handleStageTransition(evt Event) error {
	var payload StagePayload
	if err := schema.StrictDecodeJSON(bytes.NewReader(evt.Payload), &payload); err != nil {
		return err
	}
	to, ok := pipeline.ParseStage(payload.To)
	if !ok {
		return fmt.Errorf("bridge: unknown target stage %q", payload.To)
	}
	var from pipeline.Stage
	if payload.From != "" {
		from, ok = pipeline.ParseStage(payload.From)
		if !ok {
			return fmt.Errorf("bridge: unknown source stage %q", payload.From)
		}
	}

	applied, err := p.board.HandleStageTransition(payload.ProspectID, from, to, evt.ServerTime, evt.Source)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: prospect %s", store.ErrNotFound, payload.ProspectID)
	}
	if err := p.board.SyncAll(); err != nil {
		p.log.Printf("bridge: board resync failed: %v", err)
	}
	return nil
}

// errorStatus maps processor errors onto HTTP statuses: validation problems
// are the sender's fault, missing prospects are 404, illegal stage moves are
// conflicts, everything else is a server error.
func errorStatus(err error) (int, string) {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, pipeline.ErrIllegalTransition):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "event processing failed"
	}
}
