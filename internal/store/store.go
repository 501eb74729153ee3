// Package store implements durable CRUD for sales entities, one frontmatter
// document per entity under the configured vault root. There is no database
// underneath: every guarantee is built from flat-file I/O, schema validation,
// and atomic writes (temp file + rename) so a reader never observes a torn
// record.
//
// The store assumes a single logical writer per entity file. Concurrent
// updates to the same file race with last-write-wins semantics; callers that
// need stronger guarantees must serialize above this layer.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/peb7268/salesvault/internal/config"
	"github.com/peb7268/salesvault/internal/frontmatter"
	"github.com/peb7268/salesvault/internal/schema"
)

// ErrNotFound marks an operation against an entity file that does not
// exist. Reads report absence as a nil entity instead; this error is for
// mutations that need a target.
var ErrNotFound = errors.New("store: entity not found")

// Logger is the narrow logging surface the store needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Store manages entity IO rooted at a vault directory.
type Store struct {
	cfg   *config.Config
	log   Logger
	now   func() time.Time
	newID func() string
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger injects a logger for skip/diagnostic messages.
func WithLogger(log Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithIDSource overrides the random ID generator used for activity files.
func WithIDSource(generate func() string) Option {
	return func(s *Store) {
		if generate != nil {
			s.newID = generate
		}
	}
}

// New builds a store for a vault.
func New(cfg *config.Config, opts ...Option) *Store {
	s := &Store{
		cfg:   cfg,
		log:   nopLogger{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config exposes the vault configuration backing this store.
func (s *Store) Config() *config.Config { return s.cfg }

// Initialize idempotently ensures every configured subtree exists and seeds
// the default templates. Safe to call repeatedly.
func (s *Store) Initialize() error {
	dirs := []string{
		s.cfg.ProspectsDir(),
		s.cfg.CampaignsDir(),
		s.cfg.ActivitiesDir(),
		s.cfg.TemplatesDir(),
		s.cfg.DailyNotesDir(),
		filepath.Dir(s.cfg.DashboardFile()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: ensure %s: %w", dir, err)
		}
	}
	if err := config.InitVaultDir(s.cfg.Root); err != nil {
		return err
	}
	return s.seedTemplates()
}

// WriteDashboard atomically replaces the Kanban board file. The board is a
// machine-owned projection; callers regenerate the whole content and hand it
// here in one piece.
func (s *Store) WriteDashboard(content []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.DashboardFile()), 0o755); err != nil {
		return fmt.Errorf("store: ensure dashboard dir: %w", err)
	}
	return writeFileAtomic(s.cfg.DashboardFile(), content)
}

// kindDir maps an entity kind onto its directory.
func (s *Store) kindDir(kind schema.Kind) (string, error) {
	switch kind {
	case schema.KindProspect:
		return s.cfg.ProspectsDir(), nil
	case schema.KindCampaign:
		return s.cfg.CampaignsDir(), nil
	case schema.KindActivity:
		return s.cfg.ActivitiesDir(), nil
	default:
		return "", fmt.Errorf("store: unsupported entity kind %q", kind)
	}
}

// entityPath returns the file path for an entity id of the given kind.
func (s *Store) entityPath(kind schema.Kind, id string) (string, error) {
	dir, err := s.kindDir(kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+".md"), nil
}

// Delete removes an entity file. A missing file is not an error.
func (s *Store) Delete(kind schema.Kind, id string) error {
	path, err := s.entityPath(kind, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", path, err)
	}
	return nil
}

// uniquePath derives a collision-free file path for a new entity. When the
// base slug is taken it tries slug-qualifier, then numbered suffixes, so two
// "Pizza Place" prospects in different cities both get stable names.
func (s *Store) uniquePath(dir, slug, qualifier string) (path, id string, err error) {
	candidates := []string{slug}
	if q := frontmatter.GenerateSlug(qualifier); q != "" {
		candidates = append(candidates, slug+"-"+q)
	}
	for i := 2; i <= 50; i++ {
		candidates = append(candidates, fmt.Sprintf("%s-%d", slug, i))
	}
	for _, candidate := range candidates {
		p := filepath.Join(dir, candidate+".md")
		if _, statErr := os.Stat(p); errors.Is(statErr, fs.ErrNotExist) {
			return p, candidate, nil
		} else if statErr != nil {
			return "", "", fmt.Errorf("store: stat %s: %w", p, statErr)
		}
	}
	return "", "", fmt.Errorf("store: could not derive unique name for %q", slug)
}

// writeFileAtomic writes via a temp file in the target directory followed by
// a rename, so readers never observe a partially written entity.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename to %s: %w", path, err)
	}
	return nil
}

// readDocument loads and splits an entity file. Absence is reported via
// fs.ErrNotExist for callers to translate.
func readDocument(path string) (meta map[string]any, body string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	meta, body = frontmatter.Parse(string(data))
	return meta, body, nil
}

// scanKind walks a kind directory and yields each parsed metadata map whose
// type discriminator matches. Files that fail to parse, carry a different
// type, or are not markdown are skipped with a log line; a single bad file
// never aborts the scan.
func (s *Store) scanKind(kind schema.Kind, visit func(path string, meta map[string]any, body string)) error {
	dir, err := s.kindDir(kind)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("store: scan %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		meta, body, err := readDocument(path)
		if err != nil {
			s.log.Printf("store: skipping unreadable %s: %v", path, err)
			continue
		}
		if discriminator, _ := meta["type"].(string); discriminator != string(kind) {
			continue
		}
		visit(path, meta, body)
	}
	return nil
}

func idFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

// validationErr wraps a failed result as the typed error the caller sees.
func validationErr(kind schema.Kind, r schema.Result) error {
	return &schema.ValidationError{Kind: kind, Result: r}
}
