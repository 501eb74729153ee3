package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peb7268/salesvault/internal/schema"
)

// Default body templates seeded into the templates directory on Initialize.
// Users can edit the seeded copies; creation always reads from disk first
// and only falls back to these literals when the file is missing.
const defaultProspectTemplate = `## Business

- Industry: {{industry}}
- Location: {{city}}, {{state}}

## Contact Log

## Notes

{{notes}}
`

const defaultCampaignTemplate = `## Goal

{{notes}}

## Messaging

## Results
`

const defaultActivityTemplate = `## Summary

{{notes}}
`

var templateFiles = map[schema.Kind]struct {
	name     string
	fallback string
}{
	schema.KindProspect: {"prospect.md", defaultProspectTemplate},
	schema.KindCampaign: {"campaign.md", defaultCampaignTemplate},
	schema.KindActivity: {"activity.md", defaultActivityTemplate},
}

// seedTemplates writes the default template files when missing. Existing
// templates are never overwritten.
func (s *Store) seedTemplates() error {
	for _, tmpl := range templateFiles {
		path := filepath.Join(s.cfg.TemplatesDir(), tmpl.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: stat template %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(tmpl.fallback), 0o644); err != nil {
			return fmt.Errorf("store: seed template %s: %w", path, err)
		}
	}
	return nil
}

// renderTemplate loads the kind's template and substitutes {{token}} values.
// Unknown tokens render as empty strings rather than leaking braces into
// the document.
func (s *Store) renderTemplate(kind schema.Kind, values map[string]string) (string, error) {
	tmpl, ok := templateFiles[kind]
	if !ok {
		return "", fmt.Errorf("store: no template for kind %q", kind)
	}
	content := tmpl.fallback
	path := filepath.Join(s.cfg.TemplatesDir(), tmpl.name)
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("store: read template %s: %w", path, err)
	}
	return expandTokens(content, values), nil
}

func expandTokens(content string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for token, value := range values {
		pairs = append(pairs, "{{"+token+"}}", value)
	}
	content = strings.NewReplacer(pairs...).Replace(content)
	// Blank any tokens the caller did not provide.
	for {
		start := strings.Index(content, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(content[start:], "}}")
		if end < 0 {
			break
		}
		content = content[:start] + content[start+end+2:]
	}
	return content
}
