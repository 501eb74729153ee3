package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DailyNotePath returns the vault path for a day's note.
func (s *Store) DailyNotePath(date time.Time) string {
	return filepath.Join(s.cfg.DailyNotesDir(), date.Format("2006-01-02")+".md")
}

// AppendDailyNote writes the named section of the day's note, creating the
// file when absent. The section's previous content is replaced; everything
// else in the note, including the user's own headings and text, is left
// byte for byte as written.
func (s *Store) AppendDailyNote(date time.Time, section, text string) error {
	path := s.DailyNotePath(date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: daily notes dir: %w", err)
	}

	var content string
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content = string(data)
	case errors.Is(err, fs.ErrNotExist):
		content = "# " + date.Format("2006-01-02") + "\n"
	default:
		return fmt.Errorf("store: read daily note %s: %w", path, err)
	}

	updated := upsertSection(content, section, text)
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return err
	}
	s.log.Printf("store: noted %q in %s", section, filepath.Base(path))
	return nil
}

// upsertSection replaces the body of the "## <section>" block, or adds the
// block at the end of the note when absent. A section runs until the next
// heading of the same or higher level.
func upsertSection(content, section, text string) string {
	heading := "## " + section
	block := heading + "\n\n" + strings.TrimRight(text, "\n") + "\n"
	lines := strings.Split(content, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t") == heading {
			start = i
			break
		}
	}
	if start == -1 {
		out := strings.TrimRight(content, "\n")
		if out != "" {
			out += "\n"
		}
		return out + "\n" + block
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "# ") || strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines[:start], "\n"))
	if start > 0 {
		b.WriteString("\n")
	}
	b.WriteString(block)
	if end < len(lines) {
		b.WriteString("\n")
		b.WriteString(strings.Join(lines[end:], "\n"))
	}
	return b.String()
}
