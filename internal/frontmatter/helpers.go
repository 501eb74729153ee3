package frontmatter

import (
	"regexp"
	"strings"
	"time"
)

// ExtractTags accepts either a sequence of strings or a single
// comma-delimited string and returns the cleaned tag list. Non-string
// entries are dropped silently.
func ExtractTags(value any) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// dateLayouts are tried in order when normalizing date-like fields.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// NormalizeDates walks the metadata map and coerces every field plausibly
// named as a date or timestamp to a canonical ISO-8601 string. Values that
// do not parse are left untouched rather than erroring. Nested maps are
// normalized recursively.
func NormalizeDates(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		switch v := value.(type) {
		case map[string]any:
			out[key] = NormalizeDates(v)
		default:
			if isDateKey(key) {
				out[key] = normalizeDateValue(value)
			} else {
				out[key] = value
			}
		}
	}
	return out
}

func isDateKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "created" || lower == "updated" || lower == "timestamp" {
		return true
	}
	return strings.Contains(lower, "date")
}

func normalizeDateValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, trimmed)
			if err != nil {
				continue
			}
			if layout == "2006-01-02" {
				// Date-only values are already canonical.
				return trimmed
			}
			return t.UTC().Format(time.RFC3339)
		}
		return v
	default:
		return value
	}
}

const slugMaxLength = 50

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]`)
	slugHyphenRun  = regexp.MustCompile(`-{2,}`)
)

// GenerateSlug derives a filesystem-safe name from free text: lower-cased,
// whitespace runs collapsed to single hyphens, anything outside [a-z0-9-]
// stripped, truncated to 50 characters.
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugHyphenRun.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugMaxLength {
		slug = strings.Trim(slug[:slugMaxLength], "-")
	}
	return slug
}

var wikiLinkPattern = regexp.MustCompile(`^\[\[([^\[\]|]+?)(?:\|([^\[\]]+))?\]\]$`)

// FormatWikiLink renders a double-bracket cross reference, optionally with a
// display alias.
func FormatWikiLink(target, alias string) string {
	if alias == "" || alias == target {
		return "[[" + target + "]]"
	}
	return "[[" + target + "|" + alias + "]]"
}

// ParseWikiLink extracts the target and optional alias from a double-bracket
// reference. ok is false when the text is not a well-formed link.
func ParseWikiLink(text string) (target, alias string, ok bool) {
	m := wikiLinkPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}
