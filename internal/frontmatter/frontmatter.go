// Package frontmatter converts between "YAML header + free-form body"
// documents and an in-memory (metadata, body) pair. Parsing is deliberately
// forgiving: a document without a header, or with a header that fails to
// parse, comes back as empty metadata plus the original text so one bad
// record never aborts a vault scan.
package frontmatter

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// preferredKeys render first in generated headers, in this order, so the
// discriminator and identity fields stay at the top of every file. Remaining
// keys follow alphabetically.
var preferredKeys = []string{"type", "id", "created", "updated", "tags"}

// Parse splits a document into its metadata map and body. Missing or
// malformed headers are not errors: the full original text is returned as
// the body with empty metadata.
func Parse(content string) (map[string]any, string) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, fence+"\n") {
		return map[string]any{}, content
	}
	rest := normalized[len(fence)+1:]

	var metaBlock, body string
	switch {
	case strings.HasPrefix(rest, fence+"\n"):
		// Empty header block.
		return map[string]any{}, rest[len(fence)+1:]
	case strings.Contains(rest, "\n"+fence+"\n"):
		idx := strings.Index(rest, "\n"+fence+"\n")
		metaBlock = rest[:idx]
		body = rest[idx+len(fence)+2:]
	case strings.HasSuffix(rest, "\n"+fence):
		// Header terminated at end of file with no body.
		metaBlock = rest[:len(rest)-len(fence)-1]
		body = ""
	default:
		// Unterminated header block.
		return map[string]any{}, content
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(metaBlock), &meta); err != nil {
		return map[string]any{}, content
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, body
}

// Generate renders a metadata map as a self-terminated YAML header. Keys are
// emitted in a stable, human-diffable order; nested maps are sorted by the
// YAML encoder. The result ends with a closing fence and newline so a body
// can be appended directly.
func Generate(meta map[string]any) string {
	var b strings.Builder
	b.WriteString(fence + "\n")
	if len(meta) > 0 {
		root := &yaml.Node{Kind: yaml.MappingNode}
		for _, key := range orderedKeys(meta) {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
			valueNode := &yaml.Node{}
			if err := valueNode.Encode(meta[key]); err != nil {
				continue
			}
			root.Content = append(root.Content, keyNode, valueNode)
		}
		var encoded strings.Builder
		enc := yaml.NewEncoder(&encoded)
		enc.SetIndent(2)
		if err := enc.Encode(root); err == nil {
			_ = enc.Close()
			b.WriteString(strings.TrimRight(encoded.String(), "\n"))
			b.WriteString("\n")
		}
	}
	b.WriteString(fence + "\n")
	return b.String()
}

// Update parses the document, shallow-merges partial over its metadata, and
// re-attaches the original body untouched. Keys absent from partial are
// preserved verbatim, including ones no schema knows about.
func Update(content string, partial map[string]any) string {
	meta, body := Parse(content)
	merged := make(map[string]any, len(meta)+len(partial))
	for k, v := range meta {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	return Generate(merged) + body
}

func orderedKeys(meta map[string]any) []string {
	seen := make(map[string]bool, len(meta))
	keys := make([]string, 0, len(meta))
	for _, key := range preferredKeys {
		if _, ok := meta[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(meta))
	for key := range meta {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
