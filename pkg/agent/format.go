package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/kb"
)

// Internal metadata keys never shown to the model.
var skippedMetadataKeys = map[string]struct{}{
	"source_content_focus": {},
}

// FormatResults renders retrieved documents as numbered markdown sections:
// raw content followed by a bulleted metadata listing, separated by
// horizontal rules.
func FormatResults(docs []kb.Document) string {
	sections := make([]string, 0, len(docs))
	for i, doc := range docs {
		var b strings.Builder
		fmt.Fprintf(&b, "### Result %d\n\n%s\n", i+1, strings.TrimSpace(doc.Content))

		details := formatMetadata(doc.Metadata)
		if len(details) > 0 {
			b.WriteString("\n")
			for j, d := range details {
				if j > 0 {
					b.WriteString("\n")
				}
				b.WriteString("- " + d)
			}
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func formatMetadata(metadata map[string]any) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		if _, skip := skippedMetadataKeys[key]; skip {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, key := range keys {
		val := metadata[key]
		if isEmptyValue(val) {
			continue
		}
		details = append(details, fmt.Sprintf("**%s:** %s", humanCase(key), formatMetadataValue(val)))
	}
	return details
}

// formatMetadataValue flattens a metadata value to display text. String
// values that themselves hold serialized JSON lists or objects are
// unpacked; everything else prints as-is.
func formatMetadataValue(val any) string {
	switch v := val.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var parsed any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return flattenParsed(parsed)
			}
		}
		return v
	case []any:
		return flattenList(v)
	case map[string]any:
		return flattenMap(v)
	default:
		return fmt.Sprint(val)
	}
}

func flattenParsed(parsed any) string {
	switch p := parsed.(type) {
	case []any:
		return flattenList(p)
	case map[string]any:
		return flattenMap(p)
	default:
		return fmt.Sprint(parsed)
	}
}

func flattenList(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = scalarText(item)
	}
	return strings.Join(parts, ", ")
}

func flattenMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s: %s", humanCase(key), scalarText(m[key]))
	}
	return strings.Join(parts, ", ")
}

// scalarText prints a JSON-decoded scalar without the float artifacts of
// fmt.Sprint (whole numbers render without a decimal point).
func scalarText(val any) string {
	if f, ok := val.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(val)
}

func isEmptyValue(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

// humanCase turns snake_case keys into title-cased display labels.
func humanCase(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
