// files/yaml.go
package files

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Characters that force a string into quoted YAML form.
var unsafeYAML = regexp.MustCompile("[:\\[\\]{},#&*!|>'\"%@`\n]")

// yamlQuote emits s unquoted when it is safe plain YAML, otherwise as a
// JSON-quoted string (valid YAML double-quoted form).
func yamlQuote(s string) string {
	if unsafeYAML.MatchString(s) || strings.TrimSpace(s) != s {
		quoted, _ := json.Marshal(s)
		return string(quoted)
	}
	return s
}

// yamlList appends "key:" followed by one "- item" line per value, or
// "key: []" when the list is empty.
func yamlList(lines []string, key string, values []string) []string {
	if len(values) == 0 {
		return append(lines, key+": []")
	}
	lines = append(lines, key+":")
	for _, v := range values {
		lines = append(lines, "  - "+yamlQuote(v))
	}
	return lines
}
