package llm

import (
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON strips markdown code fences and surrounding prose from a
// model reply, returning the outermost JSON object it contains. The
// input is returned unchanged when no object can be located.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
