package annotate

import "strings"

// Common verbs whose base form suffix rules cannot recover.
var irregularVerbs = map[string]string{
	"am": "be", "is": "be", "are": "be", "was": "be", "were": "be",
	"been": "be", "being": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do",
	"went": "go", "gone": "go", "goes": "go",
	"began": "begin", "brought": "bring", "built": "build",
	"came": "come", "created": "create", "gave": "give", "got": "get",
	"grew": "grow", "held": "hold", "hired": "hire", "kept": "keep",
	"knew": "know", "led": "lead", "left": "leave", "made": "make",
	"managed": "manage", "met": "meet", "moved": "move",
	"promoted": "promote", "raised": "raise", "ran": "run",
	"retired": "retire", "said": "say", "saw": "see",
	"served": "serve", "shared": "share", "spoke": "speak",
	"taught": "teach", "thought": "think", "told": "tell",
	"took": "take", "wrote": "write",
}

// Lemma returns a lowercase base form for verb tokens. Non-verb tags
// are lowercased only. Normalization looks predicates up by surface
// form first, so the rules only have to catch the common inflections.
func Lemma(text, tag string) string {
	w := strings.ToLower(text)
	if !strings.HasPrefix(tag, "VB") {
		return w
	}
	if base, ok := irregularVerbs[w]; ok {
		return base
	}
	if len(w) <= 3 {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zzes"), strings.HasSuffix(w, "oes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ied"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "eed"):
		return w[:len(w)-1]
	case strings.HasSuffix(w, "ed"):
		return fixStem(w[:len(w)-2])
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		return fixStem(w[:len(w)-3])
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// fixStem repairs stems left by stripping "ed"/"ing": undoubles final
// consonants (planned -> plan) and restores a trailing e after the
// Porter (at, bl, iz) endings (organiz -> organize).
func fixStem(stem string) string {
	if len(stem) >= 2 {
		last := stem[len(stem)-1]
		if last == stem[len(stem)-2] {
			switch last {
			case 'b', 'd', 'g', 'm', 'n', 'p', 'r', 't':
				return stem[:len(stem)-1]
			}
		}
	}
	for _, end := range []string{"at", "bl", "iz"} {
		if strings.HasSuffix(stem, end) {
			return stem + "e"
		}
	}
	return stem
}
