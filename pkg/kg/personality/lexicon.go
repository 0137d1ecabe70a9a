package personality

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// TraitLexicon lists the marker words and phrases for one trait.
// Positive markers push the score up, negative markers push it down.
type TraitLexicon struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// Lexicon maps each Big Five trait to its markers.
type Lexicon map[string]TraitLexicon

// LoadLexicon reads a lexicon from a JSON object keyed by trait name.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read trait lexicon")
	}
	var lex Lexicon
	if err := json.Unmarshal(data, &lex); err != nil {
		return nil, errors.Wrapf(err, "parse trait lexicon %s", path)
	}
	return lex, nil
}

// DefaultLexicon returns the built-in marker lists. Markers are
// matched case-insensitively on word boundaries; multi-word markers
// match as phrases.
func DefaultLexicon() Lexicon {
	return Lexicon{
		"openness": {
			Positive: []string{
				"curious", "creative", "imaginative", "innovative",
				"inventive", "original", "artistic", "experimental",
				"explores", "new ideas", "unconventional",
			},
			Negative: []string{
				"conventional", "routine", "traditional", "predictable",
				"rigid", "resists change",
			},
		},
		"conscientiousness": {
			Positive: []string{
				"organized", "organised", "diligent", "thorough",
				"meticulous", "punctual", "reliable", "disciplined",
				"careful", "detail-oriented", "responsible", "methodical",
				"on time", "ahead of schedule",
			},
			Negative: []string{
				"careless", "disorganized", "disorganised", "messy",
				"unreliable", "procrastinates", "sloppy", "forgetful",
				"missed deadlines",
			},
		},
		"extraversion": {
			Positive: []string{
				"outgoing", "talkative", "sociable", "energetic",
				"enthusiastic", "gregarious", "assertive", "lively",
				"loves parties", "networking",
			},
			Negative: []string{
				"quiet", "reserved", "shy", "withdrawn", "solitary",
				"introverted", "prefers working alone",
			},
		},
		"agreeableness": {
			Positive: []string{
				"kind", "helpful", "warm", "friendly", "cooperative",
				"supportive", "generous", "compassionate", "patient",
				"mentors", "volunteers",
			},
			Negative: []string{
				"critical", "harsh", "rude", "argumentative", "stubborn",
				"dismissive", "cold", "confrontational",
			},
		},
		"neuroticism": {
			Positive: []string{
				"anxious", "worried", "nervous", "stressed", "moody",
				"insecure", "tense", "panics", "irritable", "overwhelmed",
			},
			Negative: []string{
				"calm", "relaxed", "composed", "stable", "resilient",
				"even-tempered", "unflappable",
			},
		},
	}
}
