package normalize

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/solitaryfield/textkg/pkg/kg"
)

var (
	honorificRe  = regexp.MustCompile(`(?i)^(dr|mr|mrs|ms)\.?\s+`)
	mentionRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s&-]`)
	predicateRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	camelSplitRe = regexp.MustCompile(`([\p{Ll}\p{N}])(\p{Lu})`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// CleanMention lowercases a mention, strips leading honorifics and
// punctuation, and collapses whitespace. Cleaning is idempotent.
func CleanMention(s string) string {
	t := strings.TrimSpace(s)
	t = honorificRe.ReplaceAllString(t, "")
	t = mentionRe.ReplaceAllString(t, "")
	t = spaceRe.ReplaceAllString(t, " ")
	return strings.ToLower(strings.TrimSpace(t))
}

// tableKey reduces a predicate to its lookup form: lowercase words
// separated by single spaces. camelCase and snake_case spellings of
// the same phrase reduce to the same key.
func tableKey(s string) string {
	t := strings.TrimSpace(s)
	t = camelSplitRe.ReplaceAllString(t, "$1 $2")
	t = strings.ReplaceAll(t, "_", " ")
	t = predicateRe.ReplaceAllString(t, "")
	t = spaceRe.ReplaceAllString(t, " ")
	return strings.ToLower(strings.TrimSpace(t))
}

func snake(key string) string {
	return strings.ReplaceAll(key, " ", "_")
}

// Normalizer maps surface predicates onto a controlled snake_case
// vocabulary and cleans entity mentions.
type Normalizer struct {
	table map[string]string
}

// New builds a Normalizer over the given predicate table. Keys may be
// written in any spelling; values are forced to snake_case and every
// canonical value also resolves to itself, which is what makes
// normalization idempotent. A nil table selects DefaultTable.
func New(table map[string]string) *Normalizer {
	if table == nil {
		table = DefaultTable()
	}

	reduced := make(map[string]string, len(table)*2)
	for k, v := range table {
		reduced[tableKey(k)] = snake(tableKey(v))
	}
	for _, v := range reduced {
		key := tableKey(v)
		if _, ok := reduced[key]; !ok {
			reduced[key] = v
		}
	}
	return &Normalizer{table: reduced}
}

// LoadTable reads a predicate table from a JSON object of
// surface -> canonical pairs.
func LoadTable(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read predicate table")
	}
	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrapf(err, "parse predicate table %s", path)
	}
	return table, nil
}

// NormalizeMention implements kg.Normalizer.
func (n *Normalizer) NormalizeMention(m string) string {
	return CleanMention(m)
}

// NormalizePredicate maps a raw predicate into the vocabulary. Lookup
// tries the surface form first, then the lemma. Misses pass through in
// snake_case with unmapped=true so downstream consumers can treat them
// as lower confidence instead of losing the fact.
func (n *Normalizer) NormalizePredicate(pred, lemma string) (string, bool) {
	if v, ok := n.table[tableKey(pred)]; ok {
		return v, false
	}
	if lemma != "" {
		if v, ok := n.table[tableKey(lemma)]; ok {
			return v, false
		}
	}
	return snake(tableKey(pred)), true
}

// NormalizeTriple implements kg.Normalizer. The returned triple has
// cleaned mentions and a canonical (or passed-through) predicate;
// evidence and provenance fields are untouched.
func (n *Normalizer) NormalizeTriple(t kg.Triple) kg.Triple {
	t.Subject = CleanMention(t.Subject)
	t.Object = CleanMention(t.Object)
	t.Predicate, t.Unmapped = n.NormalizePredicate(t.Predicate, t.PredicateLemma)
	return t
}

// DefaultTable returns the built-in predicate vocabulary. Keys cover
// the inflections the extractors actually emit; the reduction in New
// lets the same entries match camelCase spellings from older gold
// files ("worksAt" and "works at" are the same key).
func DefaultTable() map[string]string {
	return map[string]string{
		// employment
		"joined":      "works_at",
		"joins":       "works_at",
		"join":        "works_at",
		"joined with": "works_at",
		"works at":    "works_at",
		"work at":     "works_at",
		"worked at":   "works_at",
		"works for":   "works_at",
		"work for":    "works_at",
		"worked for":  "works_at",
		"employed at": "works_at",
		"employed by": "works_at",

		// collaboration
		"works with":        "collaborates_with",
		"work with":         "collaborates_with",
		"worked with":       "collaborates_with",
		"collaborates with": "collaborates_with",
		"collaborate with":  "collaborates_with",
		"collaborated with": "collaborates_with",

		// departure
		"left":          "left_company",
		"leaves":        "left_company",
		"leave":         "left_company",
		"left company":  "left_company",
		"quit":          "left_company",
		"resigned from": "left_company",
		"resigns from":  "left_company",
		"resign from":   "left_company",

		// founding
		"founded":     "founded",
		"founds":      "founded",
		"found":       "founded",
		"cofounded":   "founded",
		"co founded":  "founded",
		"established": "founded",

		// roles
		"promoted to": "promoted_to",
		"role":        "has_role",
		"occupation":  "has_role",
		"serves as":   "has_role",
		"served as":   "has_role",
		"works as":    "has_role",

		// other professional relations
		"contracted with": "contracted_with",
		"contracts with":  "contracted_with",
		"organized with":  "organized_with",
		"organizes with":  "organized_with",
		"organised with":  "organized_with",
		"consulted for":   "consulted_for",
		"consults for":    "consulted_for",
		"volunteers at":   "volunteers_at",
		"volunteer at":    "volunteers_at",
		"volunteered at":  "volunteers_at",
		"mentors at":      "mentors_at",
		"mentor at":       "mentors_at",
		"mentored at":     "mentors_at",
		"partnered with":  "partnered_with",
		"partners with":   "partnered_with",
		"partner with":    "partnered_with",
		"recruited from":  "recruited_from",
		"recruits from":   "recruited_from",
	}
}
