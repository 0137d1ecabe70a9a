package canon

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/normalize"
)

// DefaultThreshold is the similarity at or above which two mentions
// fold into the same entity. 0.8 tolerates one edit in a five-letter
// name and transposed letters in a ten-letter one.
const DefaultThreshold = 0.8

// Reference is a known entity the canonicalizer may fold mentions
// into, typically loaded from a gold file or a curated list.
type Reference struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Config tunes mention folding.
type Config struct {
	// Threshold is the minimum similarity for a merge; zero selects
	// DefaultThreshold.
	Threshold float64
	// MinMentionRunes is the length at or below which mentions are
	// skipped as non-entities; zero selects 2.
	MinMentionRunes int
}

type refEntry struct {
	name   string
	typ    string
	entity int
}

// Canonicalizer folds cleaned mentions into canonical entities.
// Clustering is online and order-dependent, and deterministic with it:
// the same mentions resolved in the same order always produce the same
// "E<n>" identifiers. Ties at equal similarity go to the reference
// list first, then to the earliest-created entity.
type Canonicalizer struct {
	cfg      Config
	refs     []refEntry
	entities []kg.Entity
	byName   map[string]int
	dmp      *diffmatchpatch.DiffMatchPatch
	logger   *logrus.Logger
}

// New creates a Canonicalizer seeded with the given references.
// Reference names are cleaned with the same rules as mentions so both
// sides of every comparison are in the same form.
func New(cfg Config, refs []Reference) *Canonicalizer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinMentionRunes <= 0 {
		cfg.MinMentionRunes = 2
	}

	c := &Canonicalizer{
		cfg:    cfg,
		byName: make(map[string]int),
		dmp:    diffmatchpatch.New(),
		logger: logger,
	}
	for _, r := range refs {
		name := normalize.CleanMention(r.Name)
		if name == "" {
			continue
		}
		c.refs = append(c.refs, refEntry{name: name, typ: mapType(r.Type), entity: -1})
	}
	return c
}

// LoadReferences reads a JSON array of {"name", "type"} objects.
func LoadReferences(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read reference list")
	}
	var refs []Reference
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, errors.Wrapf(err, "parse reference list %s", path)
	}
	return refs, nil
}

// Resolve implements kg.Canonicalizer. The mention is cleaned, matched
// against the reference list and every entity created so far, and
// either merged into the best match at or above the threshold or
// registered as a new entity. Mentions at or below the length floor
// are skipped as non-entities.
func (c *Canonicalizer) Resolve(mention, hint string) (string, bool) {
	m := normalize.CleanMention(mention)
	if utf8.RuneCountInString(m) <= c.cfg.MinMentionRunes {
		return "", true
	}

	if idx, ok := c.byName[m]; ok {
		c.merge(idx, m, hint)
		return c.entities[idx].ID, false
	}

	bestRef, bestRefScore := -1, 0.0
	for i := range c.refs {
		if s := c.similarity(m, c.refs[i].name); s > bestRefScore {
			bestRef, bestRefScore = i, s
		}
	}
	bestEnt, bestEntScore := -1, 0.0
	for i := range c.entities {
		if s := c.entityScore(m, c.entities[i]); s > bestEntScore {
			bestEnt, bestEntScore = i, s
		}
	}

	switch {
	case bestRef >= 0 && bestRefScore >= c.cfg.Threshold && bestRefScore >= bestEntScore:
		idx := c.instantiateRef(bestRef)
		c.merge(idx, m, hint)
		return c.entities[idx].ID, false
	case bestEnt >= 0 && bestEntScore >= c.cfg.Threshold:
		c.merge(bestEnt, m, hint)
		return c.entities[bestEnt].ID, false
	}

	idx := c.newEntity(m, typeFromHint(hint), false)
	c.merge(idx, m, hint)
	return c.entities[idx].ID, false
}

// Entities returns the canonical entities in creation order.
func (c *Canonicalizer) Entities() []kg.Entity {
	out := make([]kg.Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

func (c *Canonicalizer) instantiateRef(i int) int {
	if c.refs[i].entity >= 0 {
		return c.refs[i].entity
	}
	idx := c.newEntity(c.refs[i].name, c.refs[i].typ, true)
	c.refs[i].entity = idx
	return idx
}

func (c *Canonicalizer) newEntity(name, typ string, fromRef bool) int {
	idx := len(c.entities)
	c.entities = append(c.entities, kg.Entity{
		ID:            fmt.Sprintf("E%d", idx+1),
		Name:          name,
		Type:          typ,
		FromReference: fromRef,
	})
	c.byName[name] = idx
	c.logger.WithFields(logrus.Fields{
		"entity_id":      c.entities[idx].ID,
		"name":           name,
		"type":           typ,
		"from_reference": fromRef,
	}).Debug("Created canonical entity")
	return idx
}

func (c *Canonicalizer) merge(idx int, mention, hint string) {
	e := &c.entities[idx]
	known := false
	for _, m := range e.Mentions {
		if m == mention {
			known = true
			break
		}
	}
	if !known {
		e.Mentions = append(e.Mentions, mention)
	}
	if _, ok := c.byName[mention]; !ok {
		c.byName[mention] = idx
	}
	if e.Type == kg.TypeUnknown {
		if t := typeFromHint(hint); t != kg.TypeUnknown {
			e.Type = t
		}
	}
}

// entityScore is the best similarity between the mention and any
// surface form already folded into the entity.
func (c *Canonicalizer) entityScore(m string, e kg.Entity) float64 {
	best := c.similarity(m, e.Name)
	for _, known := range e.Mentions {
		if s := c.similarity(m, known); s > best {
			best = s
		}
	}
	return best
}

// similarity is 1 minus the Levenshtein distance normalized by the
// longer string, computed over a character diff.
func (c *Canonicalizer) similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	diffs := c.dmp.DiffMain(a, b, false)
	dist := c.dmp.DiffLevenshtein(diffs)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(dist)/float64(longest)
}

// typeFromHint maps NER labels onto entity types.
func typeFromHint(hint string) string {
	return mapType(hint)
}

func mapType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "per":
		return kg.TypePerson
	case "organization", "org":
		return kg.TypeOrganization
	case "location", "gpe", "loc":
		return kg.TypeLocation
	default:
		return kg.TypeUnknown
	}
}
