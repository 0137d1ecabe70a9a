package kg

import (
	"context"
	"time"
)

// Extraction methods recorded on triples and trait scores.
const (
	MethodSVO  = "svo"
	MethodLLM  = "llm"
	MethodRule = "rule"
)

// Entity types assigned by canonicalization.
const (
	TypePerson       = "person"
	TypeOrganization = "organization"
	TypeLocation     = "location"
	TypeTrait        = "trait"
	TypeUnknown      = "unknown"
)

// Traits lists the Big Five dimensions in their canonical order.
var Traits = []string{
	"openness",
	"conscientiousness",
	"extraversion",
	"agreeableness",
	"neuroticism",
}

// Triple represents one (subject, predicate, object) fact. Before
// normalization subject and object are surface mentions; afterwards the
// predicate comes from the controlled vocabulary (or is passed through
// with Unmapped set) and SubjectEntity/ObjectEntity point at canonical
// entities.
type Triple struct {
	Subject        string  `json:"subject"`
	Predicate      string  `json:"predicate"`
	Object         string  `json:"object"`
	DocID          string  `json:"doc_id"`
	SentenceIndex  int     `json:"sentence_index"`
	Evidence       string  `json:"evidence"`
	Method         string  `json:"method"`
	Confidence     float64 `json:"confidence"`
	Unmapped       bool    `json:"unmapped,omitempty"`
	PredicateLemma string  `json:"predicate_lemma,omitempty"`
	SubjectHint    string  `json:"subject_hint,omitempty"`
	ObjectHint     string  `json:"object_hint,omitempty"`
	SubjectEntity  string  `json:"subject_entity,omitempty"`
	ObjectEntity   string  `json:"object_entity,omitempty"`
}

// Entity represents a canonical entity produced by mention clustering.
// IDs are assigned in creation order ("E1", "E2", ...) so repeated runs
// over the same input produce the same identifiers.
type Entity struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Mentions      []string `json:"mentions"`
	FromReference bool     `json:"from_reference,omitempty"`
}

// TraitScore is one scoring method's estimate for a single trait.
type TraitScore struct {
	Method     string  `json:"method"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// TraitAssertion holds every score produced for one (person, trait)
// pair in a run. Scores from different methods coexist and are never
// overwritten; there is at most one entry per method.
type TraitAssertion struct {
	EntityID string       `json:"entity_id"`
	Trait    string       `json:"trait"`
	Scores   []TraitScore `json:"scores"`
}

// Score returns the entry for the given method and whether it exists.
func (a TraitAssertion) Score(method string) (TraitScore, bool) {
	for _, s := range a.Scores {
		if s.Method == method {
			return s, true
		}
	}
	return TraitScore{}, false
}

// ValidationFailure records a dropped or degraded item and why. The
// pipeline collects these instead of aborting; only graph consistency
// errors are fatal.
type ValidationFailure struct {
	DocID    string `json:"doc_id,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Failure stages.
const (
	StageAnnotate    = "annotate"
	StageExtract     = "extract"
	StagePersonality = "personality"
)

// Failure reasons shared by the LLM-backed stages.
const (
	ReasonMalformedJSON    = "malformed_json"
	ReasonMissingField     = "missing_field"
	ReasonEvidenceMismatch = "evidence_mismatch"
	ReasonSentenceIndex    = "sentence_index"
	ReasonScoreRange       = "score_range"
	ReasonLLMError         = "llm_error"
)

// Annotator turns raw text into sentences with offsets, tokens and
// named-entity spans.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Sentence, error)
}

// TripleExtractor emits raw triples for one annotated document.
type TripleExtractor interface {
	Extract(ctx context.Context, doc *Document, sents []Sentence) ([]Triple, []ValidationFailure, error)
	Name() string
}

// Normalizer maps raw triples and mentions onto the controlled
// vocabulary. Normalization is idempotent.
type Normalizer interface {
	NormalizeTriple(t Triple) Triple
	NormalizeMention(m string) string
}

// Canonicalizer folds normalized mentions into canonical entities.
// Resolve reports skipped=true for mentions too short to be entities.
type Canonicalizer interface {
	Resolve(mention, hint string) (entityID string, skipped bool)
	Entities() []Entity
}

// TraitScorer estimates Big Five scores for one person from the
// sentences that mention them.
type TraitScorer interface {
	Score(ctx context.Context, entity Entity, sentences []string) ([]TraitAssertion, []ValidationFailure, error)
}

// Node represents a node in the exported knowledge graph.
type Node struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Sources    []string               `json:"sources,omitempty"`
}

// Edge represents a directed edge in the exported knowledge graph.
type Edge struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Weight     float64                `json:"weight"`
}

// KnowledgeGraphData is the serializable graph produced by a run.
type KnowledgeGraphData struct {
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	GeneratedAt time.Time `json:"generated_at"`
}
