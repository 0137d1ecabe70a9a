package kg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg/metrics"
)

var (
	pipelineProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_processing_duration_seconds",
			Help: "Time spent processing documents in the pipeline",
		},
		[]string{"stage"},
	)

	documentProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_documents_processed_total",
			Help: "Total number of documents processed",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(pipelineProcessingDuration)
	prometheus.MustRegister(documentProcessedTotal)
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID           string              `json:"run_id"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      time.Time           `json:"finished_at"`
	Documents       int                 `json:"documents"`
	Sentences       int                 `json:"sentences"`
	ParseMisses     int                 `json:"parse_misses"`
	RawTriples      int                 `json:"raw_triples"`
	Triples         int                 `json:"triples"`
	UnmappedTriples int                 `json:"unmapped_triples"`
	DroppedTriples  int                 `json:"dropped_triples"`
	Entities        int                 `json:"entities"`
	Persons         int                 `json:"persons"`
	Failures        []ValidationFailure `json:"failures,omitempty"`
}

// DocumentResult holds everything the pipeline derived from one
// document. RawTriples are pre-normalization; Triples are normalized
// and entity-resolved. Persons lists the canonical person entities
// mentioned in this document, which the evaluator uses to join
// per-document gold labels against run-wide assertions.
type DocumentResult struct {
	DocID       string   `json:"doc_id"`
	Sentences   int      `json:"sentences"`
	ParseMisses int      `json:"parse_misses"`
	Dropped     int      `json:"dropped,omitempty"`
	RawTriples  []Triple `json:"raw_triples,omitempty"`
	Triples     []Triple `json:"triples"`
	Persons     []string `json:"persons,omitempty"`
}

// Result is the full output of a run, serializable as a single
// artifact.
type Result struct {
	RunID      string              `json:"run_id"`
	Documents  []DocumentResult    `json:"documents"`
	Entities   []Entity            `json:"entities"`
	Assertions []TraitAssertion    `json:"assertions,omitempty"`
	Graph      *KnowledgeGraphData `json:"graph"`
	Report     RunReport           `json:"report"`
}

// Runner wires the pipeline stages together and executes them over a
// corpus: annotate, extract, normalize, canonicalize, score, build.
// Documents are processed sequentially in input order so entity IDs
// and graph output are reproducible across runs.
type Runner struct {
	annotator  Annotator
	normalizer Normalizer
	canon      Canonicalizer
	extractors []TripleExtractor
	scorer     TraitScorer
	logger     *logrus.Logger
}

// NewRunner creates a Runner over the three mandatory stages.
// Extractors and the scorer are added separately.
func NewRunner(annotator Annotator, normalizer Normalizer, canon Canonicalizer) *Runner {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Runner{
		annotator:  annotator,
		normalizer: normalizer,
		canon:      canon,
		logger:     logger,
	}
}

// AddExtractor appends a triple extractor. Extractors run in the order
// they were added.
func (r *Runner) AddExtractor(e TripleExtractor) {
	r.extractors = append(r.extractors, e)
}

// SetScorer enables personality scoring.
func (r *Runner) SetScorer(s TraitScorer) {
	r.scorer = s
}

// Run executes the pipeline over the documents. Per-document and
// per-item problems are collected in the report; only context
// cancellation and graph consistency errors abort the run.
func (r *Runner) Run(ctx context.Context, docs []Document) (*Result, error) {
	if r.annotator == nil || r.normalizer == nil || r.canon == nil {
		return nil, fmt.Errorf("runner is missing a mandatory stage")
	}
	if len(r.extractors) == 0 {
		return nil, fmt.Errorf("no extractors configured in pipeline")
	}

	runID := uuid.New().String()
	ctx = WithRunID(ctx, runID)

	report := RunReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Documents: len(docs),
	}
	r.logger.WithFields(logrus.Fields{
		"run_id":         runID,
		"document_count": len(docs),
	}).Info("Starting pipeline run")

	results := make([]DocumentResult, 0, len(docs))
	sentsByDoc := make(map[string][]Sentence, len(docs))

	for i := range docs {
		doc := &docs[i]

		timer := prometheus.NewTimer(pipelineProcessingDuration.WithLabelValues("document"))
		dr, sents, fails, err := r.processDocument(ctx, doc)
		timer.ObserveDuration()

		report.Failures = append(report.Failures, fails...)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			documentProcessedTotal.WithLabelValues("error").Inc()
			r.logger.WithError(err).WithField("doc_id", doc.ID).Error("Failed to process document")
			report.Failures = append(report.Failures, ValidationFailure{
				DocID:  doc.ID,
				Stage:  StageAnnotate,
				Reason: "annotate_error",
				Detail: err.Error(),
			})
			continue
		}

		documentProcessedTotal.WithLabelValues("success").Inc()
		results = append(results, dr)
		sentsByDoc[doc.ID] = sents
	}

	entities := r.canon.Entities()
	persons := personEntities(entities)
	for i := range results {
		results[i].Persons = mentionedPersons(sentsByDoc[results[i].DocID], persons)
	}

	assertions, scoreFails, err := r.scoreAll(ctx, persons, results, sentsByDoc)
	if err != nil {
		return nil, err
	}
	report.Failures = append(report.Failures, scoreFails...)

	graph, err := r.buildGraph(entities, results, assertions)
	if err != nil {
		return nil, err
	}

	for _, dr := range results {
		report.Sentences += dr.Sentences
		report.ParseMisses += dr.ParseMisses
		report.RawTriples += len(dr.RawTriples)
		report.Triples += len(dr.Triples)
		report.DroppedTriples += dr.Dropped
		for _, t := range dr.Triples {
			if t.Unmapped {
				report.UnmappedTriples++
			}
		}
	}
	report.Entities = len(entities)
	report.Persons = len(persons)
	for _, f := range report.Failures {
		metrics.ValidationFailures.WithLabelValues(f.Stage, f.Reason).Inc()
	}
	report.FinishedAt = time.Now().UTC()

	r.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"triples":  report.Triples,
		"entities": report.Entities,
		"failures": len(report.Failures),
	}).Info("Pipeline run completed")

	return &Result{
		RunID:      runID,
		Documents:  results,
		Entities:   entities,
		Assertions: assertions,
		Graph:      graph,
		Report:     report,
	}, nil
}

// processDocument annotates one document, runs every extractor, then
// normalizes and entity-resolves the raw triples. Named-entity spans
// are resolved before triples so entities appear in reading order.
func (r *Runner) processDocument(ctx context.Context, doc *Document) (DocumentResult, []Sentence, []ValidationFailure, error) {
	sents, err := r.annotator.Annotate(ctx, doc.Text)
	if err != nil {
		return DocumentResult{}, nil, nil, fmt.Errorf("annotate document %s: %w", doc.ID, err)
	}

	dr := DocumentResult{DocID: doc.ID, Sentences: len(sents)}

	for _, s := range sents {
		for _, span := range s.Entities {
			r.canon.Resolve(span.Text, span.Label)
		}
	}

	var failures []ValidationFailure
	var raw []Triple
	trackMisses := false
	covered := make(map[int]bool)
	for _, ex := range r.extractors {
		triples, fails, err := ex.Extract(ctx, doc, sents)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return DocumentResult{}, nil, nil, ctxErr
			}
			failures = append(failures, ValidationFailure{
				DocID:  doc.ID,
				Stage:  StageExtract,
				Reason: ReasonLLMError,
				Detail: fmt.Sprintf("%s: %v", ex.Name(), err),
			})
			continue
		}
		failures = append(failures, fails...)
		raw = append(raw, triples...)
		if ex.Name() == MethodSVO {
			trackMisses = true
			for _, t := range triples {
				covered[t.SentenceIndex] = true
			}
		}
	}
	if trackMisses {
		for _, s := range sents {
			if !covered[s.Index] {
				dr.ParseMisses++
			}
		}
	}
	dr.RawTriples = raw

	for _, t := range raw {
		nt := r.normalizer.NormalizeTriple(t)
		if nt.Subject == "" || nt.Predicate == "" || nt.Object == "" {
			dr.Dropped++
			metrics.TriplesDropped.WithLabelValues("empty_mention").Inc()
			continue
		}
		if nt.Unmapped {
			metrics.UnmappedPredicates.Inc()
		}

		subjID, skipped := r.canon.Resolve(nt.Subject, nt.SubjectHint)
		if skipped {
			dr.Dropped++
			metrics.TriplesDropped.WithLabelValues("short_mention").Inc()
			continue
		}
		objID, skipped := r.canon.Resolve(nt.Object, nt.ObjectHint)
		if skipped {
			dr.Dropped++
			metrics.TriplesDropped.WithLabelValues("short_mention").Inc()
			continue
		}

		nt.SubjectEntity = subjID
		nt.ObjectEntity = objID
		dr.Triples = append(dr.Triples, nt)
	}

	return dr, sents, failures, nil
}

// scoreAll runs the trait scorer once per person over every sentence
// in the corpus that mentions them, in document order.
func (r *Runner) scoreAll(ctx context.Context, persons []Entity, results []DocumentResult, sentsByDoc map[string][]Sentence) ([]TraitAssertion, []ValidationFailure, error) {
	if r.scorer == nil {
		return nil, nil, nil
	}

	timer := prometheus.NewTimer(pipelineProcessingDuration.WithLabelValues("personality"))
	defer timer.ObserveDuration()

	var assertions []TraitAssertion
	var failures []ValidationFailure
	for _, p := range persons {
		sentences := mentionSentences(results, sentsByDoc, p)
		if len(sentences) == 0 {
			continue
		}

		as, fails, err := r.scorer.Score(ctx, p, sentences)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			failures = append(failures, ValidationFailure{
				EntityID: p.ID,
				Stage:    StagePersonality,
				Reason:   ReasonLLMError,
				Detail:   err.Error(),
			})
			continue
		}
		failures = append(failures, fails...)
		assertions = append(assertions, as...)
	}
	return assertions, failures, nil
}

func (r *Runner) buildGraph(entities []Entity, results []DocumentResult, assertions []TraitAssertion) (*KnowledgeGraphData, error) {
	builder := NewGraphBuilder()
	for _, e := range entities {
		builder.AddEntity(e)
	}
	for _, dr := range results {
		for _, t := range dr.Triples {
			if err := builder.AddTriple(t); err != nil {
				return nil, err
			}
		}
	}
	for _, a := range assertions {
		if err := builder.AddTraitAssertion(a); err != nil {
			return nil, err
		}
	}
	return builder.Graph(), nil
}

func personEntities(entities []Entity) []Entity {
	var persons []Entity
	for _, e := range entities {
		if e.Type == TypePerson {
			persons = append(persons, e)
		}
	}
	return persons
}

func mentionedPersons(sents []Sentence, persons []Entity) []string {
	var ids []string
	for _, p := range persons {
		for _, s := range sents {
			if mentionsEntity(s.Text, p) {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids
}

func mentionSentences(results []DocumentResult, sentsByDoc map[string][]Sentence, p Entity) []string {
	var out []string
	for _, dr := range results {
		for _, s := range sentsByDoc[dr.DocID] {
			if mentionsEntity(s.Text, p) {
				out = append(out, s.Text)
			}
		}
	}
	return out
}

func mentionsEntity(text string, p Entity) bool {
	lower := strings.ToLower(text)
	for _, m := range p.Mentions {
		if m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
