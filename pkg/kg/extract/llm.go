package extract

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/metrics"
	"github.com/solitaryfield/textkg/pkg/llm"
	"github.com/solitaryfield/textkg/pkg/provenance"
	"github.com/solitaryfield/textkg/prompts"
)

const defaultBatchSize = 8

// LLM extracts triples by prompting a language model over batches of
// sentences. Every reply is validated against the batch it was asked
// about; an invalid reply is retried once with a stricter reprompt,
// after which the offending items are dropped and reported. Raw
// prompts and replies always land in the provenance log first.
type LLM struct {
	client    llm.Client
	recorder  provenance.Recorder
	batchSize int
	logger    *logrus.Logger
}

// NewLLM creates the model-backed extractor. A nil recorder discards
// provenance; batchSize <= 0 selects the default of 8 sentences.
func NewLLM(client llm.Client, recorder provenance.Recorder, batchSize int) *LLM {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if recorder == nil {
		recorder = provenance.Discard{}
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &LLM{
		client:    client,
		recorder:  recorder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Name implements kg.TripleExtractor.
func (e *LLM) Name() string { return kg.MethodLLM }

// Extract implements kg.TripleExtractor. Failures are collected per
// batch; a broken batch never takes down the document.
func (e *LLM) Extract(ctx context.Context, doc *kg.Document, sents []kg.Sentence) ([]kg.Triple, []kg.ValidationFailure, error) {
	timer := prometheus.NewTimer(extractionDuration.WithLabelValues(kg.MethodLLM))
	defer timer.ObserveDuration()

	var triples []kg.Triple
	var failures []kg.ValidationFailure
	for start := 0; start < len(sents); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := min(start+e.batchSize, len(sents))
		bt, bf := e.extractBatch(ctx, doc, sents[start:end])
		triples = append(triples, bt...)
		failures = append(failures, bf...)
	}

	metrics.TriplesExtracted.WithLabelValues(kg.MethodLLM).Add(float64(len(triples)))
	e.logger.WithFields(logrus.Fields{
		"doc_id":        doc.ID,
		"triple_count":  len(triples),
		"failure_count": len(failures),
	}).Info("LLM extraction completed")

	return triples, failures, nil
}

func (e *LLM) extractBatch(ctx context.Context, doc *kg.Document, batch []kg.Sentence) ([]kg.Triple, []kg.ValidationFailure) {
	prompt := prompts.RelationExtraction(batch)

	raw, err := e.complete(ctx, doc, prompt, 1)
	if err == nil {
		triples, problems := parseTriples(raw, doc, batch)
		if len(problems) == 0 {
			return triples, nil
		}
	}

	raw, err = e.complete(ctx, doc, prompt+prompts.RelationReprompt, 2)
	if err != nil {
		return nil, []kg.ValidationFailure{{
			DocID:  doc.ID,
			Stage:  kg.StageExtract,
			Reason: kg.ReasonLLMError,
			Detail: err.Error(),
		}}
	}
	return parseTriples(raw, doc, batch)
}

// complete runs one call and records it, success or not.
func (e *LLM) complete(ctx context.Context, doc *kg.Document, prompt string, attempt int) (string, error) {
	raw, err := e.client.Complete(ctx, llm.Request{
		Kind:     llm.KindRelation,
		Prompt:   prompt,
		JSONMode: true,
	})

	rec := provenance.Record{
		RunID:        kg.RunIDFromContext(ctx),
		DocID:        doc.ID,
		Kind:         llm.KindRelation,
		Model:        e.client.Model(),
		Prompt:       prompt,
		Response:     raw,
		Attempt:      attempt,
		PromptTokens: llm.CountTokens(prompt),
	}
	if raw != "" {
		rec.ResponseTokens = llm.CountTokens(raw)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if aerr := e.recorder.Append(rec); aerr != nil {
		e.logger.WithError(aerr).Warn("Failed to append provenance record")
	}

	return raw, err
}

// parseTriples validates a model reply against the batch it answers.
// Valid items survive even when siblings fail; every rejected item is
// reported with the reason the report counts it under.
func parseTriples(raw string, doc *kg.Document, batch []kg.Sentence) ([]kg.Triple, []kg.ValidationFailure) {
	fail := func(reason, detail string) kg.ValidationFailure {
		return kg.ValidationFailure{
			DocID:  doc.ID,
			Stage:  kg.StageExtract,
			Reason: reason,
			Detail: detail,
		}
	}

	clean := llm.ExtractJSON(raw)
	if !gjson.Valid(clean) {
		return nil, []kg.ValidationFailure{fail(kg.ReasonMalformedJSON, truncate(raw, 200))}
	}
	items := gjson.Get(clean, "triples")
	if !items.Exists() || !items.IsArray() {
		return nil, []kg.ValidationFailure{fail(kg.ReasonMalformedJSON, "no triples array")}
	}

	byIndex := make(map[int]kg.Sentence, len(batch))
	for _, s := range batch {
		byIndex[s.Index] = s
	}

	var triples []kg.Triple
	var problems []kg.ValidationFailure
	for _, item := range items.Array() {
		subject := strings.TrimSpace(item.Get("subject").String())
		predicate := strings.TrimSpace(item.Get("predicate").String())
		object := strings.TrimSpace(item.Get("object").String())
		evidence := strings.TrimSpace(item.Get("evidence").String())
		if subject == "" || predicate == "" || object == "" || evidence == "" {
			problems = append(problems, fail(kg.ReasonMissingField, truncate(item.Raw, 200)))
			continue
		}

		idx := item.Get("sentence_index")
		sent, known := byIndex[int(idx.Int())]
		if !idx.Exists() || !known {
			problems = append(problems, fail(kg.ReasonSentenceIndex, truncate(item.Raw, 200)))
			continue
		}
		if !strings.Contains(sent.Text, evidence) {
			problems = append(problems, fail(kg.ReasonEvidenceMismatch, truncate(evidence, 200)))
			continue
		}

		triples = append(triples, kg.Triple{
			Subject:       subject,
			Predicate:     predicate,
			Object:        object,
			DocID:         doc.ID,
			SentenceIndex: sent.Index,
			Evidence:      evidence,
			Method:        kg.MethodLLM,
			Confidence:    llmConfidence,
			SubjectHint:   entityHint(sent, subject),
			ObjectHint:    entityHint(sent, object),
		})
	}
	return triples, problems
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
