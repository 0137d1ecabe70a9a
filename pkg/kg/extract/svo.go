package extract

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/metrics"
)

var extractionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "extract_duration_seconds",
		Help: "Time spent extracting triples",
	},
	[]string{"method"},
)

func init() {
	prometheus.MustRegister(extractionDuration)
}

const (
	svoConfidence = 0.85
	llmConfidence = 0.8
)

// Auxiliaries and modals head no useful relation on their own.
var auxiliaryVerbs = mapset.NewSet[string](
	"am", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having",
	"do", "does", "did",
	"will", "would", "shall", "should", "can", "could", "may", "might", "must",
)

// Prepositions that fold into the predicate when the object attaches
// through them ("works" + "with" -> "works_with").
var foldedPreps = mapset.NewSet[string](
	"with", "at", "for", "from", "to", "in", "on", "into", "by", "as",
)

// SVO extracts subject-verb-object triples from tagged sentences. For
// every non-auxiliary verb it takes the nearest nominal to the left as
// subject and the nearest to the right as object. Sentences without
// such a pattern yield nothing; the LLM extractor fills the gaps.
type SVO struct {
	logger *logrus.Logger
}

// NewSVO creates the heuristic extractor.
func NewSVO() *SVO {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &SVO{logger: logger}
}

// Name implements kg.TripleExtractor.
func (e *SVO) Name() string { return kg.MethodSVO }

// Extract implements kg.TripleExtractor. It never fails; sentences it
// cannot parse simply yield no triples.
func (e *SVO) Extract(ctx context.Context, doc *kg.Document, sents []kg.Sentence) ([]kg.Triple, []kg.ValidationFailure, error) {
	timer := prometheus.NewTimer(extractionDuration.WithLabelValues(kg.MethodSVO))
	defer timer.ObserveDuration()

	var triples []kg.Triple
	for _, s := range sents {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		triples = append(triples, e.extractSentence(doc, s)...)
	}

	metrics.TriplesExtracted.WithLabelValues(kg.MethodSVO).Add(float64(len(triples)))
	e.logger.WithFields(logrus.Fields{
		"doc_id":       doc.ID,
		"triple_count": len(triples),
	}).Info("Heuristic extraction completed")

	return triples, nil, nil
}

func (e *SVO) extractSentence(doc *kg.Document, s kg.Sentence) []kg.Triple {
	var out []kg.Triple
	for i, tok := range s.Tokens {
		if !strings.HasPrefix(tok.Tag, "VB") {
			continue
		}
		if auxiliaryVerbs.Contains(strings.ToLower(tok.Text)) {
			continue
		}

		subj, ok := subjectBefore(s.Tokens, i)
		if !ok {
			continue
		}
		obj, prep, ok := objectAfter(s.Tokens, i)
		if !ok || strings.EqualFold(subj, obj) {
			continue
		}

		pred := strings.ToLower(tok.Text)
		lemma := tok.Lemma
		if prep != "" {
			pred += "_" + prep
			lemma += "_" + prep
		}

		out = append(out, kg.Triple{
			Subject:        subj,
			Predicate:      pred,
			Object:         obj,
			DocID:          doc.ID,
			SentenceIndex:  s.Index,
			Evidence:       s.Text,
			Method:         kg.MethodSVO,
			Confidence:     svoConfidence,
			PredicateLemma: lemma,
			SubjectHint:    entityHint(s, subj),
			ObjectHint:     entityHint(s, obj),
		})
	}
	return out
}

// subjectBefore returns the nearest nominal to the left of the verb.
// Pronoun subjects are kept as-is; coreference is out of scope.
func subjectBefore(tokens []kg.Token, verb int) (string, bool) {
	for j := verb - 1; j >= 0; j-- {
		tag := tokens[j].Tag
		switch {
		case strings.HasPrefix(tag, "NN"):
			return expandNominal(tokens, j), true
		case tag == "PRP":
			return tokens[j].Text, true
		}
	}
	return "", false
}

// objectAfter returns the nearest nominal to the right of the verb and
// the preposition it attaches through, if any. The scan stops at the
// next full verb so objects are not pulled across clause boundaries.
func objectAfter(tokens []kg.Token, verb int) (obj, prep string, ok bool) {
	for j := verb + 1; j < len(tokens); j++ {
		tok := tokens[j]
		switch {
		case strings.HasPrefix(tok.Tag, "NN"):
			return expandNominal(tokens, j), prep, true
		case tok.Tag == "IN" || tok.Tag == "TO":
			p := strings.ToLower(tok.Text)
			if prep == "" && foldedPreps.Contains(p) {
				prep = p
			}
		case strings.HasPrefix(tok.Tag, "VB") && !auxiliaryVerbs.Contains(strings.ToLower(tok.Text)):
			return "", "", false
		}
	}
	return "", "", false
}

// expandNominal widens a nominal token to its contiguous run so that
// "Acme Corp" and "project manager" come out as single mentions.
func expandNominal(tokens []kg.Token, j int) string {
	proper := tokens[j].Tag == "NNP" || tokens[j].Tag == "NNPS"
	match := func(tag string) bool {
		if proper {
			return tag == "NNP" || tag == "NNPS"
		}
		return tag == "NN" || tag == "NNS"
	}

	start, end := j, j
	for start > 0 && match(tokens[start-1].Tag) {
		start--
	}
	for end+1 < len(tokens) && match(tokens[end+1].Tag) {
		end++
	}

	parts := make([]string, 0, end-start+1)
	for k := start; k <= end; k++ {
		parts = append(parts, tokens[k].Text)
	}
	return strings.Join(parts, " ")
}

// entityHint returns the NER label of the span covering a mention, or
// "" when no span matches.
func entityHint(s kg.Sentence, mention string) string {
	for _, span := range s.Entities {
		if span.Text == mention || strings.Contains(span.Text, mention) || strings.Contains(mention, span.Text) {
			return span.Label
		}
	}
	return ""
}
