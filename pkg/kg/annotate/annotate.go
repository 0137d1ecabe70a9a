package annotate

import (
	"context"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/metrics"
)

var annotationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "annotate_duration_seconds",
		Help: "Time spent annotating documents",
	},
	[]string{"stage"},
)

func init() {
	prometheus.MustRegister(annotationDuration)
}

// Prose annotates text with the prose NLP library: sentence
// segmentation, Penn Treebank token tags and named-entity spans.
type Prose struct {
	logger *logrus.Logger
}

// NewProse creates a prose-backed annotator.
func NewProse() *Prose {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Prose{logger: logger}
}

// Annotate implements kg.Annotator. Sentence offsets index into the
// original text; token lemmas come from a small rule-based stemmer.
func (p *Prose) Annotate(ctx context.Context, text string) ([]kg.Sentence, error) {
	timer := prometheus.NewTimer(annotationDuration.WithLabelValues("full"))
	defer timer.ObserveDuration()

	spans, err := segment(text)
	if err != nil {
		return nil, err
	}

	sents := make([]kg.Sentence, 0, len(spans))
	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sd, err := prose.NewDocument(s.Text, prose.WithSegmentation(false))
		if err != nil {
			return nil, errors.Wrapf(err, "annotate sentence %d", s.Index)
		}
		for _, tok := range sd.Tokens() {
			s.Tokens = append(s.Tokens, kg.Token{
				Text:  tok.Text,
				Tag:   tok.Tag,
				Lemma: Lemma(tok.Text, tok.Tag),
			})
		}
		for _, ent := range sd.Entities() {
			s.Entities = append(s.Entities, kg.EntitySpan{Text: ent.Text, Label: ent.Label})
		}
		sents = append(sents, s)
	}

	metrics.SentencesAnnotated.Add(float64(len(sents)))
	p.logger.WithFields(logrus.Fields{
		"content_length": len(text),
		"sentence_count": len(sents),
	}).Info("Annotation completed")

	return sents, nil
}

// Chunk splits text into sentences with offsets into the original
// text. The sequence is lazy, finite and restartable: each range over
// it re-segments from the beginning. Tokens and entity spans are not
// populated; use Annotate for those.
//
// The return type is iter.Seq[kg.Sentence] spelled out, so it can be
// ranged over directly on Go 1.23+.
func Chunk(text string) func(yield func(kg.Sentence) bool) {
	return func(yield func(kg.Sentence) bool) {
		spans, err := segment(text)
		if err != nil {
			return
		}
		for _, s := range spans {
			if !yield(s) {
				return
			}
		}
	}
}

// segment runs sentence segmentation only. Whitespace-only input
// yields no sentences; text without terminal punctuation yields one.
func segment(text string) ([]kg.Sentence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, errors.Wrap(err, "segment text")
	}

	var spans []kg.Sentence
	cursor := 0
	for _, s := range doc.Sentences() {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}

		// The segmenter preserves sentence text verbatim, so a forward
		// scan from the previous sentence end recovers the offset.
		start := cursor
		if i := strings.Index(text[cursor:], t); i >= 0 {
			start = cursor + i
		}
		spans = append(spans, kg.Sentence{
			Index: len(spans),
			Text:  t,
			Start: start,
			End:   start + len(t),
		})
		cursor = start + len(t)
	}
	return spans, nil
}
