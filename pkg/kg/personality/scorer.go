package personality

import (
	"context"
	"fmt"
	"regexp"
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

var scoringDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "personality_scoring_duration_seconds",
		Help: "Time spent scoring traits",
	},
	[]string{"method"},
)

func init() {
	prometheus.MustRegister(scoringDuration)
}

const llmTraitConfidence = 0.75

// Scorer estimates Big Five scores for one person from the sentences
// that mention them. The rule path counts lexicon markers; the
// optional LLM path asks a model and validates every quoted evidence
// string against the input. When both paths run, both scores are kept
// under their own method label; a trait whose model answer fails
// validation simply keeps only its rule score.
type Scorer struct {
	lexicon  Lexicon
	matchers map[string]traitMatcher
	client   llm.Client
	recorder provenance.Recorder
	logger   *logrus.Logger
}

type traitMatcher struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}

// NewScorer builds a rule-only scorer. A nil lexicon selects
// DefaultLexicon.
func NewScorer(lex Lexicon) *Scorer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if lex == nil {
		lex = DefaultLexicon()
	}

	matchers := make(map[string]traitMatcher, len(kg.Traits))
	for _, trait := range kg.Traits {
		matchers[trait] = traitMatcher{
			positive: compileMarkers(lex[trait].Positive),
			negative: compileMarkers(lex[trait].Negative),
		}
	}

	return &Scorer{
		lexicon:  lex,
		matchers: matchers,
		recorder: provenance.Discard{},
		logger:   logger,
	}
}

// EnableLLM turns on the model path. A nil recorder discards
// provenance.
func (s *Scorer) EnableLLM(client llm.Client, recorder provenance.Recorder) {
	s.client = client
	if recorder != nil {
		s.recorder = recorder
	}
}

func compileMarkers(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Score implements kg.TraitScorer. It returns exactly one assertion
// per trait, each holding at most one score per method.
func (s *Scorer) Score(ctx context.Context, entity kg.Entity, sentences []string) ([]kg.TraitAssertion, []kg.ValidationFailure, error) {
	text := strings.Join(sentences, " ")

	timer := prometheus.NewTimer(scoringDuration.WithLabelValues(kg.MethodRule))
	ruleScores := s.ruleScores(text, sentences)
	timer.ObserveDuration()

	assertions := make([]kg.TraitAssertion, 0, len(kg.Traits))
	for _, trait := range kg.Traits {
		assertions = append(assertions, kg.TraitAssertion{
			EntityID: entity.ID,
			Trait:    trait,
			Scores:   []kg.TraitScore{ruleScores[trait]},
		})
		metrics.TraitAssertions.WithLabelValues(kg.MethodRule).Inc()
	}

	var failures []kg.ValidationFailure
	if s.client != nil && len(sentences) > 0 {
		llmScores, fails := s.llmScores(ctx, entity, text)
		failures = fails
		for i := range assertions {
			if sc, ok := llmScores[assertions[i].Trait]; ok {
				assertions[i].Scores = append(assertions[i].Scores, sc)
				metrics.TraitAssertions.WithLabelValues(kg.MethodLLM).Inc()
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"entity_id":      entity.ID,
		"sentence_count": len(sentences),
		"failure_count":  len(failures),
	}).Info("Trait scoring completed")

	return assertions, failures, nil
}

// ruleScores computes the lexicon estimate for every trait: 0.5 plus
// half the normalized balance of positive and negative markers, or a
// neutral 0.5 with zero confidence when no marker appears at all.
func (s *Scorer) ruleScores(text string, sentences []string) map[string]kg.TraitScore {
	lower := strings.ToLower(text)
	out := make(map[string]kg.TraitScore, len(kg.Traits))
	for _, trait := range kg.Traits {
		m := s.matchers[trait]
		pos := countMatches(m.positive, lower)
		neg := countMatches(m.negative, lower)

		score := 0.5
		confidence := 0.0
		evidence := ""
		if pos+neg > 0 {
			score = 0.5 + 0.5*float64(pos-neg)/float64(pos+neg)
			confidence = float64(pos+neg) / float64(pos+neg+2)
			evidence = firstMarkerSentence(m, sentences)
		}
		out[trait] = kg.TraitScore{
			Method:     kg.MethodRule,
			Score:      score,
			Confidence: confidence,
			Evidence:   evidence,
		}
	}
	return out
}

func countMatches(re *regexp.Regexp, text string) int {
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

// firstMarkerSentence returns the earliest sentence containing any
// marker, serving as the evidence quote for the rule score.
func firstMarkerSentence(m traitMatcher, sentences []string) string {
	for _, sent := range sentences {
		lower := strings.ToLower(sent)
		if (m.positive != nil && m.positive.MatchString(lower)) ||
			(m.negative != nil && m.negative.MatchString(lower)) {
			return sent
		}
	}
	return ""
}

func (s *Scorer) llmScores(ctx context.Context, entity kg.Entity, text string) (map[string]kg.TraitScore, []kg.ValidationFailure) {
	timer := prometheus.NewTimer(scoringDuration.WithLabelValues(kg.MethodLLM))
	defer timer.ObserveDuration()

	prompt := prompts.TraitInference(entity.Name, text)

	raw, err := s.complete(ctx, entity, prompt, 1)
	if err == nil {
		scores, problems := parseTraitScores(raw, text, entity)
		if len(problems) == 0 {
			return scores, nil
		}
	}

	raw, err = s.complete(ctx, entity, prompt+prompts.TraitReprompt, 2)
	if err != nil {
		return nil, []kg.ValidationFailure{{
			EntityID: entity.ID,
			Stage:    kg.StagePersonality,
			Reason:   kg.ReasonLLMError,
			Detail:   err.Error(),
		}}
	}
	return parseTraitScores(raw, text, entity)
}

func (s *Scorer) complete(ctx context.Context, entity kg.Entity, prompt string, attempt int) (string, error) {
	raw, err := s.client.Complete(ctx, llm.Request{
		Kind:     llm.KindPersonality,
		Prompt:   prompt,
		JSONMode: true,
	})

	rec := provenance.Record{
		RunID:        kg.RunIDFromContext(ctx),
		EntityID:     entity.ID,
		Kind:         llm.KindPersonality,
		Model:        s.client.Model(),
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
	if aerr := s.recorder.Append(rec); aerr != nil {
		s.logger.WithError(aerr).Warn("Failed to append provenance record")
	}

	return raw, err
}

// parseTraitScores validates a model reply trait by trait. Scores must
// sit in [0, 1] and every evidence string must appear verbatim in the
// text the model was shown; traits that fail are reported and left to
// their rule scores.
func parseTraitScores(raw, text string, entity kg.Entity) (map[string]kg.TraitScore, []kg.ValidationFailure) {
	fail := func(reason, detail string) kg.ValidationFailure {
		return kg.ValidationFailure{
			EntityID: entity.ID,
			Stage:    kg.StagePersonality,
			Reason:   reason,
			Detail:   detail,
		}
	}

	clean := llm.ExtractJSON(raw)
	if !gjson.Valid(clean) {
		return nil, []kg.ValidationFailure{fail(kg.ReasonMalformedJSON, truncate(raw, 200))}
	}

	out := make(map[string]kg.TraitScore, len(kg.Traits))
	var problems []kg.ValidationFailure
	for _, trait := range kg.Traits {
		item := gjson.Get(clean, trait)
		if !item.Exists() {
			problems = append(problems, fail(kg.ReasonMissingField, trait))
			continue
		}
		scoreRes := item.Get("score")
		evidence := strings.TrimSpace(item.Get("evidence").String())
		if !scoreRes.Exists() || evidence == "" {
			problems = append(problems, fail(kg.ReasonMissingField, trait+": "+truncate(item.Raw, 200)))
			continue
		}
		score := scoreRes.Float()
		if score < 0 || score > 1 {
			problems = append(problems, fail(kg.ReasonScoreRange, fmt.Sprintf("%s: %g", trait, score)))
			continue
		}
		if !strings.Contains(text, evidence) {
			problems = append(problems, fail(kg.ReasonEvidenceMismatch, trait+": "+truncate(evidence, 200)))
			continue
		}
		out[trait] = kg.TraitScore{
			Method:     kg.MethodLLM,
			Score:      score,
			Confidence: llmTraitConfidence,
			Evidence:   evidence,
		}
	}
	return out, problems
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
