// Package eval scores pipeline output against a gold corpus: relation
// precision/recall/F1 with error analysis, and personality MAE plus
// Pearson r per trait with the worst-scoring persons.
package eval

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/solitaryfield/textkg/pkg/corpus"
	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/normalize"
)

// TripleKey identifies one relation as (subject, predicate, object)
// entity text. It marshals as a three-element array.
type TripleKey [3]string

// RelationMetrics holds counts and derived scores for one document or
// the whole corpus.
type RelationMetrics struct {
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// TripleCount is one entry of the false-positive or false-negative
// ranking.
type TripleCount struct {
	Triple TripleKey `json:"triple"`
	Count  int       `json:"count"`
}

// RelationEvaluation is the relation-level half of the report.
type RelationEvaluation struct {
	PerDoc map[string]RelationMetrics `json:"per_doc"`
	Corpus RelationMetrics            `json:"corpus"`
	Top3FP []TripleCount              `json:"top3_fp"`
	Top3FN []TripleCount              `json:"top3_fn"`
}

// TraitMetric aggregates one trait across every scored person. MAE is
// nil when no (gold, predicted) pair exists, PearsonR additionally
// when fewer than two pairs exist or the correlation is undefined.
type TraitMetric struct {
	MAE      *float64 `json:"mae"`
	PearsonR *float64 `json:"pearson_r"`
	N        int      `json:"n"`
}

// PersonError is one person's error breakdown, used for the worst-case
// ranking.
type PersonError struct {
	DocID          string             `json:"doc_id"`
	PersonID       string             `json:"person_id"`
	TotalAbsError  float64            `json:"total_abs_error"`
	PerTraitErrors map[string]float64 `json:"per_trait_errors"`
}

// PersonalityEvaluation is the personality half of the report.
type PersonalityEvaluation struct {
	TraitMetrics map[string]TraitMetric `json:"trait_metrics"`
	Worst3       []PersonError          `json:"worst3_persons"`
}

// Report is the full evaluation output.
type Report struct {
	RelationEvaluation    *RelationEvaluation    `json:"relation_evaluation"`
	PersonalityEvaluation *PersonalityEvaluation `json:"personality_evaluation"`
}

// Evaluate compares a pipeline result against the gold corpus. The
// method selects which personality scores to grade (rule or llm).
// Gold relations are normalized with norm before comparison; pass the
// normalizer the pipeline ran with, or nil for the built-in table.
func Evaluate(gold []corpus.GoldDocument, res *kg.Result, method string, norm *normalize.Normalizer) *Report {
	return &Report{
		RelationEvaluation:    EvaluateRelations(gold, RelationPredictions(res), norm),
		PersonalityEvaluation: EvaluatePersonality(gold, PersonalityPredictions(res, method)),
	}
}

// RelationPredictions converts resolved triples into comparable keys,
// grouped by document. Entity ids are replaced by canonical entity
// names so the comparison does not depend on either side's id scheme.
func RelationPredictions(res *kg.Result) map[string][]TripleKey {
	names := make(map[string]string, len(res.Entities))
	for _, e := range res.Entities {
		names[e.ID] = e.Name
	}

	preds := make(map[string][]TripleKey, len(res.Documents))
	for _, dr := range res.Documents {
		for _, t := range dr.Triples {
			subj := names[t.SubjectEntity]
			obj := names[t.ObjectEntity]
			if subj == "" || obj == "" {
				continue
			}
			preds[dr.DocID] = append(preds[dr.DocID], TripleKey{subj, t.Predicate, obj})
		}
	}
	return preds
}

// EvaluateRelations computes per-document and corpus precision, recall
// and F1, plus the three most frequent false positives and negatives.
// Gold relations reference entities by id; both sides are compared on
// cleaned entity text and normalized predicates, so a gold file may
// spell predicates any way the predicate table understands.
func EvaluateRelations(gold []corpus.GoldDocument, preds map[string][]TripleKey, norm *normalize.Normalizer) *RelationEvaluation {
	if norm == nil {
		norm = normalize.New(nil)
	}
	out := &RelationEvaluation{PerDoc: make(map[string]RelationMetrics, len(gold))}
	fpCounter := make(map[TripleKey]int)
	fnCounter := make(map[TripleKey]int)

	var corpusTP, corpusFP, corpusFN int
	for _, doc := range gold {
		names := make(map[string]string, len(doc.GoldEntities))
		for _, e := range doc.GoldEntities {
			names[e.ID] = normalize.CleanMention(e.Text)
		}
		resolve := func(id string) string {
			if name, ok := names[id]; ok {
				return name
			}
			return normalize.CleanMention(id)
		}

		goldSet := mapset.NewSet[TripleKey]()
		for _, rel := range doc.GoldRelations {
			pred, _ := norm.NormalizePredicate(rel.Pred, "")
			goldSet.Add(TripleKey{resolve(rel.SubjID), pred, resolve(rel.ObjID)})
		}
		predSet := mapset.NewSet[TripleKey](preds[doc.DocID]...)

		tp := goldSet.Intersect(predSet).Cardinality()
		fpSet := predSet.Difference(goldSet)
		fnSet := goldSet.Difference(predSet)

		corpusTP += tp
		corpusFP += fpSet.Cardinality()
		corpusFN += fnSet.Cardinality()
		for t := range fpSet.Iter() {
			fpCounter[t]++
		}
		for t := range fnSet.Iter() {
			fnCounter[t]++
		}

		p, r, f1 := prf(tp, fpSet.Cardinality(), fnSet.Cardinality())
		out.PerDoc[doc.DocID] = RelationMetrics{
			TP: tp, FP: fpSet.Cardinality(), FN: fnSet.Cardinality(),
			Precision: p, Recall: r, F1: f1,
		}
	}

	p, r, f1 := prf(corpusTP, corpusFP, corpusFN)
	out.Corpus = RelationMetrics{
		TP: corpusTP, FP: corpusFP, FN: corpusFN,
		Precision: p, Recall: r, F1: f1,
	}
	out.Top3FP = topCounts(fpCounter, 3)
	out.Top3FN = topCounts(fnCounter, 3)
	return out
}

// PersonalityPredictions extracts per-document Big Five predictions
// for one scoring method. Each person appears under its canonical name
// and under each of its mentions, so gold labels can be joined by any
// surface form.
func PersonalityPredictions(res *kg.Result, method string) map[string]map[string]map[string]float64 {
	byID := make(map[string]kg.Entity, len(res.Entities))
	for _, e := range res.Entities {
		byID[e.ID] = e
	}

	scores := make(map[string]map[string]float64)
	for _, a := range res.Assertions {
		s, ok := a.Score(method)
		if !ok {
			continue
		}
		if scores[a.EntityID] == nil {
			scores[a.EntityID] = make(map[string]float64, len(kg.Traits))
		}
		scores[a.EntityID][a.Trait] = s.Score
	}

	preds := make(map[string]map[string]map[string]float64, len(res.Documents))
	for _, dr := range res.Documents {
		docPreds := make(map[string]map[string]float64)
		for _, pid := range dr.Persons {
			big5 := scores[pid]
			if len(big5) == 0 {
				continue
			}
			e := byID[pid]
			if _, taken := docPreds[e.Name]; !taken {
				docPreds[e.Name] = big5
			}
			for _, m := range e.Mentions {
				if _, taken := docPreds[m]; !taken {
					docPreds[m] = big5
				}
			}
		}
		if len(docPreds) > 0 {
			preds[dr.DocID] = docPreds
		}
	}
	return preds
}

// EvaluatePersonality computes MAE and Pearson r per trait over every
// (gold, predicted) pair, and ranks the three persons with the largest
// total absolute error. Persons without a prediction are skipped.
func EvaluatePersonality(gold []corpus.GoldDocument, preds map[string]map[string]map[string]float64) *PersonalityEvaluation {
	golds := make(map[string][]float64, len(kg.Traits))
	predictions := make(map[string][]float64, len(kg.Traits))
	var personErrors []PersonError

	for _, doc := range gold {
		names := make(map[string]string, len(doc.GoldEntities))
		for _, e := range doc.GoldEntities {
			names[e.ID] = normalize.CleanMention(e.Text)
		}
		docPreds := preds[doc.DocID]

		pids := make([]string, 0, len(doc.PersonalityLabels))
		for pid := range doc.PersonalityLabels {
			pids = append(pids, pid)
		}
		sort.Strings(pids)

		for _, pid := range pids {
			goldScores := doc.PersonalityLabels[pid].Big5
			key := names[pid]
			if key == "" {
				key = normalize.CleanMention(pid)
			}
			predScores := docPreds[key]
			if predScores == nil {
				continue
			}

			totalAbs := 0.0
			perTrait := make(map[string]float64)
			hasPair := false
			for _, trait := range kg.Traits {
				g, gOK := goldScores[trait]
				p, pOK := predScores[trait]
				if !gOK || !pOK {
					continue
				}
				hasPair = true
				golds[trait] = append(golds[trait], g)
				predictions[trait] = append(predictions[trait], p)
				err := math.Abs(g - p)
				perTrait[trait] = err
				totalAbs += err
			}
			if hasPair {
				personErrors = append(personErrors, PersonError{
					DocID:          doc.DocID,
					PersonID:       pid,
					TotalAbsError:  round4(totalAbs),
					PerTraitErrors: perTrait,
				})
			}
		}
	}

	out := &PersonalityEvaluation{TraitMetrics: make(map[string]TraitMetric, len(kg.Traits))}
	for _, trait := range kg.Traits {
		g := golds[trait]
		p := predictions[trait]
		if len(g) == 0 {
			out.TraitMetrics[trait] = TraitMetric{N: 0}
			continue
		}

		sum := 0.0
		for i := range g {
			sum += math.Abs(g[i] - p[i])
		}
		mae := round4(sum / float64(len(g)))

		metric := TraitMetric{MAE: &mae, N: len(g)}
		if len(g) > 1 {
			if r := stat.Correlation(g, p, nil); !math.IsNaN(r) {
				metric.PearsonR = &r
			}
		}
		out.TraitMetrics[trait] = metric
	}

	sort.SliceStable(personErrors, func(i, j int) bool {
		return personErrors[i].TotalAbsError > personErrors[j].TotalAbsError
	})
	if len(personErrors) > 3 {
		personErrors = personErrors[:3]
	}
	out.Worst3 = personErrors
	return out
}

// SaveReport writes the evaluation report as indented JSON.
func SaveReport(path string, report *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}

	return os.WriteFile(path, data, 0644)
}

func prf(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

func topCounts(counter map[TripleKey]int, n int) []TripleCount {
	out := make([]TripleCount, 0, len(counter))
	for t, c := range counter {
		out = append(out, TripleCount{Triple: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		for k := 0; k < len(out[i].Triple); k++ {
			if out[i].Triple[k] != out[j].Triple[k] {
				return out[i].Triple[k] < out[j].Triple[k]
			}
		}
		return false
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
