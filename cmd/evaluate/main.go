package main

import (
	"flag"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/corpus"
	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/eval"
	"github.com/solitaryfield/textkg/pkg/kg/normalize"
	"github.com/solitaryfield/textkg/pkg/kg/storage"
)

var (
	goldFile       = flag.String("gold", "", "Path to a gold corpus JSON file")
	resultFile     = flag.String("result", "pipeline_result.json", "Path to a saved pipeline result")
	outFile        = flag.String("out", "eval_report.json", "Output file path for the evaluation report")
	predicatesFile = flag.String("predicates", "", "Path to a predicate mapping JSON (built-in table when empty)")
	evalMethod     = flag.String("method", kg.MethodRule, "Personality scores to evaluate (rule or llm)")
	logLevel       = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *goldFile == "" {
		logger.Fatal("A gold corpus must be specified with -gold")
	}

	gold, err := corpus.LoadGold(*goldFile)
	if err != nil {
		logger.Fatalf("Failed to load gold corpus: %v", err)
	}

	result, err := storage.LoadResult(*resultFile)
	if err != nil {
		logger.Fatalf("Failed to load pipeline result: %v", err)
	}

	table := normalize.DefaultTable()
	if *predicatesFile != "" {
		table, err = normalize.LoadTable(*predicatesFile)
		if err != nil {
			logger.Fatalf("Failed to load predicate table: %v", err)
		}
	}

	report := eval.Evaluate(gold, result, *evalMethod, normalize.New(table))
	if err := eval.SaveReport(*outFile, report); err != nil {
		logger.Fatalf("Failed to save evaluation report: %v", err)
	}
	logger.Infof("Saved evaluation report to %s", *outFile)

	rel := report.RelationEvaluation
	logger.Infof("Corpus relations: precision %.4f, recall %.4f, F1 %.4f (tp=%d fp=%d fn=%d)",
		rel.Corpus.Precision, rel.Corpus.Recall, rel.Corpus.F1,
		rel.Corpus.TP, rel.Corpus.FP, rel.Corpus.FN)
	for _, fp := range rel.Top3FP {
		logger.Infof("False positive x%d: %s", fp.Count, formatTriple(fp.Triple))
	}
	for _, fn := range rel.Top3FN {
		logger.Infof("False negative x%d: %s", fn.Count, formatTriple(fn.Triple))
	}

	for _, trait := range kg.Traits {
		metric := report.PersonalityEvaluation.TraitMetrics[trait]
		if metric.MAE == nil {
			logger.Infof("Trait %s: no scored pairs", trait)
			continue
		}
		if metric.PearsonR == nil {
			logger.Infof("Trait %s: MAE %.4f (n=%d)", trait, *metric.MAE, metric.N)
			continue
		}
		logger.Infof("Trait %s: MAE %.4f, Pearson r %.4f (n=%d)", trait, *metric.MAE, *metric.PearsonR, metric.N)
	}

	for _, worst := range report.PersonalityEvaluation.Worst3 {
		logger.Infof("Worst case %s/%s: total absolute error %.4f",
			worst.DocID, worst.PersonID, worst.TotalAbsError)
	}
}

func formatTriple(t eval.TripleKey) string {
	return "(" + strings.Join(t[:], ", ") + ")"
}
