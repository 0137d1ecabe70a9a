package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/corpus"
	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/annotate"
	"github.com/solitaryfield/textkg/pkg/kg/canon"
	"github.com/solitaryfield/textkg/pkg/kg/eval"
	"github.com/solitaryfield/textkg/pkg/kg/extract"
	"github.com/solitaryfield/textkg/pkg/kg/metrics"
	"github.com/solitaryfield/textkg/pkg/kg/normalize"
	"github.com/solitaryfield/textkg/pkg/kg/personality"
	"github.com/solitaryfield/textkg/pkg/kg/storage"
	"github.com/solitaryfield/textkg/pkg/kg/visualizer"
	"github.com/solitaryfield/textkg/pkg/llm"
	"github.com/solitaryfield/textkg/pkg/provenance"
	"github.com/solitaryfield/textkg/services"
)

var (
	inputDir       = flag.String("input", "", "Directory containing input text files (.txt, .md, .html, .pdf)")
	goldFile       = flag.String("gold", "", "Path to a gold corpus JSON file")
	outputFile     = flag.String("output", "knowledge_graph.json", "Output file path for the knowledge graph")
	resultFile     = flag.String("result", "pipeline_result.json", "Output file path for the full pipeline result")
	reportFile     = flag.String("report", "", "Output file path for the evaluation report (requires -gold)")
	provenanceFile = flag.String("provenance", "provenance.jsonl", "Append-only provenance log for LLM calls")
	predicatesFile = flag.String("predicates", "", "Path to a predicate mapping JSON (built-in table when empty)")
	lexiconFile    = flag.String("lexicon", "", "Path to a trait lexicon JSON (built-in lexicon when empty)")
	referencesFile = flag.String("references", "", "Path to a reference entity JSON list")
	threshold      = flag.Float64("threshold", canon.DefaultThreshold, "Similarity threshold for entity resolution")
	enableLLM      = flag.Bool("llm", false, "Enable LLM relation extraction and trait scoring")
	llmProvider    = flag.String("llm-provider", "openai", "LLM provider (openai, deepseek)")
	llmModel       = flag.String("llm-model", "", "Chat model name (provider default when empty)")
	llmTimeout     = flag.Duration("llm-timeout", 30*time.Second, "Per-call LLM timeout")
	batchSize      = flag.Int("batch-size", 8, "Sentences per relation extraction call")
	evalMethod     = flag.String("method", kg.MethodRule, "Personality scores to evaluate (rule or llm)")
	visualizeFile  = flag.String("visualize", "", "Output file path for an HTML graph visualization (disabled when empty)")
	neo4jURI       = flag.String("neo4j-uri", "", "Neo4j URI (export skipped when empty)")
	neo4jUser      = flag.String("neo4j-user", "neo4j", "Neo4j username")
	neo4jPassword  = flag.String("neo4j-password", "", "Neo4j password")
	metricsAddr    = flag.String("metrics-addr", "", "Address to expose Prometheus metrics on (disabled when empty)")
	logLevel       = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	envFile        = flag.String("env", ".env", "Path to environment file")
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

	if err := godotenv.Load(*envFile); err != nil {
		logger.Debugf("No env file loaded from %s: %v", *envFile, err)
	}

	if *inputDir == "" && *goldFile == "" {
		logger.Fatal("Either -input or -gold must be specified")
	}

	var gold []corpus.GoldDocument
	if *goldFile != "" {
		gold, err = corpus.LoadGold(*goldFile)
		if err != nil {
			logger.Fatalf("Failed to load gold corpus: %v", err)
		}
	}

	// -input overrides the gold texts; documents then need matching ids
	// (file name without extension) for evaluation to line up.
	var docs []kg.Document
	if *inputDir != "" {
		loader := corpus.NewLoader()
		docs, err = loader.ReadDocuments(*inputDir)
		if err != nil {
			logger.Fatalf("Failed to read input directory: %v", err)
		}
	} else {
		docs = corpus.Documents(gold)
	}
	if len(docs) == 0 {
		logger.Fatal("No input documents found")
	}
	logger.Infof("Processing %d documents...", len(docs))

	refs := corpus.References(gold)
	if *referencesFile != "" {
		extra, err := canon.LoadReferences(*referencesFile)
		if err != nil {
			logger.Fatalf("Failed to load reference entities: %v", err)
		}
		refs = append(refs, extra...)
	}

	table := normalize.DefaultTable()
	if *predicatesFile != "" {
		table, err = normalize.LoadTable(*predicatesFile)
		if err != nil {
			logger.Fatalf("Failed to load predicate table: %v", err)
		}
	}

	lexicon := personality.DefaultLexicon()
	if *lexiconFile != "" {
		lexicon, err = personality.LoadLexicon(*lexiconFile)
		if err != nil {
			logger.Fatalf("Failed to load trait lexicon: %v", err)
		}
	}

	norm := normalize.New(table)
	runner := kg.NewRunner(
		annotate.NewProse(),
		norm,
		canon.New(canon.Config{Threshold: *threshold}, refs),
	)
	runner.AddExtractor(extract.NewSVO())

	scorer := personality.NewScorer(lexicon)

	if *enableLLM {
		client := buildClient(logger)

		record, err := provenance.OpenFileLog(*provenanceFile)
		if err != nil {
			logger.Fatalf("Failed to open provenance log: %v", err)
		}
		defer record.Close()
		logger.Infof("Recording LLM provenance to %s", record.Path())

		runner.AddExtractor(extract.NewLLM(client, record, *batchSize))
		scorer.EnableLLM(client, record)
	}
	runner.SetScorer(scorer)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, docs)
	if err != nil {
		logger.Fatalf("Pipeline run failed: %v", err)
	}

	if err := storage.SaveResult(*resultFile, result); err != nil {
		logger.Fatalf("Failed to save pipeline result: %v", err)
	}

	graphStore := storage.NewJSONGraphStore(*outputFile)
	if err := graphStore.StoreGraph(ctx, result.Graph); err != nil {
		logger.Fatalf("Failed to store knowledge graph: %v", err)
	}

	logger.Infof("Knowledge graph generated with %d nodes and %d edges",
		len(result.Graph.Nodes), len(result.Graph.Edges))
	logger.Infof("Knowledge graph saved to %s", *outputFile)
	logger.Infof("Pipeline result saved to %s", *resultFile)
	if len(result.Report.Failures) > 0 {
		logger.Warnf("Run recorded %d validation failures", len(result.Report.Failures))
	}

	if *visualizeFile != "" {
		if err := visualizer.NewD3Visualizer(*visualizeFile).Visualize(result.Graph); err != nil {
			logger.Errorf("Failed to write graph visualization: %v", err)
		} else {
			logger.Infof("Graph visualization saved to %s", *visualizeFile)
		}
	}

	if *neo4jURI != "" {
		exportNeo4j(ctx, logger, result.Graph)
	}

	if *goldFile != "" {
		report := eval.Evaluate(gold, result, *evalMethod, norm)
		logSummary(logger, report)
		if *reportFile != "" {
			if err := eval.SaveReport(*reportFile, report); err != nil {
				logger.Fatalf("Failed to save evaluation report: %v", err)
			}
			logger.Infof("Evaluation report saved to %s", *reportFile)
		}
	}
}

// buildClient selects the chat backend. Credentials come from the
// environment, loaded from -env when present.
func buildClient(logger *logrus.Logger) llm.Client {
	switch *llmProvider {
	case "openai":
		return llm.NewOpenAI(services.DefaultOpenAIClient(), *llmModel, *llmTimeout)
	case "deepseek":
		model := *llmModel
		if model == "" {
			model = "deepseek-chat"
		}
		return llm.NewOpenAI(services.DefaultDeepseekClient(), model, *llmTimeout)
	default:
		logger.Fatalf("Unknown LLM provider: %s", *llmProvider)
		return nil
	}
}

func exportNeo4j(ctx context.Context, logger *logrus.Logger, graph *kg.KnowledgeGraphData) {
	store, err := storage.NewNeo4jStorage(*neo4jURI, *neo4jUser, *neo4jPassword)
	if err != nil {
		logger.Errorf("Failed to create Neo4j storage: %v", err)
		return
	}
	defer store.Close()

	if err := store.StoreGraph(ctx, graph); err != nil {
		logger.Errorf("Failed to export graph to Neo4j: %v", err)
		return
	}
	logger.Infof("Knowledge graph exported to %s", *neo4jURI)
}

func serveMetrics(addr string, logger *logrus.Logger) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.UpdateSystemMetrics()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Infof("Serving Prometheus metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("Metrics server stopped: %v", err)
	}
}

func logSummary(logger *logrus.Logger, report *eval.Report) {
	rel := report.RelationEvaluation
	logger.Infof("Corpus relations: precision %.4f, recall %.4f, F1 %.4f (tp=%d fp=%d fn=%d)",
		rel.Corpus.Precision, rel.Corpus.Recall, rel.Corpus.F1,
		rel.Corpus.TP, rel.Corpus.FP, rel.Corpus.FN)

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
}
