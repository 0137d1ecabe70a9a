package extract

import (
	"context"
	"testing"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/annotate"
)

func tok(text, tag string) kg.Token {
	return kg.Token{Text: text, Tag: tag, Lemma: annotate.Lemma(text, tag)}
}

func sentence(idx int, text string, tokens []kg.Token, spans ...kg.EntitySpan) kg.Sentence {
	return kg.Sentence{Index: idx, Text: text, Tokens: tokens, Entities: spans}
}

func extractOne(t *testing.T, s kg.Sentence) []kg.Triple {
	t.Helper()
	doc := &kg.Document{ID: "doc1", Text: s.Text}
	triples, fails, err := NewSVO().Extract(context.Background(), doc, []kg.Sentence{s})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(fails) != 0 {
		t.Fatalf("Extract reported %d failures", len(fails))
	}
	return triples
}

func TestSVOBasic(t *testing.T) {
	s := sentence(0, "Alice works with Bob at Acme.", []kg.Token{
		tok("Alice", "NNP"), tok("works", "VBZ"), tok("with", "IN"),
		tok("Bob", "NNP"), tok("at", "IN"), tok("Acme", "NNP"), tok(".", "."),
	})

	triples := extractOne(t, s)
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}

	tr := triples[0]
	if tr.Subject != "Alice" || tr.Predicate != "works_with" || tr.Object != "Bob" {
		t.Errorf("triple = (%s, %s, %s)", tr.Subject, tr.Predicate, tr.Object)
	}
	if tr.PredicateLemma != "work_with" {
		t.Errorf("lemma = %q, want work_with", tr.PredicateLemma)
	}
	if tr.Method != kg.MethodSVO || tr.Confidence != 0.85 {
		t.Errorf("method/confidence = %s/%v", tr.Method, tr.Confidence)
	}
	if tr.Evidence != s.Text || tr.SentenceIndex != 0 || tr.DocID != "doc1" {
		t.Errorf("provenance = (%q, %d, %q)", tr.Evidence, tr.SentenceIndex, tr.DocID)
	}
}

func TestSVOMultiwordNominals(t *testing.T) {
	s := sentence(0, "Alice Johnson joined Acme Corp as a project manager.", []kg.Token{
		tok("Alice", "NNP"), tok("Johnson", "NNP"), tok("joined", "VBD"),
		tok("Acme", "NNP"), tok("Corp", "NNP"), tok("as", "IN"), tok("a", "DT"),
		tok("project", "NN"), tok("manager", "NN"), tok(".", "."),
	})

	triples := extractOne(t, s)
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}

	tr := triples[0]
	if tr.Subject != "Alice Johnson" || tr.Predicate != "joined" || tr.Object != "Acme Corp" {
		t.Errorf("triple = (%s, %s, %s)", tr.Subject, tr.Predicate, tr.Object)
	}
	if tr.PredicateLemma != "join" {
		t.Errorf("lemma = %q, want join", tr.PredicateLemma)
	}
}

func TestSVOPrepositionFolding(t *testing.T) {
	s := sentence(2, "Bob was promoted to senior manager.", []kg.Token{
		tok("Bob", "NNP"), tok("was", "VBD"), tok("promoted", "VBN"),
		tok("to", "TO"), tok("senior", "JJ"), tok("manager", "NN"), tok(".", "."),
	})

	triples := extractOne(t, s)
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}

	tr := triples[0]
	if tr.Subject != "Bob" || tr.Predicate != "promoted_to" || tr.Object != "manager" {
		t.Errorf("triple = (%s, %s, %s)", tr.Subject, tr.Predicate, tr.Object)
	}
	if tr.PredicateLemma != "promote_to" {
		t.Errorf("lemma = %q, want promote_to", tr.PredicateLemma)
	}
	if tr.SentenceIndex != 2 {
		t.Errorf("sentence index = %d, want 2", tr.SentenceIndex)
	}
}

func TestSVOSkipsAuxiliaries(t *testing.T) {
	s := sentence(0, "Alice is a manager.", []kg.Token{
		tok("Alice", "NNP"), tok("is", "VBZ"), tok("a", "DT"),
		tok("manager", "NN"), tok(".", "."),
	})

	if triples := extractOne(t, s); len(triples) != 0 {
		t.Fatalf("copula sentence yielded %d triples, want 0", len(triples))
	}
}

func TestSVOClauseBoundary(t *testing.T) {
	s := sentence(0, "Alice smiled and left.", []kg.Token{
		tok("Alice", "NNP"), tok("smiled", "VBD"), tok("and", "CC"),
		tok("left", "VBD"), tok(".", "."),
	})

	if triples := extractOne(t, s); len(triples) != 0 {
		t.Fatalf("got %d triples, want 0: objects must not cross verbs", len(triples))
	}
}

func TestSVOPronounSubject(t *testing.T) {
	s := sentence(0, "She joined Acme.", []kg.Token{
		tok("She", "PRP"), tok("joined", "VBD"), tok("Acme", "NNP"), tok(".", "."),
	})

	triples := extractOne(t, s)
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}
	if triples[0].Subject != "She" {
		t.Errorf("subject = %q, want She", triples[0].Subject)
	}
}

func TestSVOSameSubjectObject(t *testing.T) {
	s := sentence(0, "Acme acquired Acme.", []kg.Token{
		tok("Acme", "NNP"), tok("acquired", "VBD"), tok("Acme", "NNP"), tok(".", "."),
	})

	if triples := extractOne(t, s); len(triples) != 0 {
		t.Fatalf("reflexive triple was not skipped: %v", triples)
	}
}

func TestSVOEntityHints(t *testing.T) {
	s := sentence(0, "Alice works at Acme Corp.", []kg.Token{
		tok("Alice", "NNP"), tok("works", "VBZ"), tok("at", "IN"),
		tok("Acme", "NNP"), tok("Corp", "NNP"), tok(".", "."),
	},
		kg.EntitySpan{Text: "Alice", Label: "PERSON"},
		kg.EntitySpan{Text: "Acme Corp", Label: "ORGANIZATION"},
	)

	triples := extractOne(t, s)
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}
	if triples[0].SubjectHint != "PERSON" || triples[0].ObjectHint != "ORGANIZATION" {
		t.Errorf("hints = (%q, %q)", triples[0].SubjectHint, triples[0].ObjectHint)
	}
}

func TestSVOCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := sentence(0, "Alice works at Acme.", []kg.Token{
		tok("Alice", "NNP"), tok("works", "VBZ"), tok("at", "IN"), tok("Acme", "NNP"),
	})
	doc := &kg.Document{ID: "doc1"}
	if _, _, err := NewSVO().Extract(ctx, doc, []kg.Sentence{s}); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
