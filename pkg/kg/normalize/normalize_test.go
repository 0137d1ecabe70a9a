package normalize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/solitaryfield/textkg/pkg/kg"
)

func TestCleanMention(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"  Alice   Johnson ", "alice johnson"},
		{"Dr. Chen", "chen"},
		{"Mr Okafor,", "okafor"},
		{"Acme Corp.", "acme corp"},
		{"R&D", "r&d"},
		{"St. Mary's Hospital", "st marys hospital"},
		{"!!!", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := CleanMention(c.in); got != c.want {
			t.Errorf("CleanMention(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanMentionIdempotent(t *testing.T) {
	inputs := []string{"Dr. Chen", "Alice  Johnson", "Acme Corp.", "berlin"}
	for _, in := range inputs {
		once := CleanMention(in)
		if twice := CleanMention(once); twice != once {
			t.Errorf("CleanMention not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizePredicate(t *testing.T) {
	n := New(nil)

	cases := []struct {
		pred     string
		lemma    string
		want     string
		unmapped bool
	}{
		{"works_with", "work_with", "collaborates_with", false},
		{"works_at", "work_at", "works_at", false},
		{"joined", "join", "works_at", false},
		{"worksAt", "", "works_at", false},
		{"Works With", "", "collaborates_with", false},
		{"left", "leave", "left_company", false},
		{"promoted_to", "promote_to", "promoted_to", false},
		{"admires", "admire", "admires", true},
		{"speaks_about", "speak_about", "speaks_about", true},
	}
	for _, c := range cases {
		got, unmapped := n.NormalizePredicate(c.pred, c.lemma)
		if got != c.want || unmapped != c.unmapped {
			t.Errorf("NormalizePredicate(%q, %q) = (%q, %v), want (%q, %v)",
				c.pred, c.lemma, got, unmapped, c.want, c.unmapped)
		}
	}
}

func TestNormalizePredicateLemmaFallback(t *testing.T) {
	n := New(nil)

	// The surface form is not in the table but its lemma is.
	got, unmapped := n.NormalizePredicate("collaborating_with", "collaborate_with")
	if got != "collaborates_with" || unmapped {
		t.Fatalf("lemma fallback = (%q, %v), want (collaborates_with, false)", got, unmapped)
	}
}

func TestNormalizePredicateIdempotent(t *testing.T) {
	n := New(nil)

	for _, canonical := range []string{"works_at", "collaborates_with", "left_company", "has_role"} {
		got, unmapped := n.NormalizePredicate(canonical, "")
		if got != canonical || unmapped {
			t.Errorf("NormalizePredicate(%q) = (%q, %v), want identity", canonical, got, unmapped)
		}
	}
}

func TestNormalizeTriple(t *testing.T) {
	n := New(nil)

	in := kg.Triple{
		Subject:        "Alice",
		Predicate:      "works_with",
		Object:         "Bob",
		DocID:          "doc1",
		SentenceIndex:  0,
		Evidence:       "Alice works with Bob at Acme.",
		Method:         kg.MethodSVO,
		Confidence:     0.85,
		PredicateLemma: "work_with",
	}
	out := n.NormalizeTriple(in)

	if out.Subject != "alice" || out.Object != "bob" {
		t.Errorf("mentions = (%q, %q), want (alice, bob)", out.Subject, out.Object)
	}
	if out.Predicate != "collaborates_with" || out.Unmapped {
		t.Errorf("predicate = (%q, %v), want (collaborates_with, false)", out.Predicate, out.Unmapped)
	}
	if out.Evidence != in.Evidence || out.DocID != in.DocID || out.Confidence != in.Confidence {
		t.Error("NormalizeTriple should leave provenance fields untouched")
	}
}

func TestNormalizeTripleUnmappedPassthrough(t *testing.T) {
	n := New(nil)

	out := n.NormalizeTriple(kg.Triple{Subject: "Alice", Predicate: "admires", Object: "Bob"})
	if out.Predicate != "admires" || !out.Unmapped {
		t.Fatalf("unmapped predicate = (%q, %v), want (admires, true)", out.Predicate, out.Unmapped)
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predicates.json")
	table := map[string]string{"reports to": "reports_to"}
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	n := New(loaded)
	got, unmapped := n.NormalizePredicate("reports_to", "")
	if got != "reports_to" || unmapped {
		t.Fatalf("custom table lookup = (%q, %v), want (reports_to, false)", got, unmapped)
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing table file")
	}
}
