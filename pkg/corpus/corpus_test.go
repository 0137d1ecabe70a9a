package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

const goldFixture = `[
  {
    "doc_id": "doc1",
    "text": "Alice Johnson works at Acme Corp.",
    "gold_entities": [
      {"id": "P1", "text": "Alice Johnson", "type": "person"},
      {"id": "O1", "text": "Acme Corp", "type": "org"}
    ],
    "gold_relations": [
      {"subj_id": "P1", "pred": "works_at", "obj_id": "O1"}
    ],
    "personality_labels": {
      "P1": {"big5": {"openness": 0.7, "conscientiousness": 0.9}, "explanation": "methodical"}
    }
  },
  {
    "doc_id": "doc2",
    "text": "Bob left Acme Corp."
  }
]`

func writeGoldFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gold.json")
	if err := os.WriteFile(path, []byte(goldFixture), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGold(t *testing.T) {
	gold, err := LoadGold(writeGoldFixture(t))
	if err != nil {
		t.Fatalf("LoadGold: %v", err)
	}
	if len(gold) != 2 {
		t.Fatalf("got %d documents", len(gold))
	}

	d := gold[0]
	if d.DocID != "doc1" || len(d.GoldEntities) != 2 || len(d.GoldRelations) != 1 {
		t.Errorf("doc = %+v", d)
	}
	if d.GoldRelations[0].SubjID != "P1" || d.GoldRelations[0].Pred != "works_at" {
		t.Errorf("relation = %+v", d.GoldRelations[0])
	}
	label, ok := d.PersonalityLabels["P1"]
	if !ok || label.Big5["conscientiousness"] != 0.9 {
		t.Errorf("labels = %+v", d.PersonalityLabels)
	}
	if label.Explanation != "methodical" {
		t.Errorf("explanation = %q", label.Explanation)
	}
}

func TestLoadGoldMissingFile(t *testing.T) {
	if _, err := LoadGold("does-not-exist.json"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDocuments(t *testing.T) {
	gold, err := LoadGold(writeGoldFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	docs := Documents(gold)
	if len(docs) != 2 {
		t.Fatalf("got %d documents", len(docs))
	}
	if docs[0].ID != "doc1" || docs[0].Text != "Alice Johnson works at Acme Corp." {
		t.Errorf("doc = %+v", docs[0])
	}
	if docs[1].ID != "doc2" {
		t.Errorf("doc = %+v", docs[1])
	}
}

func TestReferences(t *testing.T) {
	gold := []GoldDocument{
		{
			DocID: "doc1",
			GoldEntities: []GoldEntity{
				{ID: "P1", Text: "Alice Johnson", Type: "person"},
				{ID: "O1", Text: "Acme Corp", Type: "org"},
			},
		},
		{
			DocID: "doc2",
			GoldEntities: []GoldEntity{
				// Same entity again, under a different id and casing.
				{ID: "P7", Text: "ALICE JOHNSON", Type: "person"},
				{ID: "X1", Text: "", Type: "person"},
			},
		},
	}

	refs := References(gold)
	if len(refs) != 2 {
		t.Fatalf("refs = %+v, want duplicates and empties dropped", refs)
	}
	if refs[0].Name != "Alice Johnson" || refs[0].Type != "person" {
		t.Errorf("ref = %+v", refs[0])
	}
	if refs[1].Name != "Acme Corp" || refs[1].Type != "org" {
		t.Errorf("ref = %+v", refs[1])
	}
}

func TestReferencesKeepTypeVariants(t *testing.T) {
	gold := []GoldDocument{{
		DocID: "doc1",
		GoldEntities: []GoldEntity{
			{ID: "A1", Text: "Mercury", Type: "person"},
			{ID: "A2", Text: "Mercury", Type: "org"},
		},
	}}

	if refs := References(gold); len(refs) != 2 {
		t.Fatalf("refs = %+v, want one per (name, type) pair", refs)
	}
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_second.txt": "Second document.",
		"a_first.txt":  "First document.",
		"notes.html":   "<html><head><title>x</title></head><body><p>Hello from HTML.</p></body></html>",
		"skipped.xyz":  "binary-ish",
		"empty.txt":    "   \n",
		".hidden.txt":  "dotfile",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := NewLoader().ReadDocuments(dir)
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}

	if len(docs) != 3 {
		t.Fatalf("got %d documents: %+v", len(docs), docs)
	}
	// Directory order is lexicographic, so ids are stable across runs.
	if docs[0].ID != "a_first" || docs[1].ID != "b_second" || docs[2].ID != "notes" {
		t.Errorf("ids = %s, %s, %s", docs[0].ID, docs[1].ID, docs[2].ID)
	}
	if docs[0].Text != "First document." {
		t.Errorf("text = %q", docs[0].Text)
	}
	if docs[2].Text != "Hello from HTML." {
		t.Errorf("html text = %q", docs[2].Text)
	}
	if docs[0].Metadata["format"] != "txt" || docs[2].Metadata["format"] != "html" {
		t.Errorf("metadata = %+v / %+v", docs[0].Metadata, docs[2].Metadata)
	}
}

func TestReadDocumentsMissingDir(t *testing.T) {
	if _, err := NewLoader().ReadDocuments(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
