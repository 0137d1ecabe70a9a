package canon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/solitaryfield/textkg/pkg/kg"
)

func TestResolveExactMatch(t *testing.T) {
	c := New(Config{}, nil)

	id1, skipped := c.Resolve("Alice Johnson", "PERSON")
	if skipped {
		t.Fatal("mention was skipped")
	}
	id2, _ := c.Resolve("alice johnson", "")
	if id1 != id2 {
		t.Fatalf("case variants resolved to %s and %s", id1, id2)
	}

	entities := c.Entities()
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	if entities[0].ID != "E1" || entities[0].Name != "alice johnson" {
		t.Errorf("entity = %+v", entities[0])
	}
	if entities[0].Type != kg.TypePerson {
		t.Errorf("type = %s, want person", entities[0].Type)
	}
}

func TestResolveFuzzyMerge(t *testing.T) {
	c := New(Config{}, nil)

	id1, _ := c.Resolve("Alice Johnson", "PERSON")
	id2, skipped := c.Resolve("Alice Johnsen", "")
	if skipped {
		t.Fatal("near-duplicate was skipped")
	}
	if id1 != id2 {
		t.Fatalf("near-duplicates resolved to %s and %s, want one entity", id1, id2)
	}

	e := c.Entities()[0]
	if len(e.Mentions) != 2 {
		t.Fatalf("mentions = %v, want both surface forms", e.Mentions)
	}
}

func TestResolveDistinctEntities(t *testing.T) {
	c := New(Config{}, nil)

	id1, _ := c.Resolve("Alice", "PERSON")
	id2, _ := c.Resolve("Priya", "PERSON")
	if id1 == id2 {
		t.Fatal("unrelated names merged")
	}

	entities := c.Entities()
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0].ID != "E1" || entities[1].ID != "E2" {
		t.Errorf("ids = %s, %s", entities[0].ID, entities[1].ID)
	}
}

func TestResolveDeterministicIDs(t *testing.T) {
	mentions := []string{"Alice Johnson", "Acme Corp", "Bob", "alice johnson", "Berlin"}

	run := func() []string {
		c := New(Config{}, nil)
		var ids []string
		for _, m := range mentions {
			id, _ := c.Resolve(m, "")
			ids = append(ids, id)
		}
		return ids
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run ids diverge at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestResolveShortMentionSkipped(t *testing.T) {
	c := New(Config{}, nil)

	for _, m := range []string{"Al", "it", "a", ""} {
		if id, skipped := c.Resolve(m, "PERSON"); !skipped || id != "" {
			t.Errorf("Resolve(%q) = (%q, %v), want skip", m, id, skipped)
		}
	}
	if id, skipped := c.Resolve("Bob", "PERSON"); skipped || id == "" {
		t.Error("three-rune mention must not be skipped")
	}
	if len(c.Entities()) != 1 {
		t.Fatalf("skipped mentions created entities: %+v", c.Entities())
	}
}

func TestResolveReferencePriority(t *testing.T) {
	refs := []Reference{{Name: "Alice Johnson", Type: "person"}}
	c := New(Config{}, refs)

	id, skipped := c.Resolve("Alice Johnsen", "")
	if skipped {
		t.Fatal("mention was skipped")
	}

	e := c.Entities()[0]
	if e.ID != id || !e.FromReference {
		t.Fatalf("entity = %+v, want a reference instantiation", e)
	}
	if e.Name != "alice johnson" {
		t.Errorf("name = %q, want the reference name", e.Name)
	}
	if e.Type != kg.TypePerson {
		t.Errorf("type = %s, want person", e.Type)
	}
}

func TestResolveThreshold(t *testing.T) {
	strict := New(Config{Threshold: 0.95}, nil)

	id1, _ := strict.Resolve("Alice Johnson", "")
	id2, _ := strict.Resolve("Alice Johnsen", "")
	if id1 == id2 {
		t.Fatal("strict threshold still merged near-duplicates")
	}
}

func TestResolveTypeUpgrade(t *testing.T) {
	c := New(Config{}, nil)

	id1, _ := c.Resolve("Berlin", "")
	if c.Entities()[0].Type != kg.TypeUnknown {
		t.Fatalf("type = %s, want unknown before any hint", c.Entities()[0].Type)
	}

	id2, _ := c.Resolve("Berlin", "GPE")
	if id1 != id2 {
		t.Fatalf("same mention resolved to %s and %s", id1, id2)
	}
	if got := c.Entities()[0].Type; got != kg.TypeLocation {
		t.Fatalf("type = %s, want location after hint", got)
	}
}

func TestLoadReferences(t *testing.T) {
	refs := []Reference{
		{Name: "Alice", Type: "person"},
		{Name: "Acme Corp", Type: "org"},
	}
	data, err := json.Marshal(refs)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "refs.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("LoadReferences: %v", err)
	}
	if len(loaded) != 2 || loaded[1].Name != "Acme Corp" {
		t.Fatalf("loaded = %+v", loaded)
	}
}
