package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/solitaryfield/textkg/pkg/kg"
)

func sampleGraph() *kg.KnowledgeGraphData {
	return &kg.KnowledgeGraphData{
		Nodes: []kg.Node{
			{
				ID: "E1", Label: "alice johnson", Type: kg.TypePerson,
				Properties: map[string]interface{}{"mentions": []interface{}{"alice johnson"}},
				Sources:    []string{"doc1"},
			},
			{ID: "E2", Label: "acme corp", Type: kg.TypeOrganization},
		},
		Edges: []kg.Edge{
			{
				ID: "E1-works_at-E2", Source: "E1", Target: "E2", Type: "works_at",
				Weight: 0.85,
			},
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func TestJSONGraphStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs", "knowledge_graph.json")
	store := NewJSONGraphStore(path)

	if err := store.StoreGraph(context.Background(), sampleGraph()); err != nil {
		t.Fatalf("StoreGraph: %v", err)
	}

	loaded, err := store.LoadGraph(context.Background())
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	if len(loaded.Nodes) != 2 || len(loaded.Edges) != 1 {
		t.Fatalf("loaded %d nodes, %d edges", len(loaded.Nodes), len(loaded.Edges))
	}
	if loaded.Nodes[0].ID != "E1" || loaded.Nodes[0].Type != kg.TypePerson {
		t.Errorf("node = %+v", loaded.Nodes[0])
	}
	if got := loaded.Nodes[0].Sources; len(got) != 1 || got[0] != "doc1" {
		t.Errorf("sources = %v", got)
	}
	e := loaded.Edges[0]
	if e.Source != "E1" || e.Target != "E2" || e.Type != "works_at" || e.Weight != 0.85 {
		t.Errorf("edge = %+v", e)
	}
}

func TestLoadGraphMissingFile(t *testing.T) {
	store := NewJSONGraphStore(filepath.Join(t.TempDir(), "nope.json"))
	if _, err := store.LoadGraph(context.Background()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSaveLoadResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "pipeline_result.json")
	res := &kg.Result{
		RunID: "run-42",
		Documents: []kg.DocumentResult{
			{DocID: "doc1", Sentences: 2, Triples: []kg.Triple{
				{Subject: "alice johnson", Predicate: "works_at", Object: "acme corp",
					SubjectEntity: "E1", ObjectEntity: "E2", Confidence: 0.85, Method: kg.MethodSVO},
			}},
		},
		Entities: []kg.Entity{
			{ID: "E1", Name: "alice johnson", Type: kg.TypePerson},
			{ID: "E2", Name: "acme corp", Type: kg.TypeOrganization},
		},
		Graph:  sampleGraph(),
		Report: kg.RunReport{RunID: "run-42", Documents: 1, Triples: 1},
	}

	if err := SaveResult(path, res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	loaded, err := LoadResult(path)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if loaded.RunID != "run-42" || len(loaded.Documents) != 1 || len(loaded.Entities) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	tr := loaded.Documents[0].Triples[0]
	if tr.Predicate != "works_at" || tr.SubjectEntity != "E1" {
		t.Errorf("triple = %+v", tr)
	}
	if loaded.Report.Triples != 1 {
		t.Errorf("report = %+v", loaded.Report)
	}
	if loaded.Graph == nil || len(loaded.Graph.Nodes) != 2 {
		t.Errorf("graph = %+v", loaded.Graph)
	}
}

func TestLoadResultMissingFile(t *testing.T) {
	if _, err := LoadResult(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
