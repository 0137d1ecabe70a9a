package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/solitaryfield/textkg/pkg/kg"
)

// GraphStore defines an interface for storing knowledge graphs
type GraphStore interface {
	// StoreGraph persists a knowledge graph
	StoreGraph(ctx context.Context, data *kg.KnowledgeGraphData) error

	// LoadGraph loads a knowledge graph from storage
	LoadGraph(ctx context.Context) (*kg.KnowledgeGraphData, error)
}

// JSONGraphStore implements GraphStore using JSON files
type JSONGraphStore struct {
	filePath string
}

// NewJSONGraphStore creates a new JSON graph store
func NewJSONGraphStore(filePath string) *JSONGraphStore {
	return &JSONGraphStore{
		filePath: filePath,
	}
}

// StoreGraph stores the knowledge graph as JSON
func (s *JSONGraphStore) StoreGraph(ctx context.Context, data *kg.KnowledgeGraphData) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create graph directory")
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode graph")
	}

	return os.WriteFile(s.filePath, encoded, 0644)
}

// LoadGraph loads a knowledge graph from a JSON file
func (s *JSONGraphStore) LoadGraph(ctx context.Context) (*kg.KnowledgeGraphData, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read graph file")
	}

	var graph kg.KnowledgeGraphData
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, errors.Wrap(err, "failed to decode graph")
	}

	return &graph, nil
}

// SaveResult writes a full pipeline result to disk so it can be
// evaluated or inspected later without re-running the pipeline.
func SaveResult(path string, res *kg.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create result directory")
	}

	encoded, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}

	return os.WriteFile(path, encoded, 0644)
}

// LoadResult reads a previously saved pipeline result.
func LoadResult(path string) (*kg.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read result file")
	}

	var res kg.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrap(err, "failed to decode result")
	}

	return &res, nil
}
