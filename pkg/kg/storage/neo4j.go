package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"

	"github.com/solitaryfield/textkg/pkg/kg"
)

// Neo4jStorage implements GraphStore using Neo4j. Node and edge
// properties are stored as JSON strings because Neo4j properties
// cannot hold nested maps.
type Neo4jStorage struct {
	driver  neo4j.Driver
	uri     string
	auth    neo4j.AuthToken
	session neo4j.Session
}

// NewNeo4jStorage creates a new Neo4j storage instance
func NewNeo4jStorage(uri, username, password string) (*Neo4jStorage, error) {
	auth := neo4j.BasicAuth(username, password, "")
	driver, err := neo4j.NewDriver(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %v", err)
	}

	return &Neo4jStorage{
		driver: driver,
		uri:    uri,
		auth:   auth,
	}, nil
}

// Connect opens the session used by subsequent calls.
func (s *Neo4jStorage) Connect(ctx context.Context) error {
	session := s.driver.NewSession(neo4j.SessionConfig{})
	s.session = session
	return nil
}

// Close releases the session and the driver.
func (s *Neo4jStorage) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	if s.driver != nil {
		return s.driver.Close()
	}
	return nil
}

// StoreGraph writes all nodes and edges in one transaction. MERGE on
// the stable ids keeps repeated exports of the same run idempotent.
func (s *Neo4jStorage) StoreGraph(ctx context.Context, data *kg.KnowledgeGraphData) error {
	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		for _, node := range data.Nodes {
			props, err := json.Marshal(node.Properties)
			if err != nil {
				return nil, err
			}

			params := map[string]interface{}{
				"id":         node.ID,
				"label":      node.Label,
				"type":       node.Type,
				"properties": string(props),
				"sources":    node.Sources,
			}

			_, err = tx.Run(`
				MERGE (n:Entity {id: $id})
				SET n.label = $label,
					n.type = $type,
					n.properties = $properties,
					n.sources = $sources,
					n.updated_at = datetime()
			`, params)

			if err != nil {
				return nil, err
			}
		}

		for _, edge := range data.Edges {
			props, err := json.Marshal(edge.Properties)
			if err != nil {
				return nil, err
			}

			params := map[string]interface{}{
				"id":         edge.ID,
				"source":     edge.Source,
				"target":     edge.Target,
				"type":       edge.Type,
				"properties": string(props),
				"weight":     edge.Weight,
			}

			_, err = tx.Run(`
				MATCH (from:Entity {id: $source})
				MATCH (to:Entity {id: $target})
				MERGE (from)-[r:RELATES {id: $id}]->(to)
				SET r.type = $type,
					r.properties = $properties,
					r.weight = $weight,
					r.updated_at = datetime()
			`, params)

			if err != nil {
				return nil, err
			}
		}

		return nil, nil
	})

	return err
}

// LoadGraph reads every node and edge back from Neo4j.
func (s *Neo4jStorage) LoadGraph(ctx context.Context) (*kg.KnowledgeGraphData, error) {
	if s.session == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	data := &kg.KnowledgeGraphData{}

	result, err := s.session.Run(`MATCH (n:Entity) RETURN n`, nil)
	if err != nil {
		return nil, err
	}
	for result.Next() {
		record := result.Record()
		nodeData := record.Values[0].(neo4j.Node)

		node := kg.Node{
			ID:    stringProp(nodeData.Props, "id"),
			Label: stringProp(nodeData.Props, "label"),
			Type:  stringProp(nodeData.Props, "type"),
		}
		if raw := stringProp(nodeData.Props, "properties"); raw != "" {
			json.Unmarshal([]byte(raw), &node.Properties)
		}
		if sources, ok := nodeData.Props["sources"].([]interface{}); ok {
			for _, src := range sources {
				if s, ok := src.(string); ok {
					node.Sources = append(node.Sources, s)
				}
			}
		}
		data.Nodes = append(data.Nodes, node)
	}

	result, err = s.session.Run(`MATCH (a:Entity)-[r:RELATES]->(b:Entity) RETURN r, a.id, b.id`, nil)
	if err != nil {
		return nil, err
	}
	for result.Next() {
		record := result.Record()
		relData := record.Values[0].(neo4j.Relationship)

		edge := kg.Edge{
			ID:   stringProp(relData.Props, "id"),
			Type: stringProp(relData.Props, "type"),
		}
		if src, ok := record.Values[1].(string); ok {
			edge.Source = src
		}
		if tgt, ok := record.Values[2].(string); ok {
			edge.Target = tgt
		}
		if w, ok := relData.Props["weight"].(float64); ok {
			edge.Weight = w
		}
		if raw := stringProp(relData.Props, "properties"); raw != "" {
			json.Unmarshal([]byte(raw), &edge.Properties)
		}
		data.Edges = append(data.Edges, edge)
	}

	return data, nil
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
