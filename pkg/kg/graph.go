package kg

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg/metrics"
)

// ErrDanglingReference reports an edge whose endpoint entity was never
// added. This is an internal consistency error: the run aborts rather
// than exporting a broken graph.
var ErrDanglingReference = errors.New("edge references an entity that is not in the graph")

// EdgeHasTrait is the edge type linking a person to a trait node.
const EdgeHasTrait = "has_trait"

const traitNodePrefix = "trait:"

// GraphBuilder assembles the exported knowledge graph from canonical
// entities, normalized triples and trait assertions. Nodes and edges
// keep insertion order, so the same inputs serialize identically.
type GraphBuilder struct {
	nodes   []Node
	nodeIdx map[string]int
	edges   []Edge
	edgeIdx map[string]int
	mutex   sync.Mutex
	logger  *logrus.Logger
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &GraphBuilder{
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[string]int),
		logger:  logger,
	}
}

// AddEntity registers one canonical entity as a node. Adding the same
// entity ID twice is a no-op.
func (b *GraphBuilder) AddEntity(e Entity) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.nodeIdx[e.ID]; ok {
		return
	}

	props := map[string]interface{}{
		"mentions": e.Mentions,
	}
	if e.FromReference {
		props["from_reference"] = true
	}

	b.nodeIdx[e.ID] = len(b.nodes)
	b.nodes = append(b.nodes, Node{
		ID:         e.ID,
		Label:      e.Name,
		Type:       e.Type,
		Properties: props,
	})
}

// AddTriple adds one normalized, entity-resolved triple as an edge.
// Duplicate (subject, predicate, object) facts merge into one edge:
// the weight becomes the average confidence and the mention list grows
// by one entry, so no sentence-level provenance is lost.
func (b *GraphBuilder) AddTriple(t Triple) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	si, ok := b.nodeIdx[t.SubjectEntity]
	if !ok {
		return errors.Wrapf(ErrDanglingReference, "subject %q of predicate %q", t.SubjectEntity, t.Predicate)
	}
	ti, ok := b.nodeIdx[t.ObjectEntity]
	if !ok {
		return errors.Wrapf(ErrDanglingReference, "object %q of predicate %q", t.ObjectEntity, t.Predicate)
	}

	b.addSource(si, t.DocID)
	b.addSource(ti, t.DocID)

	mention := map[string]interface{}{
		"doc_id":         t.DocID,
		"sentence_index": t.SentenceIndex,
		"method":         t.Method,
		"evidence":       t.Evidence,
	}

	edgeID := fmt.Sprintf("%s-%s-%s", t.SubjectEntity, t.Predicate, t.ObjectEntity)
	if i, ok := b.edgeIdx[edgeID]; ok {
		e := &b.edges[i]
		e.Weight = (e.Weight + t.Confidence) / 2
		e.Properties["count"] = e.Properties["count"].(int) + 1
		e.Properties["mentions"] = append(e.Properties["mentions"].([]map[string]interface{}), mention)
		return nil
	}

	props := map[string]interface{}{
		"count":    1,
		"mentions": []map[string]interface{}{mention},
	}
	if t.Unmapped {
		props["unmapped"] = true
	}

	b.edgeIdx[edgeID] = len(b.edges)
	b.edges = append(b.edges, Edge{
		ID:         edgeID,
		Source:     t.SubjectEntity,
		Target:     t.ObjectEntity,
		Type:       t.Predicate,
		Properties: props,
		Weight:     t.Confidence,
	})
	return nil
}

// AddTraitAssertion links a person node to a trait node with one edge
// carrying every method's score. Trait nodes are created on first use.
// A second assertion for the same pair merges method entries without
// overwriting existing ones.
func (b *GraphBuilder) AddTraitAssertion(a TraitAssertion) error {
	if len(a.Scores) == 0 {
		return nil
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.nodeIdx[a.EntityID]; !ok {
		return errors.Wrapf(ErrDanglingReference, "person %q for trait %q", a.EntityID, a.Trait)
	}

	traitID := traitNodePrefix + a.Trait
	if _, ok := b.nodeIdx[traitID]; !ok {
		b.nodeIdx[traitID] = len(b.nodes)
		b.nodes = append(b.nodes, Node{
			ID:    traitID,
			Label: a.Trait,
			Type:  TypeTrait,
		})
	}

	scores := make(map[string]interface{}, len(a.Scores))
	for _, s := range a.Scores {
		scores[s.Method] = map[string]interface{}{
			"score":      s.Score,
			"confidence": s.Confidence,
			"evidence":   s.Evidence,
		}
	}

	edgeID := fmt.Sprintf("%s-%s-%s", a.EntityID, EdgeHasTrait, traitID)
	if i, ok := b.edgeIdx[edgeID]; ok {
		existing := b.edges[i].Properties["scores"].(map[string]interface{})
		for method, entry := range scores {
			if _, dup := existing[method]; !dup {
				existing[method] = entry
			}
		}
		return nil
	}

	b.edgeIdx[edgeID] = len(b.edges)
	b.edges = append(b.edges, Edge{
		ID:     edgeID,
		Source: a.EntityID,
		Target: traitID,
		Type:   EdgeHasTrait,
		Properties: map[string]interface{}{
			"trait":  a.Trait,
			"scores": scores,
		},
		Weight: a.Scores[0].Score,
	})
	return nil
}

// Graph finalizes the build and refreshes the graph gauges.
func (b *GraphBuilder) Graph() *KnowledgeGraphData {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)

	nodeTypes := make(map[string]int)
	for _, n := range nodes {
		nodeTypes[n.Type]++
	}
	for typ, n := range nodeTypes {
		metrics.GraphNodeCount.WithLabelValues(typ).Set(float64(n))
	}
	edgeTypes := make(map[string]int)
	for _, e := range edges {
		edgeTypes[e.Type]++
	}
	for typ, n := range edgeTypes {
		metrics.GraphEdgeCount.WithLabelValues(typ).Set(float64(n))
	}

	b.logger.WithFields(logrus.Fields{
		"node_count": len(nodes),
		"edge_count": len(edges),
	}).Info("Knowledge graph generated")

	return &KnowledgeGraphData{
		Nodes:       nodes,
		Edges:       edges,
		GeneratedAt: time.Now(),
	}
}

func (b *GraphBuilder) addSource(nodeIdx int, docID string) {
	if docID == "" {
		return
	}
	n := &b.nodes[nodeIdx]
	for _, s := range n.Sources {
		if s == docID {
			return
		}
	}
	n.Sources = append(n.Sources, docID)
}
