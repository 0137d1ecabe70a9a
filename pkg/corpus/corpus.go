package corpus

import (
	"encoding/json"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/solitaryfield/textkg/pkg/kg"
	"github.com/solitaryfield/textkg/pkg/kg/canon"
	"github.com/solitaryfield/textkg/pkg/kg/normalize"
)

// GoldEntity is a labeled entity from the gold corpus.
type GoldEntity struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// GoldRelation is a labeled relation between two gold entities.
type GoldRelation struct {
	SubjID string `json:"subj_id"`
	Pred   string `json:"pred"`
	ObjID  string `json:"obj_id"`
}

// GoldPersonality carries the labeled Big Five scores for one person.
type GoldPersonality struct {
	Big5        map[string]float64 `json:"big5"`
	Explanation string             `json:"explanation,omitempty"`
}

// GoldDocument is one labeled document: text plus gold entities,
// relations and per-person personality scores. PersonalityLabels is
// keyed by gold entity id.
type GoldDocument struct {
	DocID             string                     `json:"doc_id"`
	Text              string                     `json:"text"`
	GoldEntities      []GoldEntity               `json:"gold_entities,omitempty"`
	GoldRelations     []GoldRelation             `json:"gold_relations,omitempty"`
	PersonalityLabels map[string]GoldPersonality `json:"personality_labels,omitempty"`
}

// Document converts the gold document into a pipeline input.
func (d GoldDocument) Document() kg.Document {
	return kg.Document{ID: d.DocID, Text: d.Text}
}

// LoadGold reads a gold corpus file.
func LoadGold(path string) ([]GoldDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read gold corpus")
	}

	var docs []GoldDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "failed to decode gold corpus")
	}

	return docs, nil
}

// Documents converts a gold corpus into pipeline inputs, in file order.
func Documents(gold []GoldDocument) []kg.Document {
	docs := make([]kg.Document, 0, len(gold))
	for _, d := range gold {
		docs = append(docs, d.Document())
	}
	return docs
}

// References collects the distinct gold entities as a canonicalizer
// reference list, so mentions resolve onto the labeled entity names.
func References(gold []GoldDocument) []canon.Reference {
	seen := mapset.NewSet[string]()
	var refs []canon.Reference
	for _, d := range gold {
		for _, e := range d.GoldEntities {
			key := normalize.CleanMention(e.Text) + "|" + e.Type
			if e.Text == "" || seen.Contains(key) {
				continue
			}
			seen.Add(key)
			refs = append(refs, canon.Reference{Name: e.Text, Type: e.Type})
		}
	}
	return refs
}
