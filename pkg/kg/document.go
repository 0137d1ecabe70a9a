package kg

// Document represents a single input text. It is immutable once loaded;
// all derived state lives on sentences, triples and entities.
type Document struct {
	ID       string            `json:"doc_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Token represents one token of a sentence with linguistic information.
type Token struct {
	Text  string `json:"text"`
	Tag   string `json:"tag"`
	Lemma string `json:"lemma,omitempty"`
}

// EntitySpan is a named-entity mention detected inside a sentence.
type EntitySpan struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Sentence represents a chunked sentence with its position in the
// source document and optional linguistic annotations.
type Sentence struct {
	Index    int          `json:"index"`
	Text     string       `json:"text"`
	Start    int          `json:"start"`
	End      int          `json:"end"`
	Tokens   []Token      `json:"tokens,omitempty"`
	Entities []EntitySpan `json:"entities,omitempty"`
}
