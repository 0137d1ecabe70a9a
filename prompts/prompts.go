package prompts

import (
	"fmt"
	"strings"

	"github.com/solitaryfield/textkg/pkg/kg"
)

const relationTemplate = `You are an information extraction system. Below is a numbered list of sentences taken from one document.

Sentences:
%s

Extract every relation between named people, organizations and places that the sentences state explicitly.

Respond with ONLY a JSON object of this form:
{"triples": [{"sentence_index": 0, "subject": "...", "predicate": "...", "object": "...", "evidence": "..."}]}

Rules:
- subject and object are surface forms copied from the sentence.
- predicate is a short lowercase verb phrase in snake_case, for example "works_at" or "collaborates_with".
- sentence_index is the number shown in brackets before the sentence.
- evidence is an exact quote copied verbatim from that sentence.
- Do not invent relations that the text does not state.
- Output the JSON object only, with no commentary and no code fences.`

// RelationReprompt is appended to the relation prompt when the first
// response fails validation.
const RelationReprompt = `

Your previous reply was not valid. Respond again with ONLY the JSON object described above. No prose, no code fences. Every evidence string must be copied verbatim from its sentence and every sentence_index must come from the numbered list.`

const traitTemplate = `You are a personality analyst. Read the following sentences about %s and estimate the Big Five personality traits they suggest.

Text:
%s

Respond with ONLY a JSON object of this form:
{"openness": {"score": 0.5, "evidence": "..."}, "conscientiousness": {"score": 0.5, "evidence": "..."}, "extraversion": {"score": 0.5, "evidence": "..."}, "agreeableness": {"score": 0.5, "evidence": "..."}, "neuroticism": {"score": 0.5, "evidence": "..."}}

Rules:
- Every score is a number between 0 and 1.
- Every evidence string is an exact quote copied verbatim from the text above.
- Base the estimates only on the text; when the text says nothing about a trait, use 0.5.
- Output the JSON object only, with no commentary and no code fences.`

// TraitReprompt is appended to the trait prompt when the first
// response fails validation.
const TraitReprompt = `

Your previous reply was not valid. Respond again with ONLY the JSON object described above, covering all five traits. No prose, no code fences. Every score must be between 0 and 1 and every evidence string must be copied verbatim from the text.`

// RelationExtraction renders the relation prompt for a batch of
// sentences, indexed by their position in the document.
func RelationExtraction(sents []kg.Sentence) string {
	var b strings.Builder
	for i, s := range sents {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s", s.Index, s.Text)
	}
	return fmt.Sprintf(relationTemplate, b.String())
}

// TraitInference renders the trait prompt for one person and the
// aggregated text that mentions them.
func TraitInference(person, text string) string {
	return fmt.Sprintf(traitTemplate, person, text)
}
