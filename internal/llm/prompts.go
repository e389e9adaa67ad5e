package llm

import (
	"fmt"
	"strings"
)

const attributePrompt = `You are an attribute extraction system for narrative fiction. Given one sentence and the characters mentioned in it, extract any physical, demographic, or spatial attributes the sentence states about those characters.

For each attribute, determine:
- entity: the character's name, exactly as given in the list below
- type: one of "eye_color", "hair_color", "age", "child_count", "location", "body_state"
- value: the attribute value as a short phrase
- confidence: how certain you are, between 0.0 and 1.0
- negated: true if the sentence denies the attribute ("did not have", "never was")
- temporal_change: true if the sentence marks a change over story time ("no longer", "used to be")

Do not extract attributes from hypothetical or counterfactual statements. Do not guess the owner when a pronoun could refer to more than one character; skip such attributes instead.

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"entity":"Maria","type":"eye_color","value":"green","confidence":0.9,"negated":false,"temporal_change":false}]

If no attributes can be extracted, respond with an empty array: []

Characters: %s
Sentence: %s`

// AttributePrompt renders the extraction prompt for one sentence.
func AttributePrompt(sentence string, entities []string) string {
	return fmt.Sprintf(attributePrompt, strings.Join(entities, ", "), sentence)
}
