package ai

import (
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const titleSystemPrompt = `You are a conversation title writer. Given the first question and answer of a conversation, produce one short title.

Rules:
1. Three to eight words, no trailing punctuation.
2. The title names the core topic, never the fact that a conversation happened.
3. Avoid filler openers such as "About" or "Discussion of".
4. A short question may serve as its own title.
5. Keep a neutral tone.`

func renderTitlePrompt(question, answer string) string {
	return fmt.Sprintf("Question: %s\n\nAnswer: %s\n\nWrite a short title for this conversation.", question, answer)
}

// titleJSONSchema constrains the model output to a single title field.
var titleJSONSchema = &jsonschema.Definition{
	Type:                 jsonschema.Object,
	AdditionalProperties: false,
	Required:             []string{"title"},
	Properties: map[string]jsonschema.Definition{
		"title": {
			Type:        jsonschema.String,
			Description: "Short title for the conversation",
		},
	},
}
