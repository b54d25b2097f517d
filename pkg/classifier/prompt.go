package classifier

import (
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// maxPromptChars задаёт предел текста файла в пользовательском сообщении.
const maxPromptChars = 5000

// verdictSchemaName: имя схемы в response_format.
const verdictSchemaName = "records_verdict"

// verdictSchema описывает форму ответа модели.
var verdictSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"modelDetermination": {
			Type:        jsonschema.String,
			Enum:        []string{"TRANSITORY", "DESTROY", "KEEP"},
			Description: "Retention category of the record",
		},
		"confidenceScore": {
			Type:        jsonschema.Integer,
			Description: "Confidence from 1 to 100",
		},
		"contextualInsights": {
			Type:        jsonschema.String,
			Description: "Short justification of the determination",
		},
	},
	Required:             []string{"modelDetermination", "confidenceScore", "contextualInsights"},
	AdditionalProperties: false,
}

// systemPrompt строит инструкцию, на которой обучалась модель классификатора.
func systemPrompt(model string, lines int) string {
	return fmt.Sprintf("You are %q - Pierce County Records Classifier.\n"+
		"Analyze first %d lines. Output JSON with: KEEP/DESTROY/TRANSITORY, confidenceScore, contextualInsights.",
		model, lines)
}

// userPrompt оборачивает содержимое файла в запрос.
func userPrompt(text string) string {
	return "Classify this content per instructions:\n" +
		utils.Truncate(text, maxPromptChars) +
		"\nOutput JSON only:"
}

// buildMessages собирает историю для одного файла.
func buildMessages(req Request) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(req.Model, req.LinesCap)},
		{Role: llm.RoleUser, Content: userPrompt(req.Text)},
	}
}
