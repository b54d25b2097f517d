package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// modelAnswer хранит сырой ответ модели. Указатели отличают отсутствие поля от нуля.
type modelAnswer struct {
	ModelDetermination *string  `json:"modelDetermination"`
	ConfidenceScore    *float64 `json:"confidenceScore"`
	ContextualInsights *string  `json:"contextualInsights"`
}

// parseAnswer достаёт и проверяет вердикт из текста ответа.
//
// Правила:
//   - markdown ограждения срезаются, берётся первый плоский JSON объект
//   - modelDetermination ∈ {TRANSITORY, DESTROY, KEEP}
//   - confidenceScore число в [1, 100], дробное округляется
//   - contextualInsights строка
func parseAnswer(raw string) (records.Kind, int, string, error) {
	cleaned := utils.CleanJsonBlock(raw)
	if strings.TrimSpace(cleaned) == "" {
		return "", 0, "", fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	obj := utils.ExtractJSON(cleaned)
	if obj == "" {
		return "", 0, "", fmt.Errorf("%w: no JSON object in response: %q",
			ErrInvalidResponse, utils.Truncate(cleaned, 80))
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(obj), &ans); err != nil {
		return "", 0, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if ans.ModelDetermination == nil {
		return "", 0, "", fmt.Errorf("%w: missing modelDetermination", ErrInvalidResponse)
	}
	kind, err := records.ParseDetermination(strings.ToUpper(strings.TrimSpace(*ans.ModelDetermination)))
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if ans.ConfidenceScore == nil {
		return "", 0, "", fmt.Errorf("%w: missing confidenceScore", ErrInvalidResponse)
	}
	score := *ans.ConfidenceScore
	if math.IsNaN(score) || score < 1 || score > 100 {
		return "", 0, "", fmt.Errorf("%w: confidenceScore %v out of range 1-100", ErrInvalidResponse, score)
	}

	if ans.ContextualInsights == nil {
		return "", 0, "", fmt.Errorf("%w: missing contextualInsights", ErrInvalidResponse)
	}

	return kind, int(math.Round(score)), strings.TrimSpace(*ans.ContextualInsights), nil
}
