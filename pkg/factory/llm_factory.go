// Package factory создаёт LLM провайдеров по конфигурации модели.
package factory

import (
	"fmt"
	"strings"

	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Все поддерживаемые провайдеры говорят на OpenAI-совместимом API,
// пустой provider трактуется как локальная Ollama.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch strings.ToLower(modelDef.Provider) {
	case "", "ollama", "openai", "deepseek":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}
