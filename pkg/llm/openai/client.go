// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Локальная Ollama отдаёт такой API на http://localhost:11434/v1, поэтому
// этот же клиент обслуживает и локальную модель классификатора.
// Соблюдает правило: работает только через интерфейс llm.Provider.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// ollamaAPIKey подставляется при пустом ключе: Ollama его игнорирует, а SDK всегда шлёт заголовок.
const ollamaAPIKey = "ollama"

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ llm.Provider = (*Client)(nil)

// NewClient создает OpenAI клиент на основе конфигурации модели.
//
// Поддержка custom BaseURL для Ollama и прочих совместимых серверов.
// Timeout из ModelDef ограничивает каждый HTTP запрос.
func NewClient(modelDef config.ModelDef) *Client {
	key := modelDef.APIKey
	if key == "" {
		key = ollamaAPIKey
	}

	cfg := openai.DefaultConfig(key)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(modelDef.BaseURL, "/")
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       modelDef.ModelName,
		temperature: modelDef.Temperature,
		maxTokens:   modelDef.MaxTokens,
	}
}

// Chat выполняет запрос к API и возвращает текст ответа модели.
//
// Алгоритм:
//  1. Конвертирует внутренние сообщения в формат OpenAI SDK
//  2. Подставляет дефолты модели для пустых полей запроса
//  3. Добавляет response_format (json_object / json_schema)
//  4. Вызывает API и возвращает content первого choice
//
// Все ошибки возвращаются, никаких panic.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    mapToOpenAI(req.Messages),
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	}
	if req.Temperature > 0 {
		apiReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}
	apiReq.ResponseFormat = responseFormat(req)

	utils.Debug("LLM request started",
		"model", model,
		"messages_count", len(req.Messages),
		"format", req.Format)

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return "", fmt.Errorf("openai api error: %w", err)
	}

	// Проверяем что есть хотя бы один выбор
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content

	utils.Debug("LLM response received",
		"model", model,
		"content_length", len(content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return content, nil
}

// mapToOpenAI конвертирует наши сообщения в формат SDK.
func mapToOpenAI(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}

// responseFormat строит response_format по запросу.
//
// json_schema без схемы деградирует до json_object.
func responseFormat(req llm.ChatRequest) *openai.ChatCompletionResponseFormat {
	switch req.Format {
	case llm.FormatJSONSchema:
		if req.Schema == nil {
			return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		}
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	case llm.FormatJSONObject:
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	default:
		return nil
	}
}
