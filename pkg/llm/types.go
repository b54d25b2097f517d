// Базовые типы - определяем универсальный язык общения с моделями
package llm

import "encoding/json"

// ChatRequest описывает унифицированный запрос к любой модели
type ChatRequest struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Format      string         // "json_object", "json_schema" или пустая строка
	Schema      json.Marshaler // JSON Schema ответа, используется при Format == "json_schema"
	SchemaName  string         // Имя схемы для response_format
	Messages    []Message      // История чата
}

// Message хранит одно сообщение
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Константы для удобства
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	FormatJSONObject = "json_object"
	FormatJSONSchema = "json_schema"
)
