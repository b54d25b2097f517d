// Интерфейс Провайдера через который работает весь конвейер.

package llm

import "context"

// Provider задаёт контракт для любого AI-сервиса (Ollama, OpenAI-совместимые API).
type Provider interface {
	// Chat отправляет запрос и возвращает текстовый ответ (или JSON строку).
	// Отмена и таймаут передаются через ctx.
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ProviderFunc адаптирует функцию к Provider.
type ProviderFunc func(ctx context.Context, req ChatRequest) (string, error)

// Chat вызывает f.
func (f ProviderFunc) Chat(ctx context.Context, req ChatRequest) (string, error) {
	return f(ctx, req)
}
