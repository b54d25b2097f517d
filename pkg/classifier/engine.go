// Package classifier определяет границу движка классификации и его LLM реализацию.
//
// Движок получает извлечённый текст файла и возвращает вердикт
// KEEP/DESTROY/TRANSITORY с уверенностью и обоснованием.
// Любой сбой возвращается как *EngineError и не прерывает прогон.
package classifier

import (
	"context"

	"github.com/ilkoid/records-classifier/pkg/records"
)

// Request содержит входные данные одного вызова движка.
type Request struct {
	Model    string             // Идентификатор модели
	Text     string             // Текст, уже обрезанный до LinesCap строк
	LinesCap int                // Сколько строк было запрошено у извлекателя
	File     records.FileRecord // Метаданные файла (возраст для гибридной уверенности)
}

// Engine задаёт контракт движка классификации.
type Engine interface {
	Classify(ctx context.Context, req Request) (records.Verdict, error)
}

// EngineFunc адаптирует функцию к Engine.
type EngineFunc func(ctx context.Context, req Request) (records.Verdict, error)

// Classify вызывает f.
func (f EngineFunc) Classify(ctx context.Context, req Request) (records.Verdict, error) {
	return f(ctx, req)
}
