// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события прогона классификации.
// Позволяет подключать любой вывод прогресса (stderr, лог) без изменения
// логики конвейера.
//
// # Basic Usage
//
//	// В конвейере (pkg/runner/):
//	emitter := events.NewChanEmitter(64)
//	deps.Emitter = emitter
//
//	// В CLI (cmd/recclass/):
//	sub := emitter.Subscribe()
//	for event := range sub.Events() {
//	    switch data := event.Data.(type) {
//	    case events.ProgressData:
//	        fmt.Fprintln(os.Stderr, data.Line())
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
//
// # Rule 11: Context Propagation
//
// Emitter.Emit() принимает context.Context для отмены операции.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/records-classifier/pkg/records"
)

// EventType представляет тип события прогона.
type EventType string

const (
	// EventStarted отправляется после предварительной фильтрации.
	EventStarted EventType = "started"

	// EventProgress отправляется после каждого файла с вердиктом.
	EventProgress EventType = "progress"

	// EventDone отправляется когда прогон завершил работу.
	EventDone EventType = "done"
)

// EventData: sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс.
type EventData interface {
	eventData()
}

// StartedData содержит данные для EventStarted.
type StartedData struct {
	RunID    string
	Total    int // Все найденные файлы
	Decided  int // Решены правилом хранения
	Reviewed int // Переданы модели
}

func (StartedData) eventData() {}

// ProgressData содержит данные для EventProgress.
type ProgressData struct {
	Processed int
	Total     int
	Path      string
	Kind      records.Kind
}

func (ProgressData) eventData() {}

// Line форматирует прогресс для stderr.
func (p ProgressData) Line() string {
	return fmt.Sprintf("PROGRESS: %d/%d", p.Processed, p.Total)
}

// DoneData содержит данные для EventDone.
type DoneData struct {
	Total    int
	Duration time.Duration
	Err      error
}

func (DoneData) eventData() {}

// Event представляет событие прогона.
//
// Для каждого EventType существует соответствующий тип данных:
//   - EventStarted: StartedData
//   - EventProgress: ProgressData
//   - EventDone: DoneData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Progress создаёт событие прогресса.
func Progress(processed, total int, rec records.ResultRecord) Event {
	return Event{
		Type: EventProgress,
		Data: ProgressData{
			Processed: processed,
			Total:     total,
			Path:      rec.File.Path,
			Kind:      rec.Verdict.Kind(),
		},
		Timestamp: time.Now(),
	}
}

// Emitter это Port для отправки событий.
//
// Rule 11: все операции должны уважать context.Context.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
//
// Rule 5: thread-safe операции.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при закрытии эмиттера.
	Events() <-chan Event

	// Close закрывает подписчика.
	Close()
}

// NopEmitter отбрасывает все события.
type NopEmitter struct{}

// Emit ничего не делает.
func (NopEmitter) Emit(context.Context, Event) {}

var _ Emitter = NopEmitter{}
