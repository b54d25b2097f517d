package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ilkoid/records-classifier/pkg/utils"
)

// ChanEmitter доставляет события прогона одному читателю через буферизованный канал.
//
// Выход CLI строится из PROGRESS-событий, поэтому потеря события
// не прячется: Emit считает доставленные и отброшенные события,
// а Stats отдаёт счётчики после прогона.
type ChanEmitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool

	delivered atomic.Int64
	dropped   atomic.Int64
}

// EmitStats содержит счётчики ChanEmitter.
type EmitStats struct {
	Delivered int64
	Dropped   int64
}

// NewChanEmitter создаёт эмиттер с буфером на buffer событий.
// При buffer = 0 каждый Emit ждёт читателя.
func NewChanEmitter(buffer int) *ChanEmitter {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanEmitter{ch: make(chan Event, buffer)}
}

// Emit ставит событие в очередь. Пустой Timestamp заполняется текущим временем.
//
// Событие отбрасывается, если эмиттер закрыт или ctx отменён раньше,
// чем читатель освободил буфер. Read lock держится на время отправки,
// так что Close не закрывает канал под ожидающим Emit.
func (e *ChanEmitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(event, "emitter closed")
		return
	}

	select {
	case e.ch <- event:
		e.delivered.Add(1)
	case <-ctx.Done():
		e.drop(event, ctx.Err().Error())
	}
}

func (e *ChanEmitter) drop(event Event, reason string) {
	e.dropped.Add(1)
	utils.Debug("Run event dropped", "type", event.Type, "reason", reason)
}

// Subscribe возвращает читателя событий. Канал общий: при нескольких
// подписчиках каждое событие получает только один из них.
func (e *ChanEmitter) Subscribe() Subscriber {
	return subscription{ch: e.ch}
}

// Stats возвращает счётчики доставки.
func (e *ChanEmitter) Stats() EmitStats {
	return EmitStats{Delivered: e.delivered.Load(), Dropped: e.dropped.Load()}
}

// Close закрывает канал. Повторный вызов ничего не делает.
func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

type subscription struct {
	ch <-chan Event
}

func (s subscription) Events() <-chan Event { return s.ch }

// Close ничего не делает: канал закрывает ChanEmitter.Close.
func (s subscription) Close() {}

var (
	_ Emitter    = (*ChanEmitter)(nil)
	_ Subscriber = subscription{}
)
