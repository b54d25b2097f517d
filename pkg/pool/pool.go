// Package pool выполняет классификацию файлов ограниченным числом горутин.
//
// Ограничение держит errgroup.SetLimit: новая задача стартует сразу,
// как только освобождается слот. Каждый файл завершается ровно одной
// записью ResultRecord, даже если задача упала или прогон отменён.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// ParallelFactor: множитель числа CPU для автоматического лимита.
const ParallelFactor = 2.5

// ErrTaskLaunch: базовая ошибка запуска задачи.
var ErrTaskLaunch = errors.New("task launch failed")

// TaskLaunchError возвращается, когда задача не смогла выполниться (panic внутри горутины).
type TaskLaunchError struct {
	Path  string
	Cause any
}

func (e *TaskLaunchError) Error() string {
	return fmt.Sprintf("task launch failed: %v", e.Cause)
}

func (e *TaskLaunchError) Unwrap() error {
	return ErrTaskLaunch
}

// Task обрабатывает один файл и всегда возвращает запись.
type Task func(ctx context.Context, f records.FileRecord) records.ResultRecord

// Sink принимает готовые записи. Вызывается конкурентно.
type Sink func(rec records.ResultRecord)

// State описывает состояние задачи одного файла.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats содержит число задач в каждом состоянии.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// EffectiveLimit возвращает лимит параллелизма.
//
// configured > 0 используется как есть, иначе ceil(cpus × 2.5), минимум 1.
func EffectiveLimit(configured, cpus int) int {
	if configured > 0 {
		return configured
	}
	limit := int(math.Ceil(float64(cpus) * ParallelFactor))
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Pool запускает задачи с ограничением параллелизма.
type Pool struct {
	limit int
	task  Task

	mu          sync.Mutex
	states      map[string]State
	inFlight    int
	maxInFlight int
}

// New создаёт пул с лимитом limit (минимум 1).
func New(limit int, task Task) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{
		limit:  limit,
		task:   task,
		states: make(map[string]State),
	}
}

// Limit возвращает лимит параллелизма.
func (p *Pool) Limit() int { return p.limit }

// Run обрабатывает files и отдаёт каждую запись в sink.
//
// Блокируется до завершения всех задач. Файлы, до которых не дошла
// очередь после отмены ctx, получают ERROR "run cancelled before
// classification". Возвращает ctx.Err() если прогон был отменён.
func (p *Pool) Run(ctx context.Context, files []records.FileRecord, sink Sink) error {
	p.mu.Lock()
	for _, f := range files {
		p.states[f.Path] = StatePending
	}
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.limit)

	cancelled := 0
	for _, f := range files {
		if ctx.Err() != nil {
			cancelled++
			p.setState(f.Path, StateFailed)
			sink(records.NewResult(f, records.KindError, 0, records.JustificationCancelled))
			continue
		}

		// Go блокируется, пока все слоты заняты
		g.Go(func() error {
			sink(p.runOne(ctx, f))
			return nil
		})
	}

	_ = g.Wait()

	if cancelled > 0 {
		utils.Warn("Run cancelled, files left unclassified", "count", cancelled)
	}
	return ctx.Err()
}

// runOne выполняет задачу с учётом состояния и перехватом panic.
func (p *Pool) runOne(ctx context.Context, f records.FileRecord) (rec records.ResultRecord) {
	p.started(f.Path)

	defer func() {
		if r := recover(); r != nil {
			err := &TaskLaunchError{Path: f.Path, Cause: r}
			utils.Error("Task panicked", "path", f.Path, "error", err)
			rec = records.Failed(f, err)
		}
		state := StateCompleted
		if rec.Verdict.Kind() == records.KindError {
			state = StateFailed
		}
		p.finished(f.Path, state)
	}()

	return p.task(ctx, f)
}

func (p *Pool) started(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[path] = StateRunning
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
}

func (p *Pool) finished(path string, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[path] = s
	p.inFlight--
}

func (p *Pool) setState(path string, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[path] = s
}

// State возвращает состояние задачи файла.
func (p *Pool) State(path string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[path]
	return s, ok
}

// Stats возвращает снимок состояний.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var st Stats
	for _, s := range p.states {
		switch s {
		case StatePending:
			st.Pending++
		case StateRunning:
			st.Running++
		case StateCompleted:
			st.Completed++
		case StateFailed:
			st.Failed++
		}
	}
	return st
}

// MaxInFlight возвращает наблюдавшийся пик одновременных задач.
func (p *Pool) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
