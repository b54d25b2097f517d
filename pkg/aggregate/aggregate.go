// Package aggregate собирает записи результатов от всех веток конвейера.
//
// Коллекция только пополняется: одна запись на путь, повтор отклоняется.
// Все методы потокобезопасны.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/records-classifier/pkg/records"
)

// ErrDuplicate: для пути уже есть запись.
var ErrDuplicate = errors.New("duplicate result record")

// Aggregator хранит потокобезопасную коллекцию ResultRecord.
type Aggregator struct {
	mu      sync.Mutex
	results []records.ResultRecord
	index   map[string]struct{}
}

// New создаёт агрегатор с ёмкостью под expected записей.
func New(expected int) *Aggregator {
	if expected < 0 {
		expected = 0
	}
	return &Aggregator{
		results: make([]records.ResultRecord, 0, expected),
		index:   make(map[string]struct{}, expected),
	}
}

// Add добавляет запись. Вторая запись для того же пути → ErrDuplicate.
func (a *Aggregator) Add(rec records.ResultRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.index[rec.File.Path]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.File.Path)
	}
	a.index[rec.File.Path] = struct{}{}
	a.results = append(a.results, rec)
	return nil
}

// AddAll добавляет записи по порядку и возвращает первую ошибку.
func (a *Aggregator) AddAll(recs []records.ResultRecord) error {
	var firstErr error
	for _, rec := range recs {
		if err := a.Add(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len возвращает число записей.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Snapshot возвращает копию записей, отсортированную по полному пути.
func (a *Aggregator) Snapshot() []records.ResultRecord {
	a.mu.Lock()
	out := make([]records.ResultRecord, len(a.results))
	copy(out, a.results)
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].File.Path < out[j].File.Path
	})
	return out
}

// Counts возвращает число записей каждого вида.
func (a *Aggregator) Counts() map[records.Kind]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[records.Kind]int, len(records.Kinds()))
	for _, rec := range a.results {
		counts[rec.Verdict.Kind()]++
	}
	return counts
}

// Missing возвращает файлы без записи, в порядке входа.
func (a *Aggregator) Missing(files []records.FileRecord) []records.FileRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	var missing []records.FileRecord
	for _, f := range files {
		if _, ok := a.index[f.Path]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
