// Package retention применяет детерминированное правило хранения до вызова модели.
//
// Порядок правил фиксирован: сначала возраст (старше 6 лет → DESTROY),
// затем расширение (exclude или не include → SKIPPED). Старый файл
// неподдерживаемого типа получает DESTROY, а не SKIPPED.
package retention

import (
	"strings"
	"time"

	"github.com/ilkoid/records-classifier/pkg/records"
)

// RetentionPeriod: 6 лет по 365 дней.
const RetentionPeriod = 6 * 365 * 24 * time.Hour

// Policy хранит множества расширений. Ключи в нижнем регистре с точкой.
type Policy struct {
	include map[string]struct{}
	exclude map[string]struct{}
	period  time.Duration
}

// NewPolicy строит Policy из списков расширений.
func NewPolicy(include, exclude []string) *Policy {
	return &Policy{
		include: toSet(include),
		exclude: toSet(exclude),
		period:  RetentionPeriod,
	}
}

// Expired сообщает, вышел ли файл за срок хранения на момент now.
func (p *Policy) Expired(now time.Time, f records.FileRecord) bool {
	return now.Sub(f.ModTime) > p.period
}

// Supported сообщает, подлежит ли расширение анализу моделью.
func (p *Policy) Supported(ext string) bool {
	ext = strings.ToLower(ext)
	if _, excluded := p.exclude[ext]; excluded {
		return false
	}
	_, included := p.include[ext]
	return included
}

// Decide классифицирует файл без модели.
//
// Возвращает (запись, true) для решённых файлов и (_, false) для
// файлов, которые нужно отдать воркерам.
func (p *Policy) Decide(now time.Time, f records.FileRecord) (records.ResultRecord, bool) {
	if p.Expired(now, f) {
		return records.Destroyed(f), true
	}
	if !p.Supported(f.Extension) {
		return records.Skipped(f), true
	}
	return records.ResultRecord{}, false
}

// Split делит файлы на решённые и требующие проверки моделью.
// Порядок внутри каждой группы совпадает с порядком входа.
func (p *Policy) Split(now time.Time, files []records.FileRecord) (decided []records.ResultRecord, reviewable []records.FileRecord) {
	for _, f := range files {
		if r, ok := p.Decide(now, f); ok {
			decided = append(decided, r)
			continue
		}
		reviewable = append(reviewable, f)
	}
	return decided, reviewable
}

// Stats содержит счётчики по категориям.
type Stats struct {
	Total   int
	Destroy int
	Skip    int
	Analyze int
}

// Count считает категории без построения записей.
func (p *Policy) Count(now time.Time, files []records.FileRecord) Stats {
	var s Stats
	for _, f := range files {
		s.Total++
		switch {
		case p.Expired(now, f):
			s.Destroy++
		case !p.Supported(f.Extension):
			s.Skip++
		default:
			s.Analyze++
		}
	}
	return s
}

func toSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}
