// Package runner проводит один полный прогон классификации.
//
// Порядок фиксирован: поиск файлов → правило хранения (все решения до
// первого вызова модели) → пул воркеров → проверка полноты → экспорт →
// зеркало в S3. Ошибка одного файла превращается в запись ERROR,
// прогон прерывают только ошибки поиска и экспорта.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/records-classifier/pkg/aggregate"
	"github.com/ilkoid/records-classifier/pkg/catalog"
	"github.com/ilkoid/records-classifier/pkg/classifier"
	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/events"
	"github.com/ilkoid/records-classifier/pkg/export"
	"github.com/ilkoid/records-classifier/pkg/extract"
	"github.com/ilkoid/records-classifier/pkg/pool"
	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/retention"
	"github.com/ilkoid/records-classifier/pkg/s3storage"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// ErrNoEngine: анализ включён, но движок не передан.
var ErrNoEngine = errors.New("classification engine is required unless skip_analysis is set")

// ErrNoResults: повторять экспорт нечего.
var ErrNoResults = errors.New("no results to export")

// MirrorTimeout ограничивает загрузку экспорта в S3.
var MirrorTimeout = 2 * time.Minute

// errNoRecord: у файла не оказалось записи после всех веток.
var errNoRecord = errors.New("no result recorded for file")

// Exporter записывает результаты. Реализуется export.CSV.
type Exporter interface {
	Write(path string, results []records.ResultRecord) error
}

// Deps собирает внешние зависимости прогона. Нулевые поля получают дефолты.
type Deps struct {
	Catalog   *catalog.Catalog
	Extractor pool.TextExtractor
	Engine    classifier.Engine
	Exporter  Exporter
	Mirror    s3storage.Uploader // nil: без зеркала
	Emitter   events.Emitter
	Now       func() time.Time
	CPUs      int
}

// Summary описывает итог прогона.
type Summary struct {
	RunID     string
	Root      string
	Output    string
	StartedAt time.Time
	Duration  time.Duration

	Total    int // Найдено файлов
	Decided  int // Решено правилом хранения
	Reviewed int // Передано воркерам (или NOT_ANALYZED)
	Parallel int // Лимит пула

	Counts    map[records.Kind]int
	Results   []records.ResultRecord // Отсортированы по пути
	Cancelled bool

	MirrorKey string // Ключ в S3, пусто если зеркало не использовалось
}

// Runner выполняет прогоны с неизменяемой конфигурацией.
type Runner struct {
	cfg    config.RunConfig
	deps   Deps
	policy *retention.Policy

	last atomic.Pointer[Summary]
}

// New создаёт Runner. cfg копируется и дальше только читается.
func New(cfg config.RunConfig, deps Deps) *Runner {
	cfg = cfg.GetDefaults()

	if deps.Catalog == nil {
		deps.Catalog = catalog.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewCSV()
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NopEmitter{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CPUs <= 0 {
		deps.CPUs = runtime.NumCPU()
	}

	return &Runner{
		cfg:    cfg,
		deps:   deps,
		policy: retention.NewPolicy(cfg.IncludeExt, cfg.ExcludeExt),
	}
}

// Config возвращает конфигурацию прогона.
func (r *Runner) Config() config.RunConfig { return r.cfg }

// Run выполняет прогон.
//
// Ошибка поиска возвращается без Summary. Ошибка экспорта возвращается
// вместе с Summary: результаты сохранены, можно вызвать RetryExport.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.cfg.SkipAnalysis && r.deps.Engine == nil {
		return nil, ErrNoEngine
	}

	start := time.Now()
	sum := &Summary{
		RunID:     uuid.NewString(),
		Root:      r.cfg.Root,
		Output:    r.cfg.Output,
		StartedAt: r.deps.Now(),
	}

	utils.Info("Run started",
		"run_id", sum.RunID,
		"root", r.cfg.Root,
		"model", r.cfg.Model,
		"skip_analysis", r.cfg.SkipAnalysis)

	files, err := r.deps.Catalog.Collect(r.cfg.Root)
	if err != nil {
		utils.Error("File discovery failed", "root", r.cfg.Root, "error", err)
		return nil, err
	}

	decided, reviewable := r.policy.Split(r.deps.Now(), files)
	sum.Total = len(files)
	sum.Decided = len(decided)
	sum.Reviewed = len(reviewable)

	emitCtx := context.WithoutCancel(ctx)
	r.deps.Emitter.Emit(emitCtx, events.Event{
		Type: events.EventStarted,
		Data: events.StartedData{
			RunID:    sum.RunID,
			Total:    sum.Total,
			Decided:  sum.Decided,
			Reviewed: sum.Reviewed,
		},
		Timestamp: time.Now(),
	})

	agg := aggregate.New(len(files))
	var processed atomic.Int64
	add := func(rec records.ResultRecord) {
		if err := agg.Add(rec); err != nil {
			utils.Error("Result rejected", "path", rec.File.Path, "error", err)
			return
		}
		n := processed.Add(1)
		r.deps.Emitter.Emit(emitCtx, events.Progress(int(n), sum.Total, rec))
	}

	for _, rec := range decided {
		add(rec)
	}

	if r.cfg.SkipAnalysis {
		for _, f := range reviewable {
			add(records.NotAnalyzed(f))
		}
	} else if len(reviewable) > 0 {
		sum.Parallel = pool.EffectiveLimit(r.cfg.MaxParallel, r.deps.CPUs)
		utils.Info("Dispatching files", "count", len(reviewable), "parallel", sum.Parallel)

		p := pool.New(sum.Parallel, pool.ClassifyTask(r.deps.Extractor, r.deps.Engine, r.cfg.Model, r.cfg.LinesPerFile))
		if err := p.Run(ctx, reviewable, add); err != nil {
			sum.Cancelled = true
		}
		utils.Debug("Pool finished", "max_in_flight", p.MaxInFlight())
	}

	for _, f := range agg.Missing(files) {
		utils.Error("File has no result", "path", f.Path)
		add(records.Failed(f, errNoRecord))
	}

	sum.Results = agg.Snapshot()
	sum.Counts = agg.Counts()
	r.last.Store(sum)

	if err := r.deps.Exporter.Write(r.cfg.Output, sum.Results); err != nil {
		sum.Duration = time.Since(start)
		utils.Error("Export failed", "output", r.cfg.Output, "error", err)
		r.done(emitCtx, sum, err)
		return sum, err
	}
	utils.Info("Results exported", "output", r.cfg.Output, "rows", len(sum.Results))

	r.mirror(emitCtx, sum)

	sum.Duration = time.Since(start)
	utils.Info("Run finished",
		"run_id", sum.RunID,
		"total", sum.Total,
		"duration_ms", sum.Duration.Milliseconds(),
		"cancelled", sum.Cancelled)
	r.done(emitCtx, sum, nil)

	return sum, nil
}

// RetryExport повторяет экспорт результатов последнего прогона в path.
func (r *Runner) RetryExport(path string) error {
	sum := r.last.Load()
	if sum == nil {
		return ErrNoResults
	}
	if err := r.deps.Exporter.Write(path, sum.Results); err != nil {
		utils.Error("Export retry failed", "output", path, "error", err)
		return err
	}
	sum.Output = path
	utils.Info("Results exported", "output", path, "rows", len(sum.Results))
	return nil
}

// Scan считает категории без вызова модели и без экспорта.
func (r *Runner) Scan() (retention.Stats, error) {
	files, err := r.deps.Catalog.Collect(r.cfg.Root)
	if err != nil {
		return retention.Stats{}, err
	}
	return r.policy.Count(r.deps.Now(), files), nil
}

// mirror загружает экспорт в S3. Сбой только логируется.
//
// ctx не должен отменяться вместе с прогоном: после SIGINT экспорт
// уже записан, и его копия всё равно уходит в бакет за MirrorTimeout.
func (r *Runner) mirror(ctx context.Context, sum *Summary) {
	if r.deps.Mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, MirrorTimeout)
	defer cancel()

	key := r.deps.Mirror.Key(sum.RunID, sum.Output)
	info, err := r.deps.Mirror.Upload(ctx, key, sum.Output)
	if err != nil {
		utils.Warn("Export mirror upload failed", "key", key, "error", err)
		return
	}
	sum.MirrorKey = info.Key
	utils.Info("Export mirrored", "bucket", info.Bucket, "key", info.Key, "size", info.Size)
}

func (r *Runner) done(ctx context.Context, sum *Summary, err error) {
	r.deps.Emitter.Emit(ctx, events.Event{
		Type:      events.EventDone,
		Data:      events.DoneData{Total: sum.Total, Duration: sum.Duration, Err: err},
		Timestamp: time.Now(),
	})
}

// String форматирует краткую сводку для stdout.
func (s *Summary) String() string {
	return fmt.Sprintf("files=%d keep=%d destroy=%d transitory=%d skipped=%d not_analyzed=%d error=%d duration=%s",
		s.Total,
		s.Counts[records.KindKeep],
		s.Counts[records.KindDestroy],
		s.Counts[records.KindTransitory],
		s.Counts[records.KindSkipped],
		s.Counts[records.KindNotAnalyzed],
		s.Counts[records.KindError],
		s.Duration.Round(time.Millisecond))
}
