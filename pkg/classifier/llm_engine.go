package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/retention"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// Дефолты движка.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultRetryDelay = 500 * time.Millisecond

	// hybridDestroyCap задаёт потолок уверенности DESTROY для файла моложе срока хранения.
	hybridDestroyCap = 80
)

// LLMEngine реализует Engine поверх llm.Provider.
//
// Вызов для одного файла ограничен timeout вместе со всеми повторами,
// ждёт rate limiter (если задан) и повторяется при временных ошибках
// (go-retry, экспоненциальная пауза).
type LLMEngine struct {
	provider    llm.Provider
	limiter     *rate.Limiter
	attempts    uint64
	delay       time.Duration
	timeout     time.Duration
	temperature float64
	maxTokens   int
	period      time.Duration
	now         func() time.Time
}

var _ Engine = (*LLMEngine)(nil)

// Option настраивает LLMEngine.
type Option func(*LLMEngine)

// WithTimeout задаёт бюджет модели на файл, включая повторы.
func WithTimeout(d time.Duration) Option {
	return func(e *LLMEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetry задаёт число повторов и базовую паузу.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(e *LLMEngine) {
		if attempts >= 0 {
			e.attempts = uint64(attempts)
		}
		if delay > 0 {
			e.delay = delay
		}
	}
}

// WithRateLimit ограничивает частоту вызовов (запросов в секунду).
// perSec <= 0 снимает ограничение.
func WithRateLimit(perSec float64, burst int) Option {
	return func(e *LLMEngine) {
		if perSec <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithTemperature задаёт температуру генерации.
func WithTemperature(t float64) Option {
	return func(e *LLMEngine) { e.temperature = t }
}

// WithMaxTokens ограничивает длину ответа.
func WithMaxTokens(n int) Option {
	return func(e *LLMEngine) { e.maxTokens = n }
}

// WithClock подменяет часы (для тестов гибридной уверенности).
func WithClock(now func() time.Time) Option {
	return func(e *LLMEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewLLMEngine создаёт движок поверх провайдера.
func NewLLMEngine(provider llm.Provider, opts ...Option) *LLMEngine {
	e := &LLMEngine{
		provider: provider,
		delay:    DefaultRetryDelay,
		timeout:  DefaultTimeout,
		period:   retention.RetentionPeriod,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig собирает движок по секциям run и engine конфигурации.
func NewFromConfig(provider llm.Provider, run config.RunConfig, eng config.EngineConfig, model config.ModelDef) (*LLMEngine, error) {
	eng = eng.GetDefaults()
	delay, err := time.ParseDuration(eng.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.retry_delay format: %w", err)
	}

	return NewLLMEngine(provider,
		WithTimeout(run.TaskTimeout),
		WithRetry(eng.RetryAttempts, delay),
		WithRateLimit(eng.RateLimit, eng.BurstLimit),
		WithTemperature(model.Temperature),
		WithMaxTokens(model.MaxTokens),
	), nil
}

// Classify отправляет текст модели и возвращает проверенный вердикт.
//
// Алгоритм:
//  1. Собирает system/user сообщения и схему вердикта
//  2. Вызывает провайдера с timeout, повторяя временные сбои
//  3. Извлекает и проверяет JSON ответа
//  4. Применяет гибридную уверенность: DESTROY для файла моложе
//     срока хранения ограничивается 80
func (e *LLMEngine) Classify(ctx context.Context, req Request) (records.Verdict, error) {
	fail := func(err error) (records.Verdict, error) {
		return records.Verdict{}, &EngineError{
			Path:  req.File.Path,
			Model: req.Model,
			Type:  ClassifyError(err),
			Err:   err,
		}
	}

	if req.Text == "" {
		return fail(fmt.Errorf("%w: empty input text", ErrInvalidResponse))
	}

	chatReq := llm.NewRequest(buildMessages(req),
		llm.WithModel(req.Model),
		llm.WithTemperature(e.temperature),
		llm.WithMaxTokens(e.maxTokens),
		llm.WithSchema(verdictSchemaName, &verdictSchema),
	)

	raw, err := e.call(ctx, chatReq)
	if err != nil {
		return fail(err)
	}

	kind, score, insights, err := parseAnswer(raw)
	if err != nil {
		utils.Debug("Model response rejected",
			"path", req.File.Path,
			"error", err)
		return fail(err)
	}

	if kind == records.KindDestroy && e.now().Sub(req.File.ModTime) <= e.period && score > hybridDestroyCap {
		score = hybridDestroyCap
	}

	return records.NewVerdict(kind, score, insights), nil
}

// call выполняет запрос с rate limit и повторами.
//
// timeout ограничивает весь вызов для файла: повторы и паузы backoff
// расходуют один общий бюджет. После истечения бюджета повторов нет.
func (e *LLMEngine) call(ctx context.Context, req llm.ChatRequest) (string, error) {
	backoff := retry.WithMaxRetries(e.attempts, retry.NewExponential(e.delay))

	fileCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out string
	attempt := 0
	err := retry.Do(fileCtx, backoff, func(ctx context.Context) error {
		attempt++

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		resp, err := e.provider.Chat(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			if IsTransient(err) {
				utils.Warn("Transient model error, retrying",
					"attempt", attempt,
					"type", ClassifyError(err),
					"error", err)
				return retry.RetryableError(err)
			}
			return err
		}

		out = resp
		return nil
	})
	if err != nil && ctx.Err() == nil && errors.Is(fileCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("model call timed out after %s (%d attempts): %w", e.timeout, attempt, err)
	}
	return out, err
}
