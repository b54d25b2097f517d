package classifier

import (
	"context"
	"errors"
	"strings"

	"github.com/ilkoid/records-classifier/pkg/utils"
)

// maxDetail задаёт предел текста ошибки в обосновании вердикта.
const maxDetail = 200

// ErrEngine: базовая ошибка движка классификации.
var ErrEngine = errors.New("classification engine failed")

// ErrInvalidResponse: ответ модели не соответствует схеме вердикта.
var ErrInvalidResponse = errors.New("invalid model response")

// ErrorType классифицирует ошибки для диагностики и решения о повторе.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrServer
	ErrMalformed
)

func (t ErrorType) String() string {
	switch t {
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server"
	case ErrMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// EngineError описывает ошибку классификации одного файла.
//
// Error() даёт готовое обоснование для ERROR вердикта.
type EngineError struct {
	Path  string
	Model string
	Type  ErrorType
	Err   error
}

func (e *EngineError) Error() string {
	detail := "unknown error"
	if e.Err != nil {
		detail = utils.Truncate(e.Err.Error(), maxDetail)
	}
	return "classification error: " + detail
}

func (e *EngineError) Unwrap() []error {
	return []error{ErrEngine, e.Err}
}

// ClassifyError классифицирует ошибку по типу.
//
// Анализирует цепочку и текст ошибки:
//   - ErrMalformed: ответ не прошёл проверку схемы
//   - ErrTimeout: timeout, deadline exceeded
//   - ErrNetwork: connection refused, no such host, reset
//   - ErrRateLimit: 429, Too Many Requests
//   - ErrServer: 5xx
//   - ErrUnknown: все остальные ошибки
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, ErrInvalidResponse) {
		return ErrMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	if strings.Contains(errMsgLower, "timeout") ||
		strings.Contains(errMsgLower, "deadline exceeded") {
		return ErrTimeout
	}

	if strings.Contains(errMsgLower, "connection refused") ||
		strings.Contains(errMsgLower, "no such host") ||
		strings.Contains(errMsgLower, "connection reset") ||
		strings.HasSuffix(errMsgLower, "eof") {
		return ErrNetwork
	}

	if strings.Contains(errMsg, "429") ||
		strings.Contains(errMsgLower, "too many requests") {
		return ErrRateLimit
	}

	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(errMsg, "status code: "+code) {
			return ErrServer
		}
	}

	return ErrUnknown
}

// IsTransient сообщает, имеет ли смысл повторить вызов.
// Отмена контекста вызывающим кодом повтором не лечится.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch ClassifyError(err) {
	case ErrTimeout, ErrNetwork, ErrRateLimit, ErrServer:
		return true
	default:
		return false
	}
}
