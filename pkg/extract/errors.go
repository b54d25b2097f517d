package extract

import "fmt"

// panicError хранит панику парсера, превращённая в ошибку.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("parser panic: %v", e.value)
}
