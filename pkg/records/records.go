// Package records определяет модель данных конвейера классификации.
//
//   - FileRecord: неизменяемый снимок файла на момент обнаружения.
//   - Verdict: результат классификации (вид, уверенность, обоснование).
//   - ResultRecord: пара FileRecord + Verdict, единица экспорта.
//
// Все ResultRecord создаются только через NewResult и его теговые
// обёртки (Destroyed, Skipped, ...), поэтому каждая ветка ошибки
// даёт запись одного и того же вида.
package records

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind задаёт вид вердикта.
type Kind string

const (
	KindKeep        Kind = "KEEP"
	KindDestroy     Kind = "DESTROY"
	KindTransitory  Kind = "TRANSITORY"
	KindSkipped     Kind = "SKIPPED"
	KindError       Kind = "ERROR"
	KindNotAnalyzed Kind = "NOT_ANALYZED"
)

// Kinds возвращает все виды вердиктов в порядке вывода статистики.
func Kinds() []Kind {
	return []Kind{KindKeep, KindDestroy, KindTransitory, KindSkipped, KindError, KindNotAnalyzed}
}

// IsModelKind сообщает, может ли вид прийти от модели.
func (k Kind) IsModelKind() bool {
	switch k {
	case KindKeep, KindDestroy, KindTransitory:
		return true
	}
	return false
}

// Valid сообщает, входит ли вид в известное множество.
func (k Kind) Valid() bool {
	switch k {
	case KindKeep, KindDestroy, KindTransitory, KindSkipped, KindError, KindNotAnalyzed:
		return true
	}
	return false
}

// ParseDetermination разбирает ответ модели. Допустимы только
// TRANSITORY, DESTROY и KEEP (точное совпадение).
func ParseDetermination(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsModelKind() {
		return "", fmt.Errorf("invalid determination %q: must be TRANSITORY, DESTROY, or KEEP", s)
	}
	return k, nil
}

// Границы confidence.
const (
	MinConfidence = 0
	MaxConfidence = 100
)

// FileRecord хранит снимок метаданных файла.
type FileRecord struct {
	Path      string    // Абсолютный путь
	Name      string    // Имя файла без каталога
	Extension string    // Расширение в нижнем регистре с точкой (".txt"), пусто если нет
	Size      int64     // Размер в байтах
	ModTime   time.Time // Время последнего изменения
}

// NewFileRecord собирает FileRecord из пути и метаданных.
func NewFileRecord(path string, size int64, modTime time.Time) FileRecord {
	return FileRecord{
		Path:      path,
		Name:      filepath.Base(path),
		Extension: strings.ToLower(filepath.Ext(path)),
		Size:      size,
		ModTime:   modTime,
	}
}

// SizeKB возвращает размер в килобайтах, округлённый до двух знаков.
func (f FileRecord) SizeKB() float64 {
	kb := float64(f.Size) / 1024
	return float64(int64(kb*100+0.5)) / 100
}

// Verdict описывает вердикт по одному файлу.
//
// Поля неэкспортируемые: вердикт создаётся только NewVerdict,
// вид и уверенность всегда появляются вместе.
type Verdict struct {
	kind          Kind
	confidence    int
	justification string
}

// NewVerdict создаёт вердикт, приводя confidence к допустимому диапазону.
//
// Для KEEP/DESTROY/TRANSITORY диапазон [1,100], для остальных [0,100].
// Неизвестный вид превращается в ERROR.
func NewVerdict(kind Kind, confidence int, justification string) Verdict {
	if !kind.Valid() {
		return Verdict{
			kind:          KindError,
			confidence:    0,
			justification: fmt.Sprintf("unknown verdict kind %q: %s", kind, justification),
		}
	}

	low := MinConfidence
	if kind.IsModelKind() {
		low = 1
	}
	return Verdict{
		kind:          kind,
		confidence:    clamp(confidence, low, MaxConfidence),
		justification: justification,
	}
}

func (v Verdict) Kind() Kind            { return v.kind }
func (v Verdict) Confidence() int       { return v.confidence }
func (v Verdict) Justification() string { return v.justification }
func (v Verdict) String() string {
	return fmt.Sprintf("%s(%d): %s", v.kind, v.confidence, v.justification)
}

// ResultRecord связывает файл с его единственным вердиктом.
type ResultRecord struct {
	File    FileRecord
	Verdict Verdict
}

// NewResult собирает ResultRecord. Других конструкторов нет.
func NewResult(file FileRecord, kind Kind, confidence int, justification string) ResultRecord {
	return ResultRecord{
		File:    file,
		Verdict: NewVerdict(kind, confidence, justification),
	}
}

// WithVerdict склеивает файл с готовым вердиктом.
func WithVerdict(file FileRecord, v Verdict) ResultRecord {
	if v.kind == "" {
		v = NewVerdict(KindError, 0, "empty verdict")
	}
	return ResultRecord{File: file, Verdict: v}
}

// Обоснования детерминированных веток.
const (
	JustificationAge        = "age exceeds 6-year retention policy"
	JustificationUnreadable = "file is empty or unreadable"
	JustificationSkipped    = "analysis skipped"
	JustificationCancelled  = "run cancelled before classification"
)

// Destroyed: файл старше срока хранения.
func Destroyed(file FileRecord) ResultRecord {
	return NewResult(file, KindDestroy, MaxConfidence, JustificationAge)
}

// Skipped: неподдерживаемое расширение.
func Skipped(file FileRecord) ResultRecord {
	return NewResult(file, KindSkipped, 0, "unsupported file type: "+file.Extension)
}

// NotAnalyzed: анализ отключён флагом skip-analysis.
func NotAnalyzed(file FileRecord) ResultRecord {
	return NewResult(file, KindNotAnalyzed, 0, JustificationSkipped)
}

// Unreadable: пустой или нечитаемый файл, модель не вызывается.
func Unreadable(file FileRecord) ResultRecord {
	return NewResult(file, KindTransitory, 80, JustificationUnreadable)
}

// Failed: любая ошибка обработки файла.
func Failed(file FileRecord, err error) ResultRecord {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return NewResult(file, KindError, 0, detail)
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
