// Package extract достаёт текст из файла для отправки классификатору.
//
// Стратегия выбирается по расширению с проверкой сигнатуры (h2non/filetype):
//   - .pdf: текст страниц через ledongthuc/pdf
//   - .docx/.xlsx/.pptx/.odt: символьные данные XML-частей zip-контейнера
//   - остальное: первые N строк как текст (UTF-8, иначе Latin-1)
//
// Любой сбой чтения/конвертации возвращается как *ExtractionError.
// Пустой результат ошибкой не считается: решение принимает вызывающий код.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// DefaultMaxChars задаёт предел текста на файл после извлечения.
const DefaultMaxChars = 4000

// sniffSize: сколько байт читается для определения сигнатуры.
const sniffSize = 262

// ErrExtraction: базовая ошибка извлечения текста.
var ErrExtraction = errors.New("text extraction failed")

// ExtractionError описывает ошибку извлечения текста одного файла.
type ExtractionError struct {
	Path   string
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s text from %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// Format задаёт способ извлечения.
type Format string

const (
	FormatText   Format = "text"
	FormatPDF    Format = "pdf"
	FormatOffice Format = "office"
)

// Extractor извлекает текст из файлов. Безопасен для параллельного использования.
type Extractor struct {
	MaxChars int
}

// New создаёт Extractor с пределом DefaultMaxChars.
func New() *Extractor {
	return &Extractor{MaxChars: DefaultMaxChars}
}

// FormatFor выбирает способ извлечения по расширению.
func FormatFor(ext string) Format {
	switch strings.ToLower(ext) {
	case ".pdf":
		return FormatPDF
	case ".docx", ".xlsx", ".pptx", ".odt":
		return FormatOffice
	default:
		return FormatText
	}
}

// Extract возвращает до lines строк очищенного текста файла.
//
// При lines <= 0 строки не ограничиваются (действует только MaxChars).
func (e *Extractor) Extract(ctx context.Context, file records.FileRecord, lines int) (string, error) {
	format := FormatFor(file.Extension)

	if err := ctx.Err(); err != nil {
		return "", &ExtractionError{Path: file.Path, Format: string(format), Err: err}
	}

	if file.Size == 0 {
		return "", nil
	}

	head, err := readHead(file.Path)
	if err != nil {
		return "", &ExtractionError{Path: file.Path, Format: string(format), Err: err}
	}
	if err := checkSignature(format, head); err != nil {
		return "", &ExtractionError{Path: file.Path, Format: string(format), Err: err}
	}

	var raw string
	switch format {
	case FormatPDF:
		raw, err = extractPDF(ctx, file.Path, e.maxChars())
	case FormatOffice:
		raw, err = extractOffice(ctx, file.Path, e.maxChars())
	default:
		raw, err = extractText(file.Path, lines, e.maxChars())
	}
	if err != nil {
		return "", &ExtractionError{Path: file.Path, Format: string(format), Err: err}
	}

	text := utils.CollapseWhitespace(raw)
	text = firstLines(text, lines)
	return utils.Truncate(text, e.maxChars()), nil
}

func (e *Extractor) maxChars() int {
	if e.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return e.MaxChars
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// checkSignature отсекает файлы, содержимое которых не совпадает с расширением.
func checkSignature(format Format, head []byte) error {
	switch format {
	case FormatPDF:
		kind, _ := filetype.Match(head)
		if kind.Extension != "pdf" {
			return fmt.Errorf("not a PDF document (detected %q)", describe(head))
		}
	case FormatOffice:
		if !filetype.IsArchive(head) && !filetype.IsDocument(head) {
			return fmt.Errorf("not a zip-based document (detected %q)", describe(head))
		}
	default:
		// RTF распознаётся как документ, но читается как текст.
		kind, _ := filetype.Match(head)
		if kind != filetype.Unknown && kind.Extension != "rtf" {
			return fmt.Errorf("binary content in text file (detected %q)", kind.MIME.Value)
		}
	}
	return nil
}

func describe(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "unknown"
	}
	return kind.MIME.Value
}

// firstLines оставляет не более n строк.
func firstLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	idx := 0
	for i := 0; i < n; i++ {
		next := strings.IndexByte(s[idx:], '\n')
		if next < 0 {
			return s
		}
		idx += next + 1
	}
	return strings.TrimRight(s[:idx], "\n")
}
