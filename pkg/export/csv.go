// Package export сериализует результаты прогона в CSV.
//
// Файл пишется во временный файл рядом с целевым и переименовывается,
// поэтому неудачный экспорт не оставляет обрезанного файла.
// Результаты в памяти не изменяются, экспорт можно повторить в другой путь.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ilkoid/records-classifier/pkg/records"
)

// ErrExport: базовая ошибка экспорта.
var ErrExport = errors.New("export failed")

// ExportError возвращается, когда экспорт в Path не удался.
type ExportError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *ExportError) Unwrap() []error {
	return []error{ErrExport, e.Err}
}

// Header перечисляет колонки CSV.
var Header = []string{
	"FileName",
	"Extension",
	"FullPath",
	"LastModified",
	"SizeKB",
	"ModelDetermination",
	"ConfidenceScore",
	"ContextualInsights",
}

// CSV пишет результаты в CSV.
type CSV struct {
	// Location задаёт часовой пояс колонки LastModified (по умолчанию time.Local).
	Location *time.Location
}

// NewCSV создаёт экспортёр с локальным временем.
func NewCSV() *CSV {
	return &CSV{Location: time.Local}
}

// Write записывает результаты в path.
//
// Каталог path создаётся при необходимости. Любой сбой возвращается
// как *ExportError.
func (c *CSV) Write(path string, results []records.ResultRecord) error {
	if path == "" {
		return &ExportError{Path: path, Op: "validate", Err: errors.New("empty output path")}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ExportError{Path: path, Op: "create directory", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &ExportError{Path: path, Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()

	if err := c.Encode(tmp, results); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &ExportError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &ExportError{Path: path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &ExportError{Path: path, Op: "close", Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &ExportError{Path: path, Op: "chmod", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &ExportError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

// Encode пишет заголовок и строки результатов в w.
func (c *CSV) Encode(w io.Writer, results []records.ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range results {
		if err := cw.Write(c.row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (c *CSV) row(rec records.ResultRecord) []string {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return []string{
		rec.File.Name,
		rec.File.Extension,
		rec.File.Path,
		rec.File.ModTime.In(loc).Format(time.RFC3339),
		strconv.FormatFloat(rec.File.SizeKB(), 'f', 2, 64),
		string(rec.Verdict.Kind()),
		strconv.Itoa(rec.Verdict.Confidence()),
		rec.Verdict.Justification(),
	}
}
