// Package catalog перечисляет файлы-кандидаты под корневой директорией.
//
// Scan сначала проверяет корень (DiscoveryError при ошибке), затем
// возвращает ленивую последовательность FileRecord через filepath.WalkDir.
// Нечитаемые элементы пропускаются с WARN в лог, обход не прерывается.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// ErrDiscovery возвращается, когда корень не существует, недоступен или не является директорией.
var ErrDiscovery = errors.New("discovery failed")

// DiscoveryError описывает фатальную ошибку обнаружения файлов.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error for %s: %v", e.Root, e.Err)
}

// Unwrap поддерживает errors.Is(err, ErrDiscovery) и исходную причину.
func (e *DiscoveryError) Unwrap() []error {
	return []error{ErrDiscovery, e.Err}
}

// Catalog обходит дерево файловой системы.
type Catalog struct {
	// IncludeHidden отключает пропуск скрытых файлов и lock-файлов Office (~$).
	IncludeHidden bool
}

// New создаёт Catalog с настройками по умолчанию.
func New() *Catalog {
	return &Catalog{}
}

// Scan проверяет корень и возвращает последовательность файлов.
//
// Последовательность конечна, каждый обычный файл встречается не более
// одного раза. Симлинки внутри дерева не разыменовываются, корень-симлинк
// разрешается до обхода, и пути файлов строятся от разрешённого корня.
// Порядок лексический
// порядок WalkDir, но вызывающий код не должен на него полагаться.
func (c *Catalog) Scan(root string) (iter.Seq[records.FileRecord], error) {
	abs, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	seq := func(yield func(records.FileRecord) bool) {
		_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if path == abs {
					utils.Error("Root became unreadable during scan", "root", abs, "error", walkErr)
					return fs.SkipAll
				}
				utils.Warn("Skipping unreadable entry", "path", path, "error", walkErr)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !c.IncludeHidden && isHidden(d.Name()) {
				utils.Debug("Skipping hidden file", "path", path)
				return nil
			}

			info, err := d.Info()
			if err != nil {
				utils.Warn("Skipping file without metadata", "path", path, "error", err)
				return nil
			}

			if !yield(records.NewFileRecord(path, info.Size(), info.ModTime())) {
				return fs.SkipAll
			}
			return nil
		})
	}

	return seq, nil
}

// Collect материализует последовательность Scan в срез.
func (c *Catalog) Collect(root string) ([]records.FileRecord, error) {
	seq, err := c.Scan(root)
	if err != nil {
		return nil, err
	}
	var files []records.FileRecord
	for f := range seq {
		files = append(files, f)
	}
	return files, nil
}

// checkRoot возвращает абсолютный путь корня без симлинков или DiscoveryError.
func checkRoot(root string) (string, error) {
	if root == "" {
		return "", &DiscoveryError{Root: root, Err: errors.New("root path is empty")}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &DiscoveryError{Root: root, Err: err}
	}

	// WalkDir не заходит в корень-симлинк, поэтому корень разрешается заранее.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &DiscoveryError{Root: abs, Err: fmt.Errorf("directory does not exist: %w", err)}
		}
		return "", &DiscoveryError{Root: abs, Err: err}
	}
	abs = resolved

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &DiscoveryError{Root: abs, Err: fmt.Errorf("directory does not exist: %w", err)}
		}
		return "", &DiscoveryError{Root: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &DiscoveryError{Root: abs, Err: errors.New("path is not a directory")}
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", &DiscoveryError{Root: abs, Err: err}
	}
	f.Close()

	return abs, nil
}

// isHidden отсекает dot-файлы и lock-файлы Office.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
