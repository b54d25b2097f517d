package pool

import (
	"context"
	"strings"
	"time"

	"github.com/ilkoid/records-classifier/pkg/classifier"
	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// TextExtractor достаёт текст файла. Реализуется extract.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, f records.FileRecord, lines int) (string, error)
}

// ClassifyTask собирает задачу классификации одного файла.
//
// Протокол:
//  1. Извлечь до lines строк текста
//  2. Пустой или нечитаемый текст → TRANSITORY 80 без вызова модели
//  3. Вызвать движок, ошибка → ERROR 0 с текстом ошибки
func ClassifyTask(x TextExtractor, eng classifier.Engine, model string, lines int) Task {
	return func(ctx context.Context, f records.FileRecord) records.ResultRecord {
		start := time.Now()

		text, err := x.Extract(ctx, f, lines)
		if err != nil {
			if ctx.Err() != nil {
				return records.NewResult(f, records.KindError, 0, records.JustificationCancelled)
			}
			utils.Warn("Text extraction failed", "path", f.Path, "error", err)
			return records.Unreadable(f)
		}
		if strings.TrimSpace(text) == "" {
			utils.Debug("Empty text, model not called", "path", f.Path)
			return records.Unreadable(f)
		}

		v, err := eng.Classify(ctx, classifier.Request{
			Model:    model,
			Text:     text,
			LinesCap: lines,
			File:     f,
		})
		if err != nil {
			utils.Warn("Classification failed",
				"path", f.Path,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return records.Failed(f, err)
		}

		utils.Info("File classified",
			"path", f.Path,
			"kind", v.Kind(),
			"confidence", v.Confidence(),
			"duration_ms", time.Since(start).Milliseconds())
		return records.WithVerdict(f, v)
	}
}
