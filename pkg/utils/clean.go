// Package utils предоставляет вспомогательные функции для обработки данных.
//
// Включает утилиты для очистки ответов LLM от markdown-обёртки,
// извлечения JSON-объекта вердикта и нормализации извлечённого текста.
package utils

import (
	"regexp"
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Локальные модели часто возвращают JSON обёрнутым в кодовый блок:
//
//	```json
//	{"modelDetermination": "KEEP"}
//	```
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// flatObject находит первый JSON-объект без вложенных фигурных скобок.
// Вердикт модели плоский, вложенность означает мусор вокруг ответа.
var flatObject = regexp.MustCompile(`(?s)\{[^{}]*\}`)

// ExtractJSON находит первый плоский JSON-объект в тексте.
//
// Возвращает пустую строку если объект не найден.
// Не валидирует JSON, для валидации используйте json.Unmarshal().
func ExtractJSON(s string) string {
	return flatObject.FindString(s)
}

var (
	lineBreaks = regexp.MustCompile(`[\r\n]+`)
	blanks     = regexp.MustCompile(`[ \t]+`)
)

// CollapseWhitespace схлопывает переводы строк и пробелы, обрезает края.
//
// Применяется к тексту, извлечённому из документов перед отправкой модели.
func CollapseWhitespace(s string) string {
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = blanks.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate обрезает строку до max рун.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
