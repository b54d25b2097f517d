package extract

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// extractText читает до lines строк. Невалидный UTF-8 декодируется как Latin-1.
func extractText(path string, lines, maxChars int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Байтовый предел с запасом на многобайтовые руны.
	limit := int64(maxChars) * 4
	r := bufio.NewReader(io.LimitReader(f, limit))

	var b strings.Builder
	for n := 0; lines <= 0 || n < lines; n++ {
		line, err := r.ReadString('\n')
		b.WriteString(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}

	raw := b.String()
	if utf8.ValidString(raw) {
		return strings.TrimPrefix(raw, "\uFEFF"), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().String(raw)
	if err != nil {
		return "", err
	}
	return decoded, nil
}
