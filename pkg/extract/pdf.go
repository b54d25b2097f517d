package extract

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFPages ограничивает число читаемых страниц, классификации хватает начала.
const maxPDFPages = 20

// extractPDF собирает plain text страниц, пока не наберётся maxChars.
func extractPDF(ctx context.Context, path string, maxChars int) (text string, err error) {
	// ledongthuc/pdf паникует на части битых файлов.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &panicError{value: r}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteByte('\n')

		if b.Len() >= maxChars {
			break
		}
	}

	return b.String(), nil
}
