package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
)

var (
	slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	sheetPart = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)
)

// paragraphEnd перечисляет элементы, после которых ставится перевод строки:
// абзацы WordprocessingML/DrawingML/ODF, строки shared strings и листов.
var paragraphEnd = map[string]bool{
	"p":   true,
	"si":  true,
	"tr":  true,
	"h":   true,
	"row": true,
}

// extractOffice читает символьные данные текстовых частей OOXML/ODF.
func extractOffice(ctx context.Context, path string, maxChars int) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	parts := textParts(zr.File)
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts found in document")
	}

	var b bytes.Buffer
	for _, f := range parts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		readXMLText(&b, rc, maxChars*8)
		rc.Close()

		if b.Len() >= maxChars {
			break
		}
	}

	return b.String(), nil
}

// textParts отбирает текстовые части в порядке чтения документа.
func textParts(files []*zip.File) []*zip.File {
	type ranked struct {
		f    *zip.File
		rank int
		n    int
	}
	var picked []ranked

	for _, f := range files {
		switch name := f.Name; {
		case name == "word/document.xml", name == "content.xml":
			picked = append(picked, ranked{f, 0, 0})
		case name == "xl/sharedStrings.xml":
			picked = append(picked, ranked{f, 1, 0})
		case slidePart.MatchString(name):
			picked = append(picked, ranked{f, 2, partNumber(slidePart, name)})
		case sheetPart.MatchString(name):
			picked = append(picked, ranked{f, 3, partNumber(sheetPart, name)})
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].rank != picked[j].rank {
			return picked[i].rank < picked[j].rank
		}
		return picked[i].n < picked[j].n
	})

	out := make([]*zip.File, len(picked))
	for i, p := range picked {
		out[i] = p.f
	}
	return out
}

func partNumber(re *regexp.Regexp, name string) int {
	m := re.FindStringSubmatch(name)
	n, _ := strconv.Atoi(m[1])
	return n
}

// readXMLText дописывает в buf текст XML-потока, не больше limit байт входа.
//
// В листах xlsx значения ячеек t="s" содержат индексы sharedStrings,
// а <f> формулы: ни то ни другое в текст не попадает.
func readXMLText(buf *bytes.Buffer, r io.Reader, limit int) {
	decoder := xml.NewDecoder(io.LimitReader(r, int64(limit)))
	sharedCell := false
	skip := 0
	for {
		token, err := decoder.Token()
		if err != nil {
			return
		}
		switch t := token.(type) {
		case xml.CharData:
			if skip == 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			switch {
			case skip > 0:
				skip--
			case t.Name.Local == "c":
				sharedCell = false
			}
			if skip == 0 && paragraphEnd[t.Name.Local] {
				buf.WriteByte('\n')
			}
		case xml.StartElement:
			if skip > 0 {
				skip++
				continue
			}
			switch t.Name.Local {
			case "tab", "tc", "c":
				// Табуляции и ячейки таблиц разделяем пробелом.
				separate(buf)
				if t.Name.Local == "c" {
					sharedCell = attr(t, "t") == "s"
				}
			case "v":
				if sharedCell {
					skip = 1
				}
			case "f":
				skip = 1
			}
		}
	}
}

// separate ставит пробел, если buf не кончается пробелом или переводом строки.
func separate(buf *bytes.Buffer) {
	if buf.Len() == 0 {
		return
	}
	if last := buf.Bytes()[buf.Len()-1]; last != ' ' && last != '\n' {
		buf.WriteByte(' ')
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
