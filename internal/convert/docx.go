package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

type coreXML struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// DocxToValue unpacks a docx archive into a structured value: the
// paragraph list from word/document.xml plus whatever core properties
// the document carries. Empty paragraphs are kept so callers can
// detect section breaks.
func DocxToValue(payload []byte) (map[string]any, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("convert: open docx archive: %w", err)
	}

	paragraphs, err := docxParagraphs(reader)
	if err != nil {
		return nil, err
	}
	value := map[string]any{"paragraphs": paragraphs}
	if props := docxProperties(reader); len(props) > 0 {
		value["properties"] = props
	}
	return value, nil
}

func docxParagraphs(reader *zip.Reader) ([]any, error) {
	content, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("convert: docx archive has no word/document.xml")
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("convert: parse docx document: %w", err)
	}

	paragraphs := make([]any, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, run := range para.Runs {
			for _, text := range run.Text {
				b.WriteString(text.Content)
			}
		}
		paragraphs = append(paragraphs, b.String())
	}
	return paragraphs, nil
}

func docxProperties(reader *zip.Reader) map[string]any {
	content, err := readArchiveFile(reader, "docProps/core.xml")
	if err != nil || content == nil {
		return nil
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return nil
	}

	props := map[string]any{}
	for key, val := range map[string]string{
		"title":    core.Title,
		"creator":  core.Creator,
		"created":  core.Created,
		"modified": core.Modified,
	} {
		if v := strings.TrimSpace(val); v != "" {
			props[key] = v
		}
	}
	return props
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("convert: open %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("convert: read %s: %w", name, err)
		}
		return content, nil
	}
	return nil, nil
}
