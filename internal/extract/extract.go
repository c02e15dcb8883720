package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Class groups upload mime types by how the pipeline treats them.
type Class int

const (
	// ClassBinary payloads are forwarded as opaque attachments only.
	ClassBinary Class = iota
	// ClassText payloads are decoded and inlined into the prompt text.
	ClassText
	// ClassDocument payloads are forwarded as attachments; their text is
	// also extracted for text-only consumers.
	ClassDocument
)

var ErrUnsupported = errors.New("unsupported mime type")

var textExtensions = map[string]struct{}{
	".txt": {}, ".csv": {}, ".tsv": {}, ".md": {}, ".markdown": {},
	".json": {}, ".xml": {}, ".log": {}, ".html": {}, ".htm": {},
}

// Classify decides the class of an upload from its declared mime type,
// falling back to the file extension when the type is missing or generic.
func Classify(mimeType, fileName string, data []byte) Class {
	clean := NormalizeMimeType(mimeType, fileName, data)
	switch {
	case strings.HasPrefix(clean, "text/"):
		return ClassText
	case clean == "application/json", clean == "application/csv", clean == "application/xml",
		clean == "application/x-ndjson", clean == "application/x-yaml":
		return ClassText
	case clean == MimePDF, clean == MimeDOCX:
		return ClassDocument
	case clean == "", clean == "application/octet-stream":
		if _, ok := textExtensions[strings.ToLower(filepath.Ext(fileName))]; ok && utf8.Valid(data) {
			return ClassText
		}
	}
	return ClassBinary
}

// DecodeText turns a text-class payload into a UTF-8 string, dropping a
// byte-order mark and replacing invalid sequences.
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Text extracts plain text from a PDF or DOCX payload.
func Text(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := NormalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case MimePDF:
		return extractPDF(data)
	case MimeDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
}

func extractPDF(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// NormalizeMimeType strips parameters and resolves generic zip uploads to
// the OOXML type they contain.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(fileName)) {
		case ".pdf":
			return MimePDF
		case ".docx":
			return MimeDOCX
		}
	}
	if clean != "application/zip" {
		return clean
	}
	if mapOOXMLFromZip(data) == MimeDOCX || strings.EqualFold(filepath.Ext(fileName), ".docx") {
		return MimeDOCX
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return MimeDOCX
		}
	}
	return ""
}
