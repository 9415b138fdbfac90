// Package extract turns uploaded file bytes into indexable text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// MaxTextBytes caps the text kept per document.
const MaxTextBytes = 4 << 20

var textExtensions = map[string]bool{
	"txt": true, "md": true, "csv": true, "tsv": true, "log": true,
	"json": true, "xml": true, "html": true, "htm": true, "yaml": true,
	"yml": true, "ini": true, "cfg": true, "conf": true, "sql": true,
	"rtf": true, "properties": true,
}

// Text returns searchable text for a file. Formats without a text
// representation yield "" and no error; only the metadata is indexed then.
func Text(contentType, extension string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	switch {
	case contentType == "application/pdf" || extension == "pdf":
		return pdfText(data)
	case isTextual(contentType, extension):
		return plainText(data), nil
	default:
		return "", nil
	}
}

func isTextual(contentType, extension string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	switch contentType {
	case "application/json", "application/xml", "application/x-yaml", "application/rtf":
		return true
	}
	return textExtensions[extension]
}

// plainText decodes UTF-8, falling back to Latin-1 for legacy files.
func plainText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var s string
	if utf8.Valid(data) {
		s = string(data)
	} else {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			s = strings.ToValidUTF8(string(data), "")
		} else {
			s = string(decoded)
		}
	}
	return Sanitize(s)
}

// pdfText extracts the plain text of a PDF. The pdf package panics on
// malformed object tables; that is reported as an error.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, io.LimitReader(reader, MaxTextBytes)); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return Sanitize(buf.String()), nil
}

// Sanitize NFC-normalises s, drops control characters other than
// whitespace, and truncates to MaxTextBytes on a rune boundary.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(s) > MaxTextBytes {
		cut := MaxTextBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.TrimSpace(s)
}
