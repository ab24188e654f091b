package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperlens/internal/util"
)

type Document struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	// Title comes from the PDF Info dictionary and is often empty.
	Title string `json:"title,omitempty"`
}

// Extract reads the plain text of an in-memory PDF. A document without any
// text layer fails with util.ErrNoExtractableText.
func Extract(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, fmt.Errorf("open pdf: empty input")
	}
	return read(bytes.NewReader(data), int64(len(data)))
}

func ExtractFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Document{}, fmt.Errorf("stat pdf: %w", err)
	}
	return read(f, st.Size())
}

func read(ra io.ReaderAt, size int64) (doc Document, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc, err = Document{}, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, plain); err != nil {
		return Document{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(buf.String())
	if text == "" {
		return Document{}, util.ErrNoExtractableText
	}
	return Document{
		Text:      text,
		PageCount: r.NumPage(),
		Title:     strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text()),
	}, nil
}
