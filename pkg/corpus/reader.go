package corpus

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg"
)

// Loader reads plain-text, HTML and PDF files from a directory and
// turns them into pipeline documents.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a document loader.
func NewLoader() *Loader {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Loader{logger: logger}
}

// ReadDocuments loads every supported file in dir, in name order. The
// document id is the file name without its extension.
func (l *Loader) ReadDocuments(dir string) ([]kg.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read corpus directory")
	}

	var docs []kg.Document
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}

		var text string
		switch ext {
		case ".txt", ".md":
			text = string(content)
		case ".html", ".htm":
			text, err = extractHTML(content)
		case ".pdf":
			text, err = extractPDF(content)
		default:
			l.logger.WithField("path", path).Debug("Skipping unsupported file type")
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract text from %s", path)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			l.logger.WithField("path", path).Warn("Skipping empty document")
			continue
		}

		docs = append(docs, kg.Document{
			ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Text: text,
			Metadata: map[string]string{
				"path":   path,
				"format": strings.TrimPrefix(ext, "."),
			},
		})
	}

	l.logger.WithFields(logrus.Fields{
		"directory": dir,
		"documents": len(docs),
	}).Info("Loaded corpus documents")

	return docs, nil
}

// extractHTML returns the text content of the document body.
func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	return doc.Find("body").Text(), nil
}

// extractPDF concatenates the plain text of every readable page.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
	}

	return text.String(), nil
}
