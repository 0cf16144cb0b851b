package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/mudler/xlog"
	"jaytaylor.com/html2text"
)

var (
	// ErrNotFound is returned when a path resolves to neither a file nor a
	// directory.
	ErrNotFound = errors.New("file or directory not found")

	// ErrUnsupportedType is returned when the configured file type has no
	// loader.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Loader reads files of one declared type and splits their text into
// chunks. Directory paths are processed recursively, taking every file
// whose extension matches the declared type.
type Loader struct {
	fileType string
	splitter *Splitter
}

var extractors = map[string]func(path string) (string, error){
	"pdf":  extractPDF,
	"txt":  extractPlain,
	"md":   extractPlain,
	"html": extractHTML,
}

// NewLoader returns a loader for the given file type.
func NewLoader(fileType string, splitter *Splitter) *Loader {
	return &Loader{fileType: strings.ToLower(fileType), splitter: splitter}
}

// Load chunks the file or directory at path. The file-type check runs
// before any file I/O.
func (l *Loader) Load(path string) ([]Document, error) {
	extract, ok := extractors[l.fileType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, l.fileType)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if !info.IsDir() {
		return l.loadFile(path, extract)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), "."+l.fileType) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", path, err)
	}
	sort.Strings(files)

	var docs []Document
	for _, f := range files {
		fileDocs, err := l.loadFile(f, extract)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}

	xlog.Info("Loaded documents", "path", path, "files", len(files), "chunks", len(docs))
	return docs, nil
}

func (l *Loader) loadFile(path string, extract func(string) (string, error)) ([]Document, error) {
	text, err := extract(path)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	return l.splitter.Split(text, path), nil
}

func extractPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func extractPlain(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extractHTML(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return html2text.FromString(string(content), html2text.Options{PrettyTables: true})
}
