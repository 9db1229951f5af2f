package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is the undecoded content of a tabular source: a header and raw cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Reader decodes one family of tabular sources.
type Reader interface {
	CanRead(name string) bool
	Read(r io.Reader) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// readerFor selects a reader by file name, falling back to comma-separated text.
func readerFor(name string) Reader {
	for _, r := range registry {
		if r.CanRead(name) {
			return r
		}
	}
	return delimitedReader{comma: ','}
}

// supported reports whether any registered reader claims the file name.
func supported(name string) bool {
	for _, r := range registry {
		if r.CanRead(name) {
			return true
		}
	}
	return false
}

type delimitedReader struct {
	ext   string
	comma rune
}

func (d delimitedReader) CanRead(name string) bool {
	return d.ext != "" && strings.HasSuffix(strings.ToLower(name), d.ext)
}

func (d delimitedReader) Read(src io.Reader) (*Table, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = d.comma

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && ncol > 1 {
			continue
		}
		if len(rec) > ncol {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", len(t.Rows)+1, ncol, len(rec))
		}
		row := make([]string, ncol)
		for j := range rec {
			row[j] = strings.TrimSpace(rec[j])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func init() {
	Register(delimitedReader{ext: ".csv", comma: ','})
	Register(delimitedReader{ext: ".tsv", comma: '\t'})
}
