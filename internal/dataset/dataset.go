package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDField is the canonical name of the row identifier column.
const IDField = "id"

// Column describes one non-identifier column of a dataset.
type Column struct {
	Name    string
	Numeric bool
}

// Dataset is an immutable, row-ordered view of a tabular source. Every
// row-aligned slice (IDs, Matrix, cells) shares the same order.
type Dataset struct {
	Name     string
	IDs      []string
	Columns  []Column
	Features []string
	// Matrix holds one row per dataset row and one column per feature.
	// Missing numeric cells are imputed with the column mean.
	Matrix [][]float64

	cells      [][]string
	featureIdx map[string]int
	rowIdx     map[string]int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.IDs) }

// HasNumeric reports whether at least one numeric feature exists.
func (d *Dataset) HasNumeric() bool { return len(d.Features) > 0 }

// RowIndex resolves a row identifier to its position.
func (d *Dataset) RowIndex(id string) (int, bool) {
	i, ok := d.rowIdx[id]
	return i, ok
}

// Column returns the values of feature j in row order.
func (d *Dataset) Column(j int) []float64 {
	out := make([]float64, len(d.Matrix))
	for i, row := range d.Matrix {
		out[i] = row[j]
	}
	return out
}

// NonNumeric lists the names of the non-numeric columns.
func (d *Dataset) NonNumeric() []string {
	var out []string
	for _, c := range d.Columns {
		if !c.Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Record returns row i as a map keyed by column name, with the identifier
// under IDField. Numeric features are float64, everything else string.
func (d *Dataset) Record(i int) map[string]any {
	rec := make(map[string]any, len(d.Columns)+1)
	rec[IDField] = d.IDs[i]
	for j, c := range d.Columns {
		if c.Numeric {
			rec[c.Name] = d.Matrix[i][d.featureIdx[c.Name]]
			continue
		}
		rec[c.Name] = d.cells[i][j]
	}
	return rec
}

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {},
}

func isMissing(v string) bool {
	_, ok := missingTokens[strings.ToLower(v)]
	return ok
}

func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Build classifies the table's columns and produces a Dataset. The first
// column whose name equals "id" case-insensitively supplies row identifiers;
// otherwise identifiers are the zero-based row positions.
func Build(name string, t *Table) (*Dataset, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, &ParseError{Name: name, Err: errors.New("no columns to parse from file")}
	}
	seen := make(map[string]struct{}, len(t.Header))
	idCol := -1
	for j, h := range t.Header {
		if _, dup := seen[h]; dup {
			return nil, &ParseError{Name: name, Err: fmt.Errorf("duplicate column %q", h)}
		}
		seen[h] = struct{}{}
		if idCol < 0 && strings.EqualFold(h, IDField) {
			idCol = j
		}
	}

	d := &Dataset{
		Name:       name,
		IDs:        make([]string, len(t.Rows)),
		featureIdx: map[string]int{},
		rowIdx:     make(map[string]int, len(t.Rows)),
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, &ParseError{Name: name, Err: fmt.Errorf("row %d: expected %d fields, saw %d", i+1, len(t.Header), len(row))}
		}
		id := strconv.Itoa(i)
		if idCol >= 0 {
			id = row[idCol]
			if id == "" {
				return nil, &ParseError{Name: name, Err: fmt.Errorf("row %d: empty id", i+1)}
			}
		}
		if _, dup := d.rowIdx[id]; dup {
			return nil, &ParseError{Name: name, Err: fmt.Errorf("duplicate id %q", id)}
		}
		d.rowIdx[id] = i
		d.IDs[i] = id
	}

	// Per-column accumulators; a column is numeric when every present cell
	// parses and at least one does.
	type colAcc struct {
		src     int
		numeric bool
		vals    []float64
		present []bool
		sum     float64
		n       int
	}
	var accs []*colAcc
	for j, h := range t.Header {
		if j == idCol {
			continue
		}
		a := &colAcc{src: j, numeric: !strings.EqualFold(h, IDField)}
		if a.numeric {
			a.vals = make([]float64, len(t.Rows))
			a.present = make([]bool, len(t.Rows))
			for i, row := range t.Rows {
				v := row[j]
				if isMissing(v) {
					continue
				}
				x, ok := parseNumeric(v)
				if !ok {
					a.numeric = false
					break
				}
				a.vals[i], a.present[i] = x, true
				a.sum += x
				a.n++
			}
			if a.n == 0 {
				a.numeric = false
			}
		}
		accs = append(accs, a)
		d.Columns = append(d.Columns, Column{Name: h, Numeric: a.numeric})
	}

	d.cells = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(accs))
		for k, a := range accs {
			cells[k] = row[a.src]
		}
		d.cells[i] = cells
	}

	var numeric []*colAcc
	for _, a := range accs {
		if !a.numeric {
			continue
		}
		d.featureIdx[t.Header[a.src]] = len(d.Features)
		d.Features = append(d.Features, t.Header[a.src])
		numeric = append(numeric, a)
	}
	d.Matrix = make([][]float64, len(t.Rows))
	for i := range t.Rows {
		row := make([]float64, len(numeric))
		for k, a := range numeric {
			if a.present[i] {
				row[k] = a.vals[i]
			} else {
				row[k] = a.sum / float64(a.n)
			}
		}
		d.Matrix[i] = row
	}
	return d, nil
}
