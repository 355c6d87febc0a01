// Package table reads uploaded performance tables into named columns.
package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/go_utils"
	"github.com/pkg/errors"
)

// naValues are the cell values treated as missing.
var naValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// ParseError reports an upload that could not be read as a table.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Table is a column-indexed view of an uploaded file.
type Table struct {
	Name    string
	Headers []string
	Rows    int
	columns map[string][]string
}

// Read parses a delimited table, decompressing it first when the name
// carries a .gz, .zip or .lz4 extension.
func Read(name string, r io.Reader) (*Table, error) {
	src, inner, err := unpack(name, r)
	if err != nil {
		return nil, &ParseError{File: name, Err: err}
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, &ParseError{File: name, Err: errors.Wrap(err, "reading upload")}
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, &ParseError{File: name, Err: errors.New("file is empty")}
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = sniffDelimiter(b)
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{File: name, Err: err}
	}

	analysis := AnalyzeHeaders(records[0])
	if analysis == nil {
		return nil, &ParseError{File: name, Err: errors.New("missing header row")}
	}
	data := records[1:]
	if analysis.FirstRowIsData {
		data = records
	}

	t := &Table{
		Name:    inner,
		Headers: analysis.Headers,
		Rows:    len(data),
		columns: make(map[string][]string, len(analysis.Headers)),
	}
	for i, h := range analysis.Headers {
		col := make([]string, len(data))
		for n, row := range data {
			col[n] = row[i]
		}
		t.columns[h] = col
	}
	return t, nil
}

// Column returns the raw cells of a column, missing values included.
func (t *Table) Column(name string) ([]string, bool) {
	if col, ok := t.columns[name]; ok {
		return col, true
	}
	col, ok := t.columns[models.CanonicalAttribute(name)]
	return col, ok
}

// Values returns the non-missing cells of a column. When every remaining
// cell is numeric the values are canonicalized so that 60 and 60.0 count
// as the same category.
func (t *Table) Values(name string) ([]string, bool) {
	col, ok := t.Column(name)
	if !ok {
		return nil, false
	}
	return canonicalize(DropMissing(col)), true
}

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(v string) bool {
	return go_utils.InArray(strings.TrimSpace(v), naValues)
}

// DropMissing returns the cells that are not missing, trimmed.
func DropMissing(col []string) []string {
	out := make([]string, 0, len(col))
	for _, v := range col {
		if IsMissing(v) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func canonicalize(values []string) []string {
	nums := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return values
		}
		nums[i] = f
	}
	out := make([]string, len(values))
	for i, f := range nums {
		out[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return out
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the first line.
func sniffDelimiter(b []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(b)).ReadString('\n')
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
