package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/entropy_analyzer/entropy"
	"github.com/pkg/errors"
)

// Columns returns the header written for records: file name, identifier,
// entropy, score and distinct count columns per attribute, then the composites.
func Columns(records []models.Record) []string {
	union := make(map[string]struct{})
	for _, r := range records {
		for a := range r.Metrics {
			union[a] = struct{}{}
		}
	}
	attrs := models.OrderAttributes(union)

	cols := []string{models.ColFileName, models.ColUniqueID}
	for _, a := range attrs {
		cols = append(cols, a+models.EntropySuffix)
	}
	for _, a := range attrs {
		cols = append(cols, a+models.ScoreSuffix)
	}
	for _, a := range attrs {
		cols = append(cols, a+models.DistinctSuffix)
	}
	return append(cols, models.ColMDS, models.ColTDS, models.ColOverallScore)
}

// EncodeCSV writes records as a delimited table with a header row.
func EncodeCSV(w io.Writer, records []models.Record) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, r := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cell(r, c)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing record %s", r.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func cell(r models.Record, col string) string {
	switch col {
	case models.ColFileName:
		return r.FileName
	case models.ColUniqueID:
		return r.ID
	case models.ColMDS:
		return formatNullable(r.MDS)
	case models.ColTDS:
		return formatNullable(r.TDS)
	case models.ColOverallScore:
		return formatNullable(r.Overall)
	}
	attr, field := metricColumn(col)
	m, ok := r.Metrics[attr]
	if field == 0 || !ok || !m.Has(field) {
		return ""
	}
	switch field {
	case models.FieldEntropy:
		return formatFloat(m.Entropy)
	case models.FieldScore:
		return formatFloat(m.Score)
	}
	return strconv.Itoa(m.Distinct)
}

// metricColumn splits a per-attribute column name into the attribute and
// the metric field it holds. field is 0 for other columns.
func metricColumn(col string) (string, models.MetricField) {
	if attr, ok := strings.CutSuffix(col, models.EntropySuffix); ok {
		return attr, models.FieldEntropy
	}
	if attr, ok := strings.CutSuffix(col, models.ScoreSuffix); ok {
		return attr, models.FieldScore
	}
	if attr, ok := strings.CutSuffix(col, models.DistinctSuffix); ok {
		return attr, models.FieldDistinct
	}
	return "", 0
}

// DecodeCSV parses a table written by EncodeCSV. Files written before
// records carried identifiers decode with an empty ID. Metric fields without
// a cell are marked missing, except a score that can be derived from the
// entropy and distinct count of the same row.
func DecodeCSV(r io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Record{}, nil
	}

	header := rows[0]
	fileIdx := -1
	for i, h := range header {
		if h == models.ColFileName {
			fileIdx = i
		}
	}
	if fileIdx < 0 {
		return nil, errors.Errorf("missing %s column", models.ColFileName)
	}

	records := make([]models.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := models.Record{Metrics: make(map[string]models.Metric)}
		for i, h := range header {
			if err := decodeCell(&rec, h, row[i]); err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", n+2, h)
			}
		}
		for attr, m := range rec.Metrics {
			if !m.Has(models.FieldScore) && m.Has(models.FieldEntropy|models.FieldDistinct) {
				m.Score = entropy.ComputeScore(m.Entropy, m.Distinct)
				m.Missing &^= models.FieldScore
				rec.Metrics[attr] = m
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeCell(rec *models.Record, col, v string) error {
	switch col {
	case models.ColFileName:
		rec.FileName = v
		return nil
	case models.ColUniqueID:
		rec.ID = strings.TrimSpace(v)
		return nil
	case models.ColMDS:
		return parseNullable(v, &rec.MDS)
	case models.ColTDS:
		return parseNullable(v, &rec.TDS)
	case models.ColOverallScore:
		return parseNullable(v, &rec.Overall)
	}

	attr, field := metricColumn(col)
	v = strings.TrimSpace(v)
	if field == 0 || v == "" {
		return nil
	}
	m, ok := rec.Metrics[attr]
	if !ok {
		m.Missing = models.AllMetricFields
	}
	if field == models.FieldDistinct {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		m.Distinct = n
	} else {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if field == models.FieldEntropy {
			m.Entropy = f
		} else {
			m.Score = f
		}
	}
	m.Missing &^= field
	rec.Metrics[attr] = m
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatNullable(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func parseNullable(v string, dst **float64) error {
	v = strings.TrimSpace(v)
	if v == "" {
		*dst = nil
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = &f
	return nil
}
