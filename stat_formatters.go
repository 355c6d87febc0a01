package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/domain/models"
)

const notAvailable = "n/a"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func formatNullable(f *float64) string {
	if f == nil {
		return notAvailable
	}
	return formatFloat(*f)
}

// formatMetric formats one field of m, n/a when it was never recorded.
func formatMetric(m models.Metric, f models.MetricField) string {
	if !m.Has(f) {
		return notAvailable
	}
	switch f {
	case models.FieldEntropy:
		return formatFloat(m.Entropy)
	case models.FieldScore:
		return formatFloat(m.Score)
	}
	return strconv.Itoa(m.Distinct)
}

// GenerateRecordsTable renders stored records, one row per analysed file.
func GenerateRecordsTable(records []models.Record) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "ID", "File", models.ColMDS, models.ColTDS, models.ColOverallScore})
	for i, r := range records {
		t.AppendRow(table.Row{i + 1, r.ID, r.FileName, formatNullable(r.MDS), formatNullable(r.TDS), formatNullable(r.Overall)})
	}
	if len(records) == 0 {
		t.AppendFooter(table.Row{"", "", "no results yet"})
	}
	t.SetStyle(table.StyleDefault)
	return t.Render()
}

// GenerateResultTable renders the per-attribute metrics of a single analysis.
func GenerateResultTable(rec models.Record) string {
	t := table.NewWriter()
	t.SetTitle(rec.FileName)
	t.AppendHeader(table.Row{"Attribute", "Entropy", "Distinct", "Score"})
	for _, attr := range rec.Attributes() {
		m := rec.Metrics[attr]
		t.AppendRow(table.Row{
			attr,
			formatMetric(m, models.FieldEntropy),
			formatMetric(m, models.FieldDistinct),
			formatMetric(m, models.FieldScore),
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{models.ColMDS, "", "", formatNullable(rec.MDS)})
	t.AppendRow(table.Row{models.ColTDS, "", "", formatNullable(rec.TDS)})
	t.AppendRow(table.Row{models.ColOverallScore, "", "", formatNullable(rec.Overall)})
	t.SetStyle(table.StyleDefault)
	return t.Render()
}

// GenerateSummaryTable renders score statistics over all records.
func GenerateSummaryTable(s analysis.Summary) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%d analysed files", s.Records))
	t.AppendHeader(table.Row{"Score", "Count", "Mean", "Median", "Min", "Max"})
	appendStats := func(name string, st *analysis.ScoreStats) {
		if st == nil {
			t.AppendRow(table.Row{name, 0, notAvailable, notAvailable, notAvailable, notAvailable})
			return
		}
		t.AppendRow(table.Row{name, st.Count, formatFloat(st.Mean), formatFloat(st.Median), formatFloat(st.Min), formatFloat(st.Max)})
	}
	appendStats(models.ColOverallScore, s.Overall)
	appendStats(models.ColMDS, s.MDS)
	appendStats(models.ColTDS, s.TDS)
	if len(s.Attributes) > 0 {
		t.AppendSeparator()
		for _, attr := range models.OrderAttributes(s.Attributes) {
			appendStats(attr+models.EntropySuffix, s.Attributes[attr])
		}
	}
	if s.Best != nil {
		t.AppendFooter(table.Row{"best", "", s.Best.FileName, s.Best.ID})
	}
	t.SetStyle(table.StyleDefault)
	return t.Render()
}
