package main

import (
	"strings"
	"testing"

	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func testRecords() []models.Record {
	return []models.Record{
		{
			ID:       "11111111-aaaa",
			FileName: "etude.csv",
			Metrics: map[string]models.Metric{
				models.AttrPitch: {Entropy: 1, Distinct: 2, Score: 1.5849625},
				models.AttrFret:  {Entropy: 0.5, Score: 0.79},
			},
			Composite: models.Composite{MDS: ptr(1.25), TDS: ptr(2), Overall: ptr(3.25)},
		},
		{
			ID:       "22222222-bbbb",
			FileName: "melody.csv",
			Metrics:  map[string]models.Metric{models.AttrPitch: {Entropy: 2, Score: 4}},
		},
	}
}

func TestGenerateRecordsTable(t *testing.T) {
	out := GenerateRecordsTable(testRecords())

	assert.Contains(t, out, "11111111-aaaa")
	assert.Contains(t, out, "etude.csv")
	assert.Contains(t, out, "3.250")
	assert.Contains(t, out, notAvailable)
	assert.Less(t, strings.Index(out, "etude.csv"), strings.Index(out, "melody.csv"))
}

func TestGenerateRecordsTableEmpty(t *testing.T) {
	out := GenerateRecordsTable(nil)
	assert.Contains(t, strings.ToLower(out), "no results yet")
}

func TestGenerateResultTable(t *testing.T) {
	out := GenerateResultTable(testRecords()[0])

	assert.Contains(t, out, "etude.csv")
	assert.Contains(t, out, "pitch")
	assert.Contains(t, out, "1.585")
	assert.Contains(t, out, "0.500")
	assert.Less(t, strings.Index(out, "pitch"), strings.Index(out, "fret"))
}

func TestGenerateResultTableMissingFields(t *testing.T) {
	rec := models.Record{
		FileName: "legacy.csv",
		Metrics: map[string]models.Metric{
			models.AttrPitch: {Entropy: 1.5, Missing: models.FieldDistinct | models.FieldScore},
		},
	}
	out := GenerateResultTable(rec)

	assert.Contains(t, out, "1.500")
	assert.NotContains(t, out, "0.000")
	assert.Equal(t, notAvailable, formatMetric(rec.Metrics[models.AttrPitch], models.FieldScore))
	assert.Equal(t, notAvailable, formatMetric(rec.Metrics[models.AttrPitch], models.FieldDistinct))
}

func TestGenerateSummaryTable(t *testing.T) {
	out := strings.ToLower(GenerateSummaryTable(analysis.Summarize(testRecords())))

	assert.Contains(t, out, "2 analysed files")
	assert.Contains(t, out, "pitch_entropy")
	assert.Contains(t, out, "1.500")
	assert.Contains(t, out, "etude.csv")
}
