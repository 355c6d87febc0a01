package entropy

import (
	"fmt"

	"github.com/pivolan/entropy_analyzer/domain/models"
)

// ColumnSource yields the non-missing values of a named column.
type ColumnSource interface {
	Values(name string) ([]string, bool)
}

// AnalyzeColumns computes a metric for each requested attribute. Attributes
// that are absent from the source, or empty once missing values are dropped,
// are skipped and reported as warnings.
func AnalyzeColumns(src ColumnSource, attributes []string) (map[string]models.Metric, []string) {
	metrics := make(map[string]models.Metric, len(attributes))
	var warnings []string
	for _, attr := range attributes {
		values, ok := src.Values(attr)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("column %q not found, skipped", attr))
			continue
		}
		m, ok := ComputeMetric(values)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("column %q has no values, skipped", attr))
			continue
		}
		metrics[attr] = m
	}
	return metrics, warnings
}

// Scores extracts the score of every metric.
func Scores(metrics map[string]models.Metric) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for k, m := range metrics {
		out[k] = m.Score
	}
	return out
}
