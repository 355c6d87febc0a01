// Package entropy computes Shannon entropy statistics over categorical columns.
package entropy

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/pivolan/entropy_analyzer/domain/models"
)

// ComputeEntropy returns the Shannon entropy in bits of the empirical
// distribution of values together with the number of distinct values.
// An empty input has no distribution and yields NaN.
func ComputeEntropy(values []string) (float64, int) {
	if len(values) == 0 {
		return math.NaN(), 0
	}
	counts := countValues(values)
	total := float64(len(values))

	// sum in a fixed order so the result does not depend on map iteration
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := 0.0
	for _, k := range keys {
		p := float64(counts[k]) / total
		h -= p * math.Log2(p)
	}
	if h == 0 {
		// avoid -0 for constant columns
		h = 0
	}
	return h, len(counts)
}

// ComputeScore weights entropy by variety: S = H * log2(1 + V).
func ComputeScore(entropy float64, distinct int) float64 {
	if entropy == 0 {
		return 0
	}
	return entropy * math.Log2(1+float64(distinct))
}

// ComputeMetric runs ComputeEntropy and ComputeScore on one column.
// ok is false when the column has no values.
func ComputeMetric(values []string) (models.Metric, bool) {
	h, v := ComputeEntropy(values)
	if math.IsNaN(h) {
		return models.Metric{}, false
	}
	return models.Metric{Entropy: h, Distinct: v, Score: ComputeScore(h, v)}, true
}

// ComputeCompositeScores aggregates per-attribute scores into the musical
// and technical dimension scores. A dimension is computed only when every
// one of its attributes is present.
func ComputeCompositeScores(scores map[string]float64) models.Composite {
	var c models.Composite
	c.MDS = dimensionMean(scores, models.MusicalAttributes)
	c.TDS = dimensionMean(scores, models.TechnicalAttributes)
	if c.MDS != nil && c.TDS != nil {
		overall := *c.MDS + *c.TDS
		c.Overall = &overall
	}
	return c
}

func dimensionMean(scores map[string]float64, attrs []string) *float64 {
	data := make(stats.Float64Data, 0, len(attrs))
	for _, a := range attrs {
		s, ok := scores[a]
		if !ok {
			return nil
		}
		data = append(data, s)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return nil
	}
	return &mean
}

// Distribution returns the relative frequency of every distinct value,
// most frequent first.
func Distribution(values []string) []models.ValueCount {
	counts := countValues(values)
	out := make([]models.ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, models.ValueCount{
			Value:   v,
			Count:   n,
			Percent: float64(n) / float64(len(values)) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func countValues(values []string) map[string]int64 {
	counts := make(map[string]int64)
	for _, v := range values {
		counts[v]++
	}
	return counts
}
