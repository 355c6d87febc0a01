package analysis

import (
	"github.com/montanaflynn/stats"
	"github.com/pivolan/entropy_analyzer/domain/models"
)

// ScoreStats describes the spread of one score over a set of records.
type ScoreStats struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summary aggregates stored records.
type Summary struct {
	Records    int                    `json:"records" yaml:"records"`
	Overall    *ScoreStats            `json:"overall" yaml:"overall"`
	MDS        *ScoreStats            `json:"mds" yaml:"mds"`
	TDS        *ScoreStats            `json:"tds" yaml:"tds"`
	Attributes map[string]*ScoreStats `json:"attributes" yaml:"attributes"`
	// Best is the file with the highest overall score.
	Best *models.Record `json:"best,omitempty" yaml:"best,omitempty"`
}

// Summarize computes score statistics over records. Composite scores are
// summarized over the records that carry them, attribute entropies over
// the records that contain the attribute.
func Summarize(records []models.Record) Summary {
	s := Summary{
		Records:    len(records),
		Attributes: make(map[string]*ScoreStats),
	}

	var overall, mds, tds stats.Float64Data
	entropies := make(map[string]stats.Float64Data)
	for i, r := range records {
		if r.Overall != nil {
			overall = append(overall, *r.Overall)
			if s.Best == nil || *r.Overall > *s.Best.Overall {
				s.Best = &records[i]
			}
		}
		if r.MDS != nil {
			mds = append(mds, *r.MDS)
		}
		if r.TDS != nil {
			tds = append(tds, *r.TDS)
		}
		for attr, m := range r.Metrics {
			if m.Has(models.FieldEntropy) {
				entropies[attr] = append(entropies[attr], m.Entropy)
			}
		}
	}

	s.Overall = describe(overall)
	s.MDS = describe(mds)
	s.TDS = describe(tds)
	for attr, data := range entropies {
		s.Attributes[attr] = describe(data)
	}
	return s
}

func describe(data stats.Float64Data) *ScoreStats {
	if len(data) == 0 {
		return nil
	}
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	return &ScoreStats{
		Count:  len(data),
		Mean:   mean,
		Median: median,
		Min:    min,
		Max:    max,
	}
}
