package models

// Canonical attribute column names of a performance table.
const (
	AttrPitch      = "pitch"
	AttrPitchClass = "pitch-class"
	AttrDuration   = "duration"
	AttrFingering  = "fingering"
	AttrString     = "string"
	AttrFret       = "fret"
)

// Persisted column names.
const (
	ColFileName     = "file_name"
	ColUniqueID     = "unique_id"
	ColMDS          = "MDS"
	ColTDS          = "TDS"
	ColOverallScore = "OverallScore"

	EntropySuffix  = "_entropy"
	ScoreSuffix    = "_score"
	DistinctSuffix = "_distinct"
)

var (
	// MusicalAttributes feed the musical dimension score (MDS).
	MusicalAttributes = []string{AttrPitch, AttrPitchClass, AttrDuration}
	// TechnicalAttributes feed the technical dimension score (TDS).
	TechnicalAttributes = []string{AttrFingering, AttrString, AttrFret}
	// DefaultAttributes is the analysis order used when nothing else is configured.
	DefaultAttributes = append(append([]string{}, MusicalAttributes...), TechnicalAttributes...)
)

// MetricField is a set of Metric fields.
type MetricField uint8

const (
	FieldEntropy MetricField = 1 << iota
	FieldDistinct
	FieldScore

	AllMetricFields = FieldEntropy | FieldDistinct | FieldScore
)

// Metric is the entropy summary of one attribute column.
type Metric struct {
	Entropy  float64 `json:"entropy" yaml:"entropy"`
	Distinct int     `json:"distinct" yaml:"distinct"`
	Score    float64 `json:"score" yaml:"score"`
	// Missing marks fields a stored row never recorded, as in result
	// tables written before scores and distinct counts were kept.
	Missing MetricField `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Has reports whether f was recorded.
func (m Metric) Has(f MetricField) bool {
	return m.Missing&f == 0
}

// Composite holds the aggregated dimension scores. A nil field means
// one of its constituent columns was absent.
type Composite struct {
	MDS     *float64 `json:"mds" yaml:"mds"`
	TDS     *float64 `json:"tds" yaml:"tds"`
	Overall *float64 `json:"overall" yaml:"overall"`
}

// Record is one persisted analysis result for one uploaded file.
type Record struct {
	ID       string            `json:"unique_id" yaml:"unique_id"`
	FileName string            `json:"file_name" yaml:"file_name"`
	Metrics  map[string]Metric `json:"metrics" yaml:"metrics"`

	Composite `yaml:",inline"`
}

// Attributes returns the attribute names present in the record in canonical order.
func (r Record) Attributes() []string {
	return OrderAttributes(r.Metrics)
}

type HeaderAnalysis struct {
	Headers        []string // normalized headers
	FirstRowIsData bool
	FirstDataRow   []string
}

type ValueCount struct {
	Value   string
	Count   int64
	Percent float64
}
