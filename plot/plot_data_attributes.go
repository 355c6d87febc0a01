package plot

import (
	"math"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	entropyColor = drawing.ColorFromHex("6a0dad").WithAlpha(160)
	scoreColor   = drawing.ColorFromHex("1f77b4").WithAlpha(160)
)

type attributeBar struct {
	label string
	value float64
	color drawing.Color
}

// dataAttributesForGraph draws one entropy and one score bar per attribute.
type dataAttributesForGraph struct {
	bars      []attributeBar
	nameYAxis string
	nameGraph string
}

func NewDataAttributesForGraph(rec models.Record) dataAttributesForGraph {
	d := dataAttributesForGraph{
		nameYAxis: "bits",
		nameGraph: rec.FileName,
	}
	for _, attr := range rec.Attributes() {
		m := rec.Metrics[attr]
		if m.Has(models.FieldEntropy) {
			d.bars = append(d.bars, attributeBar{label: attr + " H", value: m.Entropy, color: entropyColor})
		}
		if m.Has(models.FieldScore) {
			d.bars = append(d.bars, attributeBar{label: attr + " S", value: m.Score, color: scoreColor})
		}
	}
	return d
}

func (d dataAttributesForGraph) GetNameGraph() string {
	return d.nameGraph
}
func (d dataAttributesForGraph) getNameYAxis() string {
	return d.nameYAxis
}
func (d dataAttributesForGraph) getYValues() []float64 {
	y := make([]float64, len(d.bars))
	for i, b := range d.bars {
		y[i] = b.value
	}
	return y
}

func (d dataAttributesForGraph) calculateChartDimensions(minBarWidth float64) (width, height int) {
	if len(d.bars) == 0 || minBarWidth <= 0 {
		return 0, 0
	}
	x := 1.1
	if len(d.bars) < 2 {
		x = 10.0
	} else if len(d.bars) < 10 {
		x = 3.0
	}

	const (
		paddingY     = 100
		spacingRatio = 0.2
		aspectRatio  = 9.0 / 16.0
	)

	barSpacing := minBarWidth * spacingRatio
	totalWidth := (minBarWidth+barSpacing)*float64(len(d.bars)) + paddingY
	width = int(totalWidth*x) + paddingY
	height = int(float64(width) * aspectRatio)
	return width, height
}

func (d dataAttributesForGraph) generateBarValues() []chart.Value {
	values := make([]chart.Value, 0, len(d.bars))
	for _, b := range d.bars {
		values = append(values, chart.Value{
			Value: b.value,
			Label: b.label,
			Style: chart.Style{
				FillColor:   b.color,
				StrokeColor: b.color,
			},
		})
	}
	return values
}

// generateGrid returns ticks from zero to the rounded-up maximum.
func (d dataAttributesForGraph) generateGrid() []chart.Tick {
	max := axisMax(d.getYValues())
	step := calculateGridStep(max)
	var ticks []chart.Tick
	for i := 0; ; i++ {
		v := float64(i) * step
		if v > max+step/2 {
			break
		}
		ticks = append(ticks, chart.Tick{
			Value: v,
			Label: formatTick(v),
		})
	}
	return ticks
}

// axisMax rounds the largest value up to a whole grid step. An all-zero
// chart still gets a unit axis.
func axisMax(y []float64) float64 {
	max := findMaxValue(y)
	if max <= 0 {
		return 1
	}
	step := calculateGridStep(max)
	return math.Ceil(max/step) * step
}
