package plot

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pkg/errors"
)

// missing is how echarts marks an absent data point.
const missing = "-"

// RenderScores writes an HTML page with the composite scores of every record.
func RenderScores(w io.Writer, records []models.Record) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Entropy scores",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Composite scores",
			Subtitle: "MDS, TDS and OverallScore per analysed file",
		}),
	)

	names := make([]string, 0, len(records))
	var mds, tds, overall []opts.BarData
	for _, r := range records {
		names = append(names, r.FileName)
		mds = append(mds, barValue(r.MDS))
		tds = append(tds, barValue(r.TDS))
		overall = append(overall, barValue(r.Overall))
	}

	bar.SetXAxis(names).
		AddSeries(models.ColMDS, mds).
		AddSeries(models.ColTDS, tds).
		AddSeries(models.ColOverallScore, overall)

	return errors.Wrap(bar.Render(w), "rendering score chart")
}

func barValue(v *float64) opts.BarData {
	if v == nil {
		return opts.BarData{Value: missing}
	}
	return opts.BarData{Value: *v}
}
