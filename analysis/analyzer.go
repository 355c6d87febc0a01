// Package analysis turns uploaded performance tables into stored records.
package analysis

import (
	"context"
	"io"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/entropy_analyzer/entropy"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/pivolan/entropy_analyzer/table"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Analyzer computes entropy metrics for uploads and appends them to Store.
type Analyzer struct {
	Store      store.Store
	Attributes []string
}

// Result is the outcome of analysing one file.
type Result struct {
	Record        models.Record
	Rows          int
	Warnings      []string
	Distributions map[string][]models.ValueCount
}

// New returns an Analyzer over s. An empty attribute list selects the
// default attributes.
func New(s store.Store, attributes []string) *Analyzer {
	return &Analyzer{Store: s, Attributes: attributes}
}

func (a *Analyzer) attributes() []string {
	if len(a.Attributes) == 0 {
		return models.DefaultAttributes
	}
	return a.Attributes
}

// Analyze reads the table in r, scores it and appends the record. Nothing
// is written when the upload cannot be parsed.
func (a *Analyzer) Analyze(ctx context.Context, fileName string, r io.Reader) (*Result, error) {
	tbl, err := table.Read(fileName, r)
	if err != nil {
		return nil, err
	}

	res := Evaluate(tbl, a.attributes())
	res.Record.ID = store.NewID()
	res.Record.FileName = fileName

	if err := a.Store.Append(ctx, res.Record); err != nil {
		return nil, errors.Wrapf(err, "saving results for %s", fileName)
	}

	log.WithFields(log.Fields{
		"file":     fileName,
		"id":       res.Record.ID,
		"rows":     res.Rows,
		"warnings": len(res.Warnings),
	}).Info("analysed upload")
	return res, nil
}

// Evaluate scores the requested attributes of tbl without persisting anything.
func Evaluate(tbl *table.Table, attributes []string) *Result {
	metrics, warnings := entropy.AnalyzeColumns(tbl, attributes)

	dists := make(map[string][]models.ValueCount, len(metrics))
	for attr := range metrics {
		values, _ := tbl.Values(attr)
		dists[attr] = entropy.Distribution(values)
	}

	return &Result{
		Record: models.Record{
			FileName:  tbl.Name,
			Metrics:   metrics,
			Composite: entropy.ComputeCompositeScores(entropy.Scores(metrics)),
		},
		Rows:          tbl.Rows,
		Warnings:      warnings,
		Distributions: dists,
	}
}
