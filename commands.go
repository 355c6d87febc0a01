package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	yesFlag = &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}

	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Write the table to this file instead of stdout",
	}

	analyzeCmd = &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Analyse performance tables and store the results",
		ArgsUsage: "<file> [file...]",
		Action:    cmdAnalyze,
	}

	listCmd = &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored results",
		Action:  cmdList,
	}

	deleteCmd = &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a stored result by its identifier",
		ArgsUsage: "<id>",
		Action:    cmdDelete,
	}

	resetCmd = &cli.Command{
		Name:   "reset",
		Usage:  "Delete all stored results and start fresh",
		Flags:  []cli.Flag{yesFlag},
		Action: cmdReset,
	}

	migrateCmd = &cli.Command{
		Name:   "migrate",
		Usage:  "Assign identifiers to results saved without one",
		Action: cmdMigrate,
	}

	exportCmd = &cli.Command{
		Name:   "export",
		Usage:  "Write all stored results as CSV",
		Flags:  []cli.Flag{outFlag},
		Action: cmdExport,
	}

	summaryCmd = &cli.Command{
		Name:   "summary",
		Usage:  "Show score statistics over all stored results",
		Action: cmdSummary,
	}
)

type analyzeOutput struct {
	File   string           `json:"file" yaml:"file"`
	Result *analysis.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
}

func cmdAnalyze(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}
	cfg := getConfig(c)

	var outputs []analyzeOutput
	failed := 0
	for _, path := range c.Args().Slice() {
		out := analyzeOutput{File: path}
		res, err := analyzeFile(c, cfg.Analyzer, path)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("analysis failed")
			out.Error = storeError(err).Error()
			failed++
		}
		out.Result = res
		outputs = append(outputs, out)
	}

	var text strings.Builder
	for _, o := range outputs {
		if o.Result == nil {
			fmt.Fprintf(&text, "%s: %s\n", o.File, o.Error)
			continue
		}
		text.WriteString(GenerateResultTable(o.Result.Record))
		fmt.Fprintf(&text, "\nid: %s\n", o.Result.Record.ID)
		for _, w := range o.Result.Warnings {
			fmt.Fprintf(&text, "warning: %s\n", w)
		}
	}
	if err := encode(c.App.Writer, cfg.Format, outputs, strings.TrimRight(text.String(), "\n")); err != nil {
		return errors.Wrap(err, "encoding result")
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(outputs))
	}
	return nil
}

func analyzeFile(c *cli.Context, a *analysis.Analyzer, path string) (*analysis.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return a.Analyze(c.Context, filepath.Base(path), f)
}

func cmdList(c *cli.Context) error {
	cfg := getConfig(c)
	records, err := cfg.Store.ListAll(c.Context)
	if err != nil {
		return storeError(err)
	}
	return encode(c.App.Writer, cfg.Format, records, GenerateRecordsTable(records))
}

func cmdDelete(c *cli.Context) error {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return cli.ShowSubcommandHelp(c)
	}
	cfg := getConfig(c)
	deleted, err := cfg.Store.Delete(c.Context, id)
	if err != nil {
		return storeError(err)
	}

	msg := fmt.Sprintf("deleted %s", id)
	if !deleted {
		msg = fmt.Sprintf("no result with id %s", id)
	}
	return encode(c.App.Writer, cfg.Format, map[string]any{"id": id, "deleted": deleted}, msg)
}

func cmdReset(c *cli.Context) error {
	cfg := getConfig(c)

	if !c.Bool(yesFlag.Name) {
		fmt.Fprintf(c.App.Writer, "This will permanently delete all stored results in %s\n", describeStore(cfg))
		fmt.Fprint(c.App.Writer, "Are you sure? [y/N]: ")
		ok, err := confirm(c.App.Reader)
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		if !ok {
			fmt.Fprintln(c.App.Writer, "Aborted.")
			return nil
		}
	}

	if err := cfg.Store.DeleteAll(c.Context); err != nil {
		return errors.Wrap(err, "deleting results")
	}
	log.WithField("store", describeStore(cfg)).Info("results deleted")
	fmt.Fprintln(c.App.Writer, "Reset complete.")
	return nil
}

func confirm(r io.Reader) (bool, error) {
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func describeStore(cfg *appConfig) string {
	if cfg.Config.DbDsn != "" {
		return "the configured database"
	}
	return cfg.Config.StorePath
}

func cmdMigrate(c *cli.Context) error {
	cfg := getConfig(c)
	n, err := cfg.Store.MigrateMissingIdentifier(c.Context)
	if err != nil {
		return storeError(err)
	}
	return encode(c.App.Writer, cfg.Format, map[string]int{"migrated": n}, fmt.Sprintf("assigned %d identifiers", n))
}

func cmdExport(c *cli.Context) error {
	cfg := getConfig(c)
	records, err := cfg.Store.ListAll(c.Context)
	if err != nil {
		return storeError(err)
	}

	out := c.String(outFlag.Name)
	if out == "" || out == "-" {
		return store.EncodeCSV(c.App.Writer, records)
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "creating %s", out)
	}
	if err := store.EncodeCSV(f, records); err != nil {
		f.Close()
		return err
	}
	log.WithFields(log.Fields{"file": out, "records": len(records)}).Info("results exported")
	return f.Close()
}

func cmdSummary(c *cli.Context) error {
	cfg := getConfig(c)
	records, err := cfg.Store.ListAll(c.Context)
	if err != nil {
		return storeError(err)
	}
	s := analysis.Summarize(records)
	return encode(c.App.Writer, cfg.Format, s, GenerateSummaryTable(s))
}
