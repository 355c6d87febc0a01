package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	dir   string
	env   string
	store string
}

func newCLIEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("LOG_LEVEL=error\n"), 0o644))
	return &cliEnv{dir: dir, env: env, store: filepath.Join(dir, "analysis_results.csv")}
}

// run executes the app with stdin set to input and returns what it printed.
func (e *cliEnv) run(t *testing.T, input string, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(input)
	argv := append([]string{"entropy_analyzer", "--env", e.env, "--store", e.store}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func (e *cliEnv) writeTable(t *testing.T, name, content string) string {
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *cliEnv) list(t *testing.T) []models.Record {
	out, err := e.run(t, "", "--format", "json", "list")
	require.NoError(t, err)
	var records []models.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	return records
}

func TestCLIAnalyzeAndList(t *testing.T) {
	e := newCLIEnv(t)
	path := e.writeTable(t, "etude.csv", performanceTable)

	out, err := e.run(t, "", "analyze", path)
	require.NoError(t, err)
	assert.Contains(t, out, "etude.csv")
	assert.Contains(t, out, "id: ")

	records := e.list(t)
	require.Len(t, records, 1)
	assert.Equal(t, "etude.csv", records[0].FileName)
	assert.NotEmpty(t, records[0].ID)

	out, err = e.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, records[0].ID)
}

func TestCLIAnalyzePartialFailure(t *testing.T) {
	e := newCLIEnv(t)
	good := e.writeTable(t, "good.csv", performanceTable)
	empty := e.writeTable(t, "empty.csv", "")

	out, err := e.run(t, "", "analyze", good, empty, filepath.Join(e.dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")
	assert.Contains(t, out, "file is empty")
	assert.Len(t, e.list(t), 1)
}

func TestCLIDelete(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run(t, "", "analyze", e.writeTable(t, "one.csv", performanceTable))
	require.NoError(t, err)
	id := e.list(t)[0].ID

	out, err := e.run(t, "", "delete", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "no result with id nope")

	out, err = e.run(t, "", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)
	assert.Empty(t, e.list(t))
}

func TestCLIReset(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		args    []string
		want    string
		cleared bool
	}{
		{"Declined", "n\n", []string{"reset"}, "Aborted.", false},
		{"No answer", "", []string{"reset"}, "Aborted.", false},
		{"Confirmed", "yes\n", []string{"reset"}, "Reset complete.", true},
		{"Flag", "", []string{"reset", "-y"}, "Reset complete.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCLIEnv(t)
			_, err := e.run(t, "", "analyze", e.writeTable(t, "one.csv", performanceTable))
			require.NoError(t, err)

			out, err := e.run(t, tt.input, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			if tt.cleared {
				assert.NoFileExists(t, e.store)
			} else {
				assert.Len(t, e.list(t), 1)
			}
		})
	}
}

func TestCLIResetCorrupted(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.WriteFile(e.store, []byte("not,a\nvalid\"table"), 0o644))

	_, err := e.run(t, "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset")

	_, err = e.run(t, "", "reset", "--yes")
	require.NoError(t, err)
	assert.Empty(t, e.list(t))
}

func TestCLIMigrate(t *testing.T) {
	e := newCLIEnv(t)
	legacy := "file_name,pitch_entropy,MDS,TDS,OverallScore\nold.csv,1.5,,,\n"
	require.NoError(t, os.WriteFile(e.store, []byte(legacy), 0o644))

	out, err := e.run(t, "", "--format", "yaml", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrated: 1\n", out)

	records := e.list(t)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
}

func TestCLIExportAndSummary(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run(t, "", "analyze", e.writeTable(t, "one.csv", performanceTable))
	require.NoError(t, err)

	out, err := e.run(t, "", "export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "file_name,unique_id,"))
	assert.Contains(t, out, "one.csv")

	exported := filepath.Join(e.dir, "export.csv")
	_, err = e.run(t, "", "export", "--out", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))

	out, err = e.run(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "1 analysed files")
}

func TestCLIUnsupportedFormat(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run(t, "", "--format", "xml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
