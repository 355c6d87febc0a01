package table

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"strings"
	"testing"

	"github.com/pierrec/lz4"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const performanceCSV = `Pitch,Pitch Class,Duration,Finger,String,Fret
C4,C,0.5,1,2,1
G4,G,0.50,3,3,0
,C,1,NA,2,
G4,G,1.0,3,3,0
`

func TestRead(t *testing.T) {
	tbl, err := Read("piece.csv", strings.NewReader(performanceCSV))
	require.NoError(t, err)

	assert.Equal(t, "piece.csv", tbl.Name)
	assert.Equal(t, 4, tbl.Rows)
	assert.Equal(t, []string{"pitch", "pitch-class", "duration", "fingering", "string", "fret"}, tbl.Headers)

	pitch, ok := tbl.Values(models.AttrPitch)
	require.True(t, ok)
	assert.Equal(t, []string{"C4", "G4", "G4"}, pitch)

	duration, ok := tbl.Values(models.AttrDuration)
	require.True(t, ok)
	assert.Equal(t, []string{"0.5", "0.5", "1", "1"}, duration)

	finger, ok := tbl.Values(models.AttrFingering)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "3", "3"}, finger)

	_, ok = tbl.Values("velocity")
	assert.False(t, ok)
}

func TestReadDelimiters(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Semicolon", "pitch;fret\nC4;1\nD4;2\n"},
		{"Tab", "pitch\tfret\nC4\t1\nD4\t2\n"},
		{"BOM", "\xef\xbb\xbfpitch,fret\nC4,1\nD4,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Read("t.csv", strings.NewReader(tt.input))
			require.NoError(t, err)
			fret, ok := tbl.Values(models.AttrFret)
			require.True(t, ok)
			assert.Equal(t, []string{"1", "2"}, fret)
		})
	}
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace", "  \n\n"},
		{"Ragged rows", "pitch,fret\nC4,1,9\nD4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("bad.csv", strings.NewReader(tt.input))
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.Equal(t, "bad.csv", pe.File)
		})
	}
}

func TestReadHeaderlessData(t *testing.T) {
	tbl, err := Read("raw.csv", strings.NewReader("60,1,2\n62,1,3\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows)
	assert.Equal(t, []string{"column_1", "column_2", "column_3"}, tbl.Headers)
	col, ok := tbl.Values("column_1")
	require.True(t, ok)
	assert.Equal(t, []string{"60", "62"}, col)
}

func TestReadCompressed(t *testing.T) {
	plain := []byte("pitch,fret\nC4,1\nD4,2\n")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var lz bytes.Buffer
	lw := lz4.NewWriter(&lz)
	_, err = lw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	var zb bytes.Buffer
	zw := zip.NewWriter(&zb)
	small, err := zw.Create("notes.txt")
	require.NoError(t, err)
	_, err = small.Write([]byte("x"))
	require.NoError(t, err)
	f, err := zw.Create("piece.csv")
	require.NoError(t, err)
	_, err = f.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name     string
		file     string
		data     []byte
		wantName string
	}{
		{"Gzip", "piece.csv.gz", gz.Bytes(), "piece.csv"},
		{"LZ4", "piece.csv.lz4", lz.Bytes(), "piece.csv"},
		{"Zip picks largest", "bundle.zip", zb.Bytes(), "piece.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Read(tt.file, bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, tbl.Name)
			pitch, ok := tbl.Values(models.AttrPitch)
			require.True(t, ok)
			assert.Equal(t, []string{"C4", "D4"}, pitch)
		})
	}
}

func TestDropMissing(t *testing.T) {
	got := DropMissing([]string{"C", "", " ", "NaN", "null", "None", "N/A", " D "})
	assert.Equal(t, []string{"C", "D"}, got)
}

func TestValuesNonNumericUntouched(t *testing.T) {
	assert.Equal(t, []string{"1", "1.0", "x"}, canonicalize([]string{"1", "1.0", "x"}))
	assert.Equal(t, []string{"1", "1", "2.5"}, canonicalize([]string{"1", "1.0", "2.50"}))
}
