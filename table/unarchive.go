package table

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// unpack returns a reader over the uncompressed content of an upload,
// chosen by file extension, and the name of the unpacked file.
func unpack(name string, r io.Reader) (io.Reader, string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return unpackZip(name, r)
	case ".gz":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, "", errors.Wrapf(err, "opening gzip %s", name)
		}
		return gr, strings.TrimSuffix(name, filepath.Ext(name)), nil
	case ".lz4":
		return lz4.NewReader(r), strings.TrimSuffix(name, filepath.Ext(name)), nil
	}
	return r, name, nil
}

// unpackZip picks the largest file of the archive.
func unpackZip(name string, r io.Reader) (io.Reader, string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading zip %s", name)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening zip %s", name)
	}

	var largest *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if largest == nil || f.UncompressedSize64 > largest.UncompressedSize64 {
			largest = f
		}
	}
	if largest == nil {
		return nil, "", errors.Errorf("zip %s contains no files", name)
	}

	rc, err := largest.Open()
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening %s in %s", largest.Name, name)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", errors.Wrapf(err, "extracting %s from %s", largest.Name, name)
	}
	return bytes.NewReader(content), largest.Name, nil
}
