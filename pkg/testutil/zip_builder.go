package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"testing"
	"time"
)

// ZipEntry is an entry of a test archive. Stored entries are written
// uncompressed, everything else is deflated.
type ZipEntry struct {
	Name    string
	Data    []byte
	Stored  bool
	Comment string
}

// ZipModified is the modification time of every test archive entry.
var ZipModified = time.Date(2020, time.January, 2, 3, 4, 6, 0, time.UTC)

// MustZip encodes an archive with the given entries and comment.
func MustZip(t *testing.T, comment string, entries ...ZipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: ZipModified,
			Comment:  e.Comment,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatal(err)
		}
	}
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// MustWriteZip writes an archive to the named file.
func MustWriteZip(t *testing.T, filename string, entries ...ZipEntry) {
	t.Helper()
	if err := os.WriteFile(filename, MustZip(t, "", entries...), 0o644); err != nil {
		t.Fatal(err)
	}
}

// MustOpenZip opens an archive held in memory.
func MustOpenZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	return zr
}

// MustReadZipEntry returns the uncompressed content of an archive entry.
func MustReadZipEntry(t *testing.T, f *zip.File) []byte {
	t.Helper()
	rc, err := f.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(f.Name, err)
	}
	return data
}

// MustReadRawZipEntry returns the stored bytes of an archive entry.
func MustReadRawZipEntry(t *testing.T, f *zip.File) []byte {
	t.Helper()
	r, err := f.OpenRaw()
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(f.Name, err)
	}
	return data
}

// ZipNames returns the entry names of an archive in order.
func ZipNames(zr *zip.Reader) []string {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
