package export

import (
	"archive/zip"
	"io"
)

// ZipEntry is one named file inside a zip archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// WriteZip streams a zip archive containing the given entries, in order.
func WriteZip(w io.Writer, entries []ZipEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.Create(e.Name)
		if err != nil {
			return err
		}
		if _, err := f.Write(e.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}
