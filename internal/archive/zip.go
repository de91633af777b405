// AngelaMos | 2026
// zip.go

package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Entry is one named file inside a generated archive.
type Entry struct {
	Name string
	Data []byte
}

// BuildZip packages entries into an in-memory zip. Job artifacts are
// small report bundles, so buffering the whole archive is fine.
func BuildZip(entries []Entry, modTime time.Time) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("archive needs at least one entry")
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: modTime,
		}

		fw, err := w.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %q: %w", entry.Name, err)
		}

		if _, err := fw.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %q: %w", entry.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}
