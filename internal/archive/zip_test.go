// AngelaMos | 2026
// zip_test.go

package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildZip(t *testing.T) {
	modTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := BuildZip([]Entry{
		{Name: "report.txt", Data: []byte("all clear")},
		{Name: "parameters.json", Data: []byte(`{"layers":4}`)},
	}, modTime)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)

	contents := map[string]string{}
	for _, f := range reader.File {
		rc, openErr := f.Open()
		require.NoError(t, openErr)
		body, readErr := io.ReadAll(rc)
		require.NoError(t, readErr)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(body)
	}

	assert.Equal(t, "all clear", contents["report.txt"])
	assert.Equal(t, `{"layers":4}`, contents["parameters.json"])
}

func TestBuildZipRejectsEmpty(t *testing.T) {
	_, err := BuildZip(nil, time.Now())
	require.Error(t, err)
}
