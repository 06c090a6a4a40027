package utils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtils_ShouldDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "model_params: {}\n")
	}))
	defer srv.Close()

	f, err := DownloadFile(srv.URL+"/vox-256.yaml", "config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "model_params: {}\n", string(data))
	assert.True(t, strings.HasSuffix(f.Name(), ".yaml"))
}

func TestUtils_ShouldFailOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := DownloadFile(srv.URL+"/missing.zip", "checkpoint-*.zip")
	assert.Error(t, err)
}

func TestUtils_ShouldBeValidUrl(t *testing.T) {
	assert.True(t, IsValidUrl("https://github.com/esimov/reenact/"))
	assert.False(t, IsValidUrl("config/vox-256.yaml"))
	assert.False(t, IsValidUrl("https://"))
}

func TestUtils_ShouldDetectValidFileType(t *testing.T) {
	// PNG signature followed by an IHDR chunk header.
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	fname := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(fname, png, 0644))

	ftype, err := DetectContentType(fname)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ftype)
}
