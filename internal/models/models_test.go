package models

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v4.0/files/silero_vad.onnx" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDownloadModel(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 100_000)
	srv, hits := modelServer(t, body)
	m := NewManager(filepath.Join(t.TempDir(), "models")).WithBaseURL(srv.URL+"/", srv.Client())

	var last float64
	require.NoError(t, m.DownloadModel(context.Background(), "silero_vad", func(p float64) { last = p }))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1.0, last)

	data, err := os.ReadFile(m.GetModelPath("silero_vad"))
	require.NoError(t, err)
	assert.Equal(t, body, data)

	size, err := m.GetModelSize("silero_vad")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), size)

	downloaded, err := m.ListDownloadedModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"silero_vad"}, downloaded)

	err = m.DownloadModel(context.Background(), "silero_vad", nil)
	assert.ErrorContains(t, err, "already downloaded")
}

func TestDownloadModelFailureLeavesNothing(t *testing.T) {
	srv, _ := modelServer(t, nil)
	m := NewManager(t.TempDir()).WithBaseURL(srv.URL, srv.Client())

	err := m.DownloadModel(context.Background(), "silero_vad_v5", nil)
	require.ErrorContains(t, err, "404")

	assert.False(t, m.IsModelDownloaded("silero_vad_v5"))
	entries, err := os.ReadDir(m.GetModelDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadInvalidModel(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.ErrorContains(t, m.DownloadModel(context.Background(), "whisper", nil), "invalid model")
	assert.ErrorContains(t, m.DeleteModel("whisper"), "invalid model")
}

func TestDeleteModel(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, os.WriteFile(m.GetModelPath("silero_vad"), []byte("x"), 0o644))

	require.NoError(t, m.DeleteModel("silero_vad"))
	assert.False(t, m.IsModelDownloaded("silero_vad"))
	assert.ErrorContains(t, m.DeleteModel("silero_vad"), "not downloaded")
}

func TestListDownloadedMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"))
	models, err := m.ListDownloadedModels()
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestPrintModelInfo(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, os.WriteFile(m.GetModelPath("silero_vad"), make([]byte, 2*1024*1024), 0o644))

	var buf bytes.Buffer
	require.NoError(t, m.PrintModelInfo(&buf, "silero_vad"))
	out := buf.String()
	assert.Contains(t, out, "* silero_vad")
	assert.Contains(t, out, "2.0 MB")
	assert.Contains(t, out, "not downloaded")
}
