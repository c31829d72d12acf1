package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, New(server.URL, "").Healthcheck())
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	assert.Error(t, New(server.URL, "").Healthcheck())
}

func TestHealthcheck_ServerDown(t *testing.T) {
	assert.Error(t, New("http://127.0.0.1:1", "").Healthcheck())
}

func TestUpload(t *testing.T) {
	type received struct {
		fields  map[string]string
		content string
	}
	got := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/add", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		fields := make(map[string]string)
		for _, k := range []string{"secret", "filename", "sessionName", "turret", "sessionDuration", "tag"} {
			fields[k] = r.FormValue(k)
		}
		got <- received{fields: fields, content: string(data)}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "demo_sentry-1_20260212_213836.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("test content"), 0644))

	err := New(server.URL, "mysecret").Upload(path, UploadMetadata{
		SessionName: "demo",
		Turret:      "sentry-1",
		Duration:    60.5,
		Tag:         "range-a",
	})
	require.NoError(t, err)

	r := <-got
	assert.Equal(t, "mysecret", r.fields["secret"])
	assert.Equal(t, "demo_sentry-1_20260212_213836.json.gz", r.fields["filename"])
	assert.Equal(t, "demo", r.fields["sessionName"])
	assert.Equal(t, "sentry-1", r.fields["turret"])
	assert.Equal(t, "60.500000", r.fields["sessionDuration"])
	assert.Equal(t, "range-a", r.fields["tag"])
	assert.Equal(t, "test content", r.content)
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload("/nonexistent/file.json.gz", UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "test.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	err := New(server.URL, "wrong-secret").Upload(path, UploadMetadata{})
	assert.ErrorContains(t, err, "status 403")
}
