package v1

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) doMultipart(t *testing.T, build func(w *multipart.Writer)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	build(writer)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/copilot/file", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func TestFileUploadEmptyPartList(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doMultipart(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("endpoint", "file"))
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result)
}

func TestFileUploadForwardsParts(t *testing.T) {
	env := newTestEnv(t)

	var forwarded []string
	env.backend.uploadFn = func(path, endpoint string) (string, error) {
		// The part was materialized before forwarding.
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		forwarded = append(forwarded, string(data))
		assert.Equal(t, "attachProducts", endpoint)
		return "stored:" + string(data), nil
	}

	rec := env.doMultipart(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("endpoint", "attachProducts"))
		part, err := w.CreateFormFile("invoice", "invoice.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte("a;b;c"))
		require.NoError(t, err)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "stored:a;b;c", result["invoice"])
	assert.Equal(t, []string{"a;b;c"}, forwarded)
}

func TestFileUploadOversizePartForwardsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.svc.maxUploadBytes = 16

	var forwarded int
	env.backend.uploadFn = func(_, _ string) (string, error) {
		forwarded++
		return "ok", nil
	}

	rec := env.doMultipart(t, func(w *multipart.Writer) {
		small, err := w.CreateFormFile("small", "small.txt")
		require.NoError(t, err)
		_, err = small.Write([]byte("tiny"))
		require.NoError(t, err)

		big, err := w.CreateFormFile("big", "big.txt")
		require.NoError(t, err)
		_, err = big.Write(bytes.Repeat([]byte("x"), 64))
		require.NoError(t, err)
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "big.txt")
	// The rejection happens before any part is forwarded.
	assert.Zero(t, forwarded)
}

func TestFileUploadDefaultEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.backend.uploadFn = func(_, endpoint string) (string, error) {
		assert.Equal(t, "/file", endpoint)
		return "ok", nil
	}

	rec := env.doMultipart(t, func(w *multipart.Writer) {
		part, err := w.CreateFormFile("doc", "doc.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("content"))
		require.NoError(t, err)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}
