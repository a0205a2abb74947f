package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad seek") }, http.StatusBadRequest, "bad seek"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no database configured") }, http.StatusNotFound, "no database configured"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "disk full") }, http.StatusInternalServerError, "disk full"},
		{"method", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.msg, decode(t, rec)["error"])
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"frames": 42})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42.0, decode(t, rec)["frames"])
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query  string
		want   int
		ok     bool
		status int
	}{
		{"", 100, true, http.StatusOK},
		{"?limit=5", 5, true, http.StatusOK},
		{"?limit=0", 0, true, http.StatusOK},
		{"?limit=-1", 0, false, http.StatusBadRequest},
		{"?limit=ten", 0, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/recordings"+tt.query, nil)
			got, ok := QueryInt(rec, req, "limit", 100)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
