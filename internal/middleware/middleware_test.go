package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpattn/catalogaudit/internal/auth"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticNames map[string]string

func (s staticNames) GetEntityNames(_ context.Context, refs []domain.EntityRef) map[string]string {
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		out[ref.Key()] = s[ref.Key()]
	}
	return out
}

func TestUserMiddlewareSetsActingUser(t *testing.T) {
	id := uuid.New()
	var seen uuid.UUID
	handler := UserMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.ActingUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.UserIDHeader, id.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, id, seen)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, auth.SystemUserID, seen)
}

func TestDataLoaderMiddlewareAttachesLoader(t *testing.T) {
	ref := domain.EntityRef{EntityID: uuid.New(), EntityType: domain.EntityTypeRole}
	var names map[string]string
	handler := DataLoaderMiddleware(staticNames{ref.Key(): "editor"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loader := NameLoaderFromContext(r.Context())
		require.NotNil(t, loader)
		names = loader.LoadNames(r.Context(), []domain.EntityRef{ref})
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "editor", names[ref.Key()])

	assert.Nil(t, NameLoaderFromContext(context.Background()))
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/api/history"`)
}
