package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL, WithOriginID("replica-1"), WithTimeout(5*time.Second))

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.Equal(t, "replica-1", client.originID)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

// TestClient_UploadBatch проверяет отправку пакета и разбор результатов
func TestClient_UploadBatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Проверяем метод и путь
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sync/note/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.UploadBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "replica-1", req.OriginID)
		require.Len(t, req.Entities, 2)
		assert.Equal(t, int64(2), req.Entities[0].Version)
		assert.Equal(t, int64(1), req.Entities[0].BaseVersion)
		assert.True(t, req.Entities[1].Deleted)

		resp := api.UploadBatchResponse{Results: []api.UploadResult{
			{ID: "a", Status: "applied", Version: 2},
			{ID: "b", Status: "conflict", Version: 7, Current: &api.Entity{
				ID: "b", EntityType: "note", Version: 7, LastModified: now,
				Fields: map[string]any{"title": "theirs"},
			}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithOriginID("replica-1"))

	a := &models.SyncableEntity{ID: "a", EntityType: "note", Version: 2, BaseVersion: 1, Fields: map[string]any{"title": "x"}}
	a.MarkPending(models.PendingUpdate)
	b := &models.SyncableEntity{ID: "b", EntityType: "note", Version: 4, BaseVersion: 3, IsDeleted: true}
	b.MarkPending(models.PendingDelete)

	outcomes, err := client.UploadBatch(context.Background(), "note", []*models.SyncableEntity{a, b})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, models.UploadApplied, outcomes[0].Status)
	assert.Nil(t, outcomes[0].Current)
	assert.Equal(t, models.UploadConflict, outcomes[1].Status)
	require.NotNil(t, outcomes[1].Current)
	assert.Equal(t, int64(7), outcomes[1].Current.Version)
	assert.Equal(t, int64(7), outcomes[1].Current.BaseVersion, "remote versions arrive acknowledged")
	assert.False(t, outcomes[1].Current.IsPendingSync)
	assert.Equal(t, "theirs", outcomes[1].Current.Fields["title"])
}

// TestClient_GetChangesSince проверяет передачу курсора
func TestClient_GetChangesSince(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 123, time.UTC)
	cursor := since.Add(time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/task/changes", r.URL.Path)

		got, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("since"))
		require.NoError(t, err)
		assert.True(t, since.Equal(got))

		_ = json.NewEncoder(w).Encode(api.ChangesResponse{
			Cursor: cursor,
			Entities: []api.Entity{
				{ID: "t1", EntityType: "task", Version: 3, Deleted: true},
			},
		})
	}))
	defer server.Close()

	changes, err := NewClient(server.URL).GetChangesSince(context.Background(), "task", since)
	require.NoError(t, err)

	assert.True(t, cursor.Equal(changes.Cursor))
	require.Len(t, changes.Entities, 1)
	assert.True(t, changes.Entities[0].IsDeleted)
	assert.Equal(t, models.PendingNone, changes.Entities[0].PendingOperation)
}

// TestClient_GetChangesSince_ZeroCursor проверяет первый запрос без курсора
func TestClient_GetChangesSince_ZeroCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(api.ChangesResponse{})
	}))
	defer server.Close()

	changes, err := NewClient(server.URL).GetChangesSince(context.Background(), "task", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, changes.Entities)
}

// TestClient_ErrorClassification проверяет разделение ошибок на временные и постоянные
func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          any
		wantRetryable bool
		wantMessage   string
	}{
		{
			name:          "internal error is retryable",
			status:        http.StatusInternalServerError,
			body:          api.ErrorResponse{Error: "database is locked"},
			wantRetryable: true,
			wantMessage:   "database is locked",
		},
		{
			name:          "too many requests is retryable",
			status:        http.StatusTooManyRequests,
			body:          api.ErrorResponse{Error: "slow down"},
			wantRetryable: true,
			wantMessage:   "slow down",
		},
		{
			name:          "bad request is permanent",
			status:        http.StatusBadRequest,
			body:          api.ErrorResponse{Error: "invalid entity", Message: "empty id"},
			wantRetryable: false,
			wantMessage:   "invalid entity: empty id",
		},
		{
			name:          "plain text body",
			status:        http.StatusNotFound,
			body:          "not found",
			wantRetryable: false,
			wantMessage:   "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if s, ok := tt.body.(string); ok {
					_, _ = w.Write([]byte(s))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL).GetChangesSince(context.Background(), "note", time.Time{})
			require.Error(t, err)

			assert.Equal(t, tt.wantRetryable, models.IsRetryable(err))

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Message, tt.wantMessage)

			if !tt.wantRetryable {
				var valErr *models.ValidationError
				assert.True(t, errors.As(err, &valErr))
			}
		})
	}
}

// TestClient_NetworkFailure проверяет недоступный сервер
func TestClient_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).UploadBatch(context.Background(), "note", nil)
	require.Error(t, err)

	var netErr *models.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, "upload batch", netErr.Op)
}

// TestClient_Health проверяет health check
func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL).Health(context.Background()))
}
