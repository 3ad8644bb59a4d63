package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// StatusError описывает неуспешный HTTP ответ сервера
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client представляет HTTP клиент для взаимодействия с сервером синхронизации
type Client struct {
	httpClient *http.Client
	baseURL    string
	originID   string
}

// Option настраивает Client
type Option func(*Client)

// WithOriginID задает идентификатор реплики, передаваемый вместе с пакетами
func WithOriginID(originID string) Option {
	return func(c *Client) {
		c.originID = originID
	}
}

// WithTimeout задает таймаут одного HTTP запроса
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadBatch отправляет пакет локальных изменений
func (c *Client) UploadBatch(ctx context.Context, entityType string, entities []*models.SyncableEntity) ([]models.UploadOutcome, error) {
	req := api.UploadBatchRequest{
		Entities: make([]api.Entity, 0, len(entities)),
		OriginID: c.originID,
	}
	for _, e := range entities {
		req.Entities = append(req.Entities, ToAPIEntity(e))
	}

	var resp api.UploadBatchResponse
	path := fmt.Sprintf("/api/v1/sync/%s/batch", url.PathEscape(entityType))
	if err := c.doRequest(ctx, http.MethodPost, "upload batch", path, req, &resp); err != nil {
		return nil, err
	}

	outcomes := make([]models.UploadOutcome, 0, len(resp.Results))
	for _, r := range resp.Results {
		outcome := models.UploadOutcome{
			ID:      r.ID,
			Status:  models.UploadStatus(r.Status),
			Message: r.Message,
			Version: r.Version,
		}
		if r.Current != nil {
			outcome.Current = FromAPIEntity(*r.Current)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// GetChangesSince получает изменения сервера после курсора
func (c *Client) GetChangesSince(ctx context.Context, entityType string, since time.Time) (*models.RemoteChanges, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	path := fmt.Sprintf("/api/v1/sync/%s/changes", url.PathEscape(entityType))
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp api.ChangesResponse
	if err := c.doRequest(ctx, http.MethodGet, "get changes", path, nil, &resp); err != nil {
		return nil, err
	}

	changes := &models.RemoteChanges{
		Cursor:   resp.Cursor,
		Entities: make([]*models.SyncableEntity, 0, len(resp.Entities)),
	}
	for _, e := range resp.Entities {
		changes.Entities = append(changes.Entities, FromAPIEntity(e))
	}
	return changes, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	return c.doRequest(ctx, http.MethodGet, "health", "/health", nil, &resp)
}

// doRequest выполняет HTTP запрос. Ошибки транспорта и 5xx/429 возвращаются
// как NetworkError, остальные 4xx как ValidationError.
func (c *Client) doRequest(ctx context.Context, method, op, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return &models.ValidationError{Op: op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &models.ValidationError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.originID != "" {
		req.Header.Set(api.OriginHeader, c.originID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.NetworkError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			statusErr.Message = errResp.Error
			if errResp.Message != "" {
				statusErr.Message += ": " + errResp.Message
			}
		}
		if isTransientStatus(resp.StatusCode) {
			return &models.NetworkError{Op: op, Err: statusErr}
		}
		return &models.ValidationError{Op: op, Err: statusErr}
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &models.NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// ToAPIEntity конвертирует запись в формат передачи
func ToAPIEntity(e *models.SyncableEntity) api.Entity {
	return api.Entity{
		ID:           e.ID,
		EntityType:   e.EntityType,
		Version:      e.Version,
		BaseVersion:  e.BaseVersion,
		Fields:       e.Fields,
		Deleted:      e.IsDeleted,
		CreatedAt:    e.CreatedAt,
		LastModified: e.LastModified,
	}
}

// FromAPIEntity конвертирует запись сервера в подтвержденную локальную запись
func FromAPIEntity(e api.Entity) *models.SyncableEntity {
	entity := &models.SyncableEntity{
		ID:           e.ID,
		EntityType:   e.EntityType,
		Version:      e.Version,
		Fields:       e.Fields,
		IsDeleted:    e.Deleted,
		CreatedAt:    e.CreatedAt,
		LastModified: e.LastModified,
	}
	entity.MarkSynced()
	return entity
}
