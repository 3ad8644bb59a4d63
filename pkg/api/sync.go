package api

import "time"

// Entity представляет запись в формате передачи между клиентом и сервером
type Entity struct {
	CreatedAt    time.Time      `json:"created_at"`
	LastModified time.Time      `json:"last_modified"`
	Fields       map[string]any `json:"fields"`
	ID           string         `json:"id"`
	EntityType   string         `json:"entity_type"`
	Version      int64          `json:"version"`      // версия, которую предлагает клиент
	BaseVersion  int64          `json:"base_version"` // версия сервера, от которой сделано изменение
	Deleted      bool           `json:"deleted"`
}

// UploadBatchRequest представляет пакет локальных изменений
type UploadBatchRequest struct {
	Entities []Entity `json:"entities"`
	OriginID string   `json:"origin_id,omitempty"` // идентификатор реплики-отправителя
}

// UploadResult представляет результат применения одной записи пакета
type UploadResult struct {
	Current *Entity `json:"current,omitempty"` // текущая версия сервера при конфликте
	ID      string  `json:"id"`
	Status  string  `json:"status"` // applied, duplicate, conflict, rejected, retry
	Message string  `json:"message,omitempty"`
	Version int64   `json:"version"`
}

// UploadBatchResponse представляет ответ сервера на пакет
type UploadBatchResponse struct {
	Results []UploadResult `json:"results"`
}

// ChangesResponse представляет изменения сервера после курсора
type ChangesResponse struct {
	Cursor   time.Time `json:"cursor"` // курсор для следующего запроса
	Entities []Entity  `json:"entities"`
}
