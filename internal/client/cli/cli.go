// Package cli implements the client commands on top of the local write path,
// the sync managers and the scheduler.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/iudanet/gophsync/internal/client/data"
	"github.com/iudanet/gophsync/internal/client/iocli"
	"github.com/iudanet/gophsync/internal/client/scheduler"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/sync"
)

// ErrUnknownEntityType is returned for a type that is not configured for sync
var ErrUnknownEntityType = errors.New("unknown entity type")

type Cli struct {
	io        iocli.IO
	data      data.Service
	scheduler *scheduler.Scheduler
	meta      storage.MetadataStorage
	managers  map[string]sync.Manager
	types     []string
}

func New(
	io iocli.IO,
	dataService data.Service,
	sched *scheduler.Scheduler,
	managers []sync.Manager,
	meta storage.MetadataStorage,
) *Cli {
	c := &Cli{
		io:        io,
		data:      dataService,
		scheduler: sched,
		meta:      meta,
		managers:  make(map[string]sync.Manager, len(managers)),
	}
	for _, m := range managers {
		c.managers[m.EntityType()] = m
		c.types = append(c.types, m.EntityType())
	}
	return c
}

// manager возвращает менеджер синхронизации типа или ошибку для неизвестного типа
func (c *Cli) manager(entityType string) (sync.Manager, error) {
	m, ok := c.managers[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (configured: %s)", ErrUnknownEntityType, entityType, strings.Join(c.types, ", "))
	}
	return m, nil
}

// render выполняет шаблон и пишет результат в c.io
func (c *Cli) render(name, text string, data any) error {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"json": formatValue,
	"ts":   formatTime,
}

// formatValue печатает значение поля в JSON
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

// parseAssignments разбирает аргументы вида key=value.
// Значение читается как JSON литерал, иначе берется как строка.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field assignment %q, expected key=value", arg)
		}
		fields[key] = parseValue(raw)
	}
	return fields, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
