package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/models"
)

// RunConflicts печатает открытые конфликты типа, или всех типов если тип пуст
func (c *Cli) RunConflicts(ctx context.Context, entityType string) error {
	managers := make([]sync.Manager, 0, len(c.types))
	if entityType != "" {
		m, err := c.manager(entityType)
		if err != nil {
			return err
		}
		managers = append(managers, m)
	} else {
		for _, t := range c.types {
			managers = append(managers, c.managers[t])
		}
	}

	var records []*models.ConflictRecord
	for _, m := range managers {
		open, err := m.GetPendingConflicts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s conflicts: %w", m.EntityType(), err)
		}
		records = append(records, open...)
	}

	return c.render("conflicts", conflictListTemplate, records)
}

// findConflict возвращает открытый конфликт записи
func findConflict(ctx context.Context, m sync.Manager, id string) (*models.ConflictRecord, error) {
	open, err := m.GetPendingConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s conflicts: %w", m.EntityType(), err)
	}
	for _, record := range open {
		if record.EntityID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("no open conflict for %s/%s", m.EntityType(), id)
}
