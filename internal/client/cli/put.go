package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// RunPut создает запись или обновляет поля существующей.
// Пустой id создает запись с новым UUID; unset удаляет поля.
func (c *Cli) RunPut(ctx context.Context, entityType, id string, assignments, unset []string) error {
	if _, err := c.manager(entityType); err != nil {
		return err
	}

	changes, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	var current *models.SyncableEntity
	if id != "" {
		current, err = c.data.Get(ctx, entityType, id)
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return err
		}
	}

	var saved *models.SyncableEntity
	if current == nil {
		if len(unset) > 0 {
			return fmt.Errorf("cannot unset fields of a new %s record", entityType)
		}
		saved, err = c.data.Create(ctx, entityType, id, changes)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", entityType, err)
		}
		c.io.Printf("✓ Created %s %s (version %d)\n", entityType, saved.ID, saved.Version)
	} else {
		fields := models.CloneFields(current.Fields)
		if fields == nil {
			fields = make(map[string]any, len(changes))
		}
		for k, v := range changes {
			fields[k] = v
		}
		for _, k := range unset {
			delete(fields, k)
		}
		saved, err = c.data.Update(ctx, entityType, id, fields)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", entityType, err)
		}
		c.io.Printf("✓ Updated %s %s (version %d)\n", entityType, saved.ID, saved.Version)
	}

	c.io.Println("Run 'gophsync sync' to send the change to the server.")
	return nil
}
