package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/storage"
)

// RunDelete помечает запись удаленной. В терминале без force спрашивает подтверждение.
func (c *Cli) RunDelete(ctx context.Context, entityType, id string, force bool) error {
	if _, err := c.manager(entityType); err != nil {
		return err
	}

	entity, err := c.data.Get(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("%s not found with ID: %s", entityType, id)
		}
		return err
	}

	if !force && c.io.IsTerminal() {
		if err := c.render("entity", entityTemplate, entity); err != nil {
			return err
		}
		c.io.Println()

		// Запрашиваем подтверждение
		confirm, err := c.io.ReadInput("Are you sure you want to delete this record? (yes/no): ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if confirm != "yes" && confirm != "y" {
			c.io.Println("Deletion cancelled.")
			return nil
		}
	}

	deleted, err := c.data.Delete(ctx, entityType, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entityType, err)
	}

	c.io.Printf("✓ Deleted %s %s (version %d)\n", entityType, deleted.ID, deleted.Version)
	c.io.Println("Note: the record is kept as a tombstone until the server acknowledges the deletion.")
	return nil
}
