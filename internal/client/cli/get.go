package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/storage"
)

// RunGet печатает запись целиком, в JSON если asJSON
func (c *Cli) RunGet(ctx context.Context, entityType, id string, asJSON bool) error {
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

	if asJSON {
		enc := json.NewEncoder(c.io)
		enc.SetIndent("", "  ")
		return enc.Encode(entity)
	}

	return c.render("entity", entityTemplate, entity)
}
