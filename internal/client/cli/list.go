package cli

import (
	"context"
	"sort"

	"github.com/iudanet/gophsync/internal/models"
)

// RunList печатает живые записи типа, последние измененные первыми
func (c *Cli) RunList(ctx context.Context, entityType string) error {
	if _, err := c.manager(entityType); err != nil {
		return err
	}

	entities, err := c.data.List(ctx, entityType)
	if err != nil {
		return err
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].LastModified.After(entities[j].LastModified)
	})

	return c.render("list", entityListTemplate, struct {
		Type     string
		Entities []*models.SyncableEntity
	}{Type: entityType, Entities: entities})
}
