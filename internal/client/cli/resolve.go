package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
)

// Значения --take для resolve
const (
	TakeLocal  = "local"
	TakeRemote = "remote"
)

// ErrTakeRequired is returned when resolve can neither prompt nor use --take
var ErrTakeRequired = errors.New("--take local|remote or field overrides are required outside a terminal")

// RunResolve разрешает открытый конфликт записи.
// take выбирает сторону целиком; без take в терминале каждое спорное поле
// выбирается интерактивно. assignments вида key=value применяются последними.
func (c *Cli) RunResolve(ctx context.Context, entityType, id, take string, assignments []string) error {
	m, err := c.manager(entityType)
	if err != nil {
		return err
	}

	overrides, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	record, err := findConflict(ctx, m, id)
	if err != nil {
		return err
	}
	if record.Local == nil || record.Remote == nil {
		return fmt.Errorf("conflict on %s/%s: %w", entityType, id, conflict.ErrMissingSide)
	}

	var resolved *models.SyncableEntity
	switch take {
	case TakeLocal:
		resolved = record.Local.Clone()
	case TakeRemote:
		resolved = record.Remote.Clone()
	case "":
		switch {
		case c.io.IsTerminal():
			resolved, err = c.chooseFields(record)
			if err != nil {
				return err
			}
		case len(overrides) > 0:
			// Неспорные поля берутся из слияния, спорные остаются локальными
			resolved = conflict.Merge(record.Base, record.Local, record.Remote).Partial()
		default:
			return ErrTakeRequired
		}
	default:
		return fmt.Errorf("unknown --take value %q, expected %s or %s", take, TakeLocal, TakeRemote)
	}

	for field, value := range overrides {
		conflict.SetField(resolved, field, value)
	}

	if err := c.scheduler.Resolve(ctx, entityType, id, resolved); err != nil {
		return fmt.Errorf("failed to resolve %s/%s: %w", entityType, id, err)
	}

	c.io.Printf("✓ Conflict on %s/%s resolved\n", entityType, id)
	c.io.Println("Run 'gophsync sync' to send the resolution to the server.")
	return nil
}

// chooseFields спрашивает значение каждого спорного поля
func (c *Cli) chooseFields(record *models.ConflictRecord) (*models.SyncableEntity, error) {
	resolved := conflict.Merge(record.Base, record.Local, record.Remote).Partial()

	c.io.Printf("Conflict on %s/%s\n", record.EntityType, record.EntityID)
	for _, fc := range record.Conflicts {
		c.io.Println()
		c.io.Printf("Field %s\n", fc.Field)
		c.io.Printf("   base:   %s\n", formatValue(fc.BaseValue))
		c.io.Printf("   local:  %s\n", formatValue(fc.LocalValue))
		c.io.Printf("   remote: %s\n", formatValue(fc.RemoteValue))

		answer, err := c.io.ReadInput("Keep [l]ocal, [r]emote or enter a JSON value (default local): ")
		if err != nil {
			return nil, fmt.Errorf("failed to read choice: %w", err)
		}

		switch answer {
		case "", "l", TakeLocal:
			conflict.TakeField(resolved, record.Local, fc.Field)
		case "r", TakeRemote:
			conflict.TakeField(resolved, record.Remote, fc.Field)
		default:
			conflict.SetField(resolved, fc.Field, parseValue(answer))
		}
	}
	c.io.Println()

	return resolved, nil
}
