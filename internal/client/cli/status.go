package cli

import (
	"context"
	"fmt"
	"time"
)

type typeStatus struct {
	LastSyncedAt time.Time
	EntityType   string
	Pending      int
	Conflicts    int
}

// RunStatus печатает состояние синхронизации по каждому типу
func (c *Cli) RunStatus(ctx context.Context) error {
	originID, err := c.meta.OriginID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get replica id: %w", err)
	}

	rows := make([]typeStatus, 0, len(c.types))
	var pending, conflicts int
	for _, t := range c.types {
		m := c.managers[t]

		count, err := m.PendingCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to count pending %s records: %w", t, err)
		}
		open, err := m.GetPendingConflicts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s conflicts: %w", t, err)
		}
		checkpoint, err := c.meta.GetCheckpoint(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to get %s checkpoint: %w", t, err)
		}

		rows = append(rows, typeStatus{
			EntityType:   t,
			LastSyncedAt: checkpoint.LastSyncedAt,
			Pending:      count,
			Conflicts:    len(open),
		})
		pending += count
		conflicts += len(open)
	}

	if err := c.render("status", statusTemplate, struct {
		OriginID string
		Types    []typeStatus
	}{OriginID: originID, Types: rows}); err != nil {
		return err
	}

	c.io.Println()
	switch {
	case conflicts > 0:
		c.io.Printf("⚠️  %d conflict(s) wait for manual resolution. Run 'gophsync conflicts'.\n", conflicts)
	case pending > 0:
		c.io.Printf("⚠️  Pending sync: %d record(s) waiting to be synchronized\n", pending)
		c.io.Println("Run 'gophsync sync' to synchronize with server.")
	default:
		c.io.Println("✓ All data synchronized with server")
	}
	return nil
}
