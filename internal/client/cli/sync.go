package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/scheduler"
	"github.com/iudanet/gophsync/internal/models"
)

// RunSync выполняет один цикл синхронизации всех типов и печатает результаты
func (c *Cli) RunSync(ctx context.Context) error {
	c.io.Println("Starting synchronization with server...")

	results, err := c.scheduler.RunOnce(ctx)
	if len(results) > 0 {
		if rerr := c.render("sync", syncResultTemplate, results); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	switch {
	case c.scheduler.State() == scheduler.StateConflict:
		c.io.Println("⚠️  Some records need manual resolution. Run 'gophsync conflicts' to review them.")
	case hasErrors(results):
		c.io.Println("⚠️  Some records were not synchronized and stay queued.")
	default:
		c.io.Println("✓ Synchronization completed")
	}
	return nil
}

func hasErrors(results []*models.SyncResult) bool {
	for _, r := range results {
		if r.Status == models.SyncStatusError {
			return true
		}
	}
	return false
}

// RunDaemon запускает планировщик и печатает переходы состояний до отмены ctx
func (c *Cli) RunDaemon(ctx context.Context) error {
	events, unsubscribe := c.scheduler.Subscribe(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			c.printEvent(ev)
		}
	}()

	// Первый проход сразу, дальше по интервалу
	c.scheduler.Trigger(scheduler.ReasonManual)
	err := c.scheduler.Run(ctx)

	unsubscribe()
	<-done

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (c *Cli) printEvent(ev scheduler.Event) {
	ts := ev.Time.Format("15:04:05")
	switch {
	case ev.Err != nil:
		c.io.Printf("[%s] %s -> %s: %v\n", ts, ev.From, ev.To, ev.Err)
	case ev.Attempt > 0 && ev.To == scheduler.StateRetrying:
		c.io.Printf("[%s] %s -> %s (attempt %d)\n", ts, ev.From, ev.To, ev.Attempt)
	default:
		c.io.Printf("[%s] %s -> %s (%s)\n", ts, ev.From, ev.To, ev.Reason)
	}
	for _, r := range ev.Results {
		c.io.Printf("          %s: %s, uploaded %d, downloaded %d, conflicts %d\n",
			r.EntityType, r.Status, r.UploadedCount, r.DownloadedCount, r.ConflictCount)
	}
}
