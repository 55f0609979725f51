package cli

import (
	"context"
	"fmt"
)

// RunStatus выводит состояние движка и очередь несинхронизированного
func (c *Cli) RunStatus(ctx context.Context, args []string) error {
	state, lastError := c.engine.Status()

	c.io.Printf("State:     %s\n", state)
	c.io.Printf("Device:    %s\n", c.engine.DeviceID())
	if lastError != "" {
		c.io.Printf("Last error: %s\n", lastError)
	}

	summary, err := c.engine.GetPendingSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending summary: %w", err)
	}

	c.io.Printf("Pending:   %d operation(s) across %d record(s)\n",
		summary.Operations, len(summary.Entities))
	for _, key := range summary.Entities {
		c.io.Printf("  %s/%s\n", key.Table, key.EntityID)
	}

	return nil
}
