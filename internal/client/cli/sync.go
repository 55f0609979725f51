package cli

import (
	"context"
	"fmt"
)

// RunSync выполняет один полный цикл push+pull
func (c *Cli) RunSync(ctx context.Context, args []string) error {
	result, err := c.engine.RunFullCycle(ctx, false, false)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	c.io.Printf("Sync %s: pushed %d, pulled %d, merged %d\n",
		result.Status, result.Pushed, result.Pulled, result.Merged)

	for _, syncErr := range result.Errors {
		c.io.Printf("  error %s/%s: %s\n", syncErr.Table, syncErr.EntityID, syncErr.Message)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("sync completed with %d error(s)", len(result.Errors))
	}
	return nil
}
