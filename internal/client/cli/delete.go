package cli

import (
	"context"
	"fmt"
)

// RunDelete помечает запись удалённой
func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: offsync delete <table> <id>")
	}

	table, id := args[0], args[1]

	if err := c.engine.EnqueueDelete(ctx, table, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	c.io.Printf("Deleted %s/%s\n", table, id)
	return nil
}
