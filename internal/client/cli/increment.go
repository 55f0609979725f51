package cli

import (
	"context"
	"fmt"
	"strconv"
)

// RunIncrement добавляет дельту к числовому полю записи
func (c *Cli) RunIncrement(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: offsync incr <table> <id> <field> <delta>")
	}

	table, id, field := args[0], args[1], args[2]

	delta, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("invalid delta %q: %w", args[3], err)
	}

	if err := c.engine.EnqueueIncrement(ctx, table, id, field, delta); err != nil {
		return fmt.Errorf("failed to increment field: %w", err)
	}

	c.io.Printf("Incremented %s/%s %s by %v\n", table, id, field, delta)
	return nil
}
