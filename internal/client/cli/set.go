package cli

import (
	"context"
	"fmt"
)

// RunSet устанавливает одно поле записи
func (c *Cli) RunSet(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: offsync set <table> <id> <field> <value>")
	}

	table, id, field := args[0], args[1], args[2]
	value := parseValue(args[3])

	if err := c.engine.EnqueueSet(ctx, table, id, field, value); err != nil {
		return fmt.Errorf("failed to set field: %w", err)
	}

	c.io.Printf("Set %s/%s %s=%v\n", table, id, field, value)
	return nil
}
