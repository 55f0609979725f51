package cli

import (
	"context"
	"fmt"
)

// RunCreate создает запись из аргументов key=value
func (c *Cli) RunCreate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing table. Usage: offsync create <table> [key=value ...]")
	}

	table := args[0]
	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	id, err := c.engine.EnqueueCreate(ctx, table, "", fields)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	c.io.Printf("Created %s/%s\n", table, id)
	return nil
}
