package cli

import (
	"context"
	"fmt"
)

// RunList выводит записи таблицы (без tombstone'ов)
func (c *Cli) RunList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: offsync list <table>")
	}

	table := args[0]

	records, err := c.engine.ListRecords(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(records) == 0 {
		c.io.Printf("No records in %s.\n", table)
		return nil
	}

	c.io.Printf("Found %d record(s) in %s:\n", len(records), table)
	for i, record := range records {
		c.io.Printf("%d. %s (updated %s)\n", i+1, record.ID, record.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
