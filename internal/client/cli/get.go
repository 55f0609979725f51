package cli

import (
	"context"
	"fmt"
	"sort"
)

// RunGet выводит одну запись со всеми полями
func (c *Cli) RunGet(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: offsync get <table> <id>")
	}

	table, id := args[0], args[1]

	record, err := c.engine.GetRecord(ctx, table, id)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	c.io.Printf("ID:        %s\n", record.ID)
	c.io.Printf("Updated:   %s (device %s)\n", record.UpdatedAt.Format("2006-01-02 15:04:05"), record.DeviceID)
	c.io.Printf("Version:   %d\n", record.Version)
	if record.Deleted {
		c.io.Println("Deleted:   yes")
	}

	names := make([]string, 0, len(record.Fields))
	for name := range record.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c.io.Printf("  %s: %v\n", name, record.Fields[name])
	}

	return nil
}
