package cli

import (
	"context"
	"fmt"
)

// RunConflicts выводит последние разрешённые конфликты
func (c *Cli) RunConflicts(ctx context.Context, args []string) error {
	conflicts, err := c.engine.RecentConflicts(ctx, 20)
	if err != nil {
		return fmt.Errorf("failed to get conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		c.io.Println("No conflicts recorded.")
		return nil
	}

	for _, conflict := range conflicts {
		c.io.Printf("%s %s/%s field %q: %s won (%s) local=%v remote=%v\n",
			conflict.Timestamp.Format("2006-01-02 15:04:05"),
			conflict.EntityType,
			conflict.EntityID,
			conflict.Field,
			conflict.Winner,
			conflict.Strategy,
			conflict.LocalValue,
			conflict.RemoteValue)
	}

	return nil
}
