package cli

import (
	"context"

	"github.com/iudanet/offsync/internal/client/sync"
)

// RunDaemon запускает координатор до отмены контекста: дебаунс
// триггеров, периодические циклы и GC tombstone'ов. Итог каждого
// цикла печатается по мере завершения.
func (c *Cli) RunDaemon(ctx context.Context, args []string) error {
	unsubscribe := c.engine.OnCycleComplete(func(result sync.CycleResult) {
		c.io.Printf("Cycle %s: pushed %d, pulled %d, merged %d, errors %d\n",
			result.Status, result.Pushed, result.Pulled, result.Merged, len(result.Errors))
	})
	defer unsubscribe()

	c.engine.RequestSync()
	c.engine.Run(ctx)
	return nil
}
