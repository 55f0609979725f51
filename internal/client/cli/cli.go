package cli

import (
	"fmt"

	"github.com/iudanet/offsync/internal/client/iocli"
	"github.com/iudanet/offsync/internal/client/sync"
)

// Cli обёртка команд вокруг движка синхронизации. Все команды
// работают с локальным состоянием немедленно; сеть нужна только
// команде sync и фоновому режиму run.
type Cli struct {
	engine *sync.Engine
	io     iocli.IO
}

func New(engine *sync.Engine, io iocli.IO) *Cli {
	return &Cli{
		engine: engine,
		io:     io,
	}
}

func PrintUsage() {
	fmt.Println("Offsync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  offsync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version            Show version information")
	fmt.Println("  --server URL         Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH            Path to local database (default: offsync-client.db)")
	fmt.Println("  --user ID            User identity (default: $OFFSYNC_USER)")
	fmt.Println("  --token TOKEN        Access token (default: $OFFSYNC_TOKEN)")
	fmt.Println("  --tables LIST        Comma-separated tables to sync (default: tasks)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create <table> [k=v ...]          Create a record")
	fmt.Println("  set <table> <id> <field> <value>  Set one field")
	fmt.Println("  incr <table> <id> <field> <d>     Add delta to a numeric field")
	fmt.Println("  delete <table> <id>               Delete a record")
	fmt.Println("  get <table> <id>                  Show one record")
	fmt.Println("  list <table>                      List records of a table")
	fmt.Println("  status                            Show sync status and pending queue")
	fmt.Println("  conflicts                         Show recent conflict resolutions")
	fmt.Println("  sync                              Run one push+pull cycle now")
	fmt.Println("  run                               Keep syncing until interrupted")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  offsync create tasks title=Groceries done=false")
	fmt.Println("  offsync set tasks b692f5c0 title 'Groceries and milk'")
	fmt.Println("  offsync incr counters daily-steps count 250")
	fmt.Println("  offsync sync")
}
