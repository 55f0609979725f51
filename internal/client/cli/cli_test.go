package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// captureIO собирает вывод команд для проверок
type captureIO struct {
	out strings.Builder
}

func (c *captureIO) Println(a ...any) {
	c.out.WriteString(fmt.Sprintln(a...))
}

func (c *captureIO) Printf(format string, a ...any) {
	fmt.Fprintf(&c.out, format, a...)
}

func (c *captureIO) ReadInput(string) (string, error) {
	return "", io.EOF
}

// nopBackend оффлайновый backend: команды CRUD сети не требуют
type nopBackend struct{}

func (nopBackend) Pull(context.Context, string, int64) ([]api.Row, error) { return nil, nil }
func (nopBackend) Push(context.Context, string, []api.Change) error      { return nil }
func (nopBackend) Health(context.Context) error                          { return nil }

func setupTestCli(t *testing.T) (*Cli, *captureIO) {
	t.Helper()
	ctx := context.Background()

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := sync.Config{
		Tables: []models.TableConfig{{Table: "tasks"}},
	}

	engine, err := sync.NewEngine(ctx, cfg, store, nopBackend{}, "user1", logger)
	require.NoError(t, err)

	capture := &captureIO{}
	return New(engine, capture), capture
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		expected any
		name     string
		input    string
	}{
		{name: "number", input: "42", expected: float64(42)},
		{name: "float", input: "1.5", expected: 1.5},
		{name: "bool", input: "true", expected: true},
		{name: "string", input: "hello", expected: "hello"},
		{name: "quoted string", input: `"42"`, expected: "42"},
		{name: "string with spaces", input: "hello world", expected: "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseValue(tt.input))
		})
	}
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"title=Groceries", "count=3", "done=false"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "Groceries",
		"count": float64(3),
		"done":  false,
	}, fields)

	_, err = parseFields([]string{"no-equals-sign"})
	assert.Error(t, err)

	_, err = parseFields([]string{"=value"})
	assert.Error(t, err)
}

func TestCli_CreateListGet(t *testing.T) {
	ctx := context.Background()
	c, capture := setupTestCli(t)

	require.NoError(t, c.RunCreate(ctx, []string{"tasks", "title=Groceries", "done=false"}))
	assert.Contains(t, capture.out.String(), "Created tasks/")

	capture.out.Reset()
	require.NoError(t, c.RunList(ctx, []string{"tasks"}))
	assert.Contains(t, capture.out.String(), "Found 1 record(s) in tasks")
}

func TestCli_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c, capture := setupTestCli(t)

	require.NoError(t, c.RunCreate(ctx, []string{"tasks", "title=Old"}))

	// Вытаскиваем id из вывода create
	out := capture.out.String()
	id := strings.TrimSpace(strings.TrimPrefix(out, "Created tasks/"))

	require.NoError(t, c.RunSet(ctx, []string{"tasks", id, "title", "New"}))

	capture.out.Reset()
	require.NoError(t, c.RunGet(ctx, []string{"tasks", id}))
	assert.Contains(t, capture.out.String(), "title: New")
}

func TestCli_DeleteHidesFromList(t *testing.T) {
	ctx := context.Background()
	c, capture := setupTestCli(t)

	require.NoError(t, c.RunCreate(ctx, []string{"tasks", "title=Doomed"}))
	id := strings.TrimSpace(strings.TrimPrefix(capture.out.String(), "Created tasks/"))

	require.NoError(t, c.RunDelete(ctx, []string{"tasks", id}))

	capture.out.Reset()
	require.NoError(t, c.RunList(ctx, []string{"tasks"}))
	assert.Contains(t, capture.out.String(), "No records in tasks")
}

func TestCli_StatusShowsPending(t *testing.T) {
	ctx := context.Background()
	c, capture := setupTestCli(t)

	require.NoError(t, c.RunCreate(ctx, []string{"tasks", "title=One"}))

	capture.out.Reset()
	require.NoError(t, c.RunStatus(ctx, nil))

	out := capture.out.String()
	assert.Contains(t, out, "State:")
	assert.Contains(t, out, "1 operation(s) across 1 record(s)")
}

func TestCli_UsageErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestCli(t)

	assert.Error(t, c.RunCreate(ctx, nil))
	assert.Error(t, c.RunSet(ctx, []string{"tasks"}))
	assert.Error(t, c.RunIncrement(ctx, []string{"tasks", "id", "field", "not-a-number"}))
	assert.Error(t, c.RunDelete(ctx, []string{"tasks"}))
	assert.Error(t, c.RunGet(ctx, []string{"tasks"}))
	assert.Error(t, c.RunList(ctx, nil))
}
