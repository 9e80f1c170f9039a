package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	chstore "solana-airdrop/internal/storage/clickhouse"
	"solana-airdrop/internal/storage/migrations"
)

// startClickhouse runs a ClickHouse container and returns a DSN naming a
// database that does not exist yet.
func startClickhouse(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return fmt.Sprintf("clickhouse://%s:%s/airdrop_test", host, port.Port())
}

// setupTestDB starts ClickHouse and migrates it the way the server does.
func setupTestDB(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	conn, err := migrations.RunClickhouseMigrations(context.Background(), startClickhouse(t))
	require.NoError(t, err, "failed to apply migrations")

	return conn, func() { conn.Close() }
}
