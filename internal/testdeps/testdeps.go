// Package testdeps starts the containers integration tests run against.
package testdeps

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcvalkey "github.com/testcontainers/testcontainers-go/modules/valkey"

	"github.com/pitabwire/barberdesk/data"
)

const (
	// ValkeyImage is the image used for redis and valkey backed tests.
	ValkeyImage = "docker.io/valkey/valkey:latest"

	// PostgresImage is the image used for postgres backed tests.
	PostgresImage = "docker.io/postgres:17-alpine"

	DBUser     = "barberdesk"
	DBPassword = "b@rb3r"
	DBName     = "barberdesk_test"
)

func skipUnlessContainers(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container backed test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// Valkey starts a valkey container and returns its redis:// connection string.
// The container is terminated when the test finishes.
func Valkey(t *testing.T) data.DSN {
	t.Helper()
	skipUnlessContainers(t)

	ctx := t.Context()
	container, err := tcvalkey.Run(ctx, ValkeyImage)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start valkey container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to read valkey connection string: %v", err)
	}
	return data.DSN(uri)
}

// Postgres starts a postgres container and returns its connection string.
// The container is terminated when the test finishes.
func Postgres(t *testing.T) data.DSN {
	t.Helper()
	skipUnlessContainers(t)

	ctx := t.Context()
	container, err := tcpostgres.Run(ctx, PostgresImage,
		tcpostgres.WithDatabase(DBName),
		tcpostgres.WithUsername(DBUser),
		tcpostgres.WithPassword(DBPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to read postgres connection string: %v", err)
	}
	return data.DSN(uri)
}
