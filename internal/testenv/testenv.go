// Package testenv starts throwaway backing services for adapter tests.
// Every helper skips the test when -short is set or when no container
// provider is available.
package testenv

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcNats "github.com/testcontainers/testcontainers-go/modules/nats"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcValKey "github.com/testcontainers/testcontainers-go/modules/valkey"
)

const (
	// ValkeyImage is a Redis protocol compatible server.
	ValkeyImage = "valkey/valkey:8-alpine"
	// PostgresImage is the PostgreSQL server image.
	PostgresImage = "postgres:16-alpine"
	// NatsImage is the NATS server image, started with JetStream enabled.
	NatsImage = "nats:2.10-alpine"

	startupTimeout = 2 * time.Minute
)

func skipShort(t *testing.T) context.Context {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container backed test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	t.Cleanup(cancel)
	return ctx
}

// Redis starts a Valkey server and returns its redis:// URL.
func Redis(t *testing.T) string {
	t.Helper()
	ctx := skipShort(t)

	c, err := tcValKey.Run(ctx, ValkeyImage)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("valkey container unavailable: %v", err)
	}
	url, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("valkey connection string: %v", err)
	}
	return url
}

// Postgres starts a PostgreSQL server and returns its connection URL.
func Postgres(t *testing.T) string {
	t.Helper()
	ctx := skipShort(t)

	c, err := tcPostgres.Run(ctx, PostgresImage,
		tcPostgres.WithDatabase("queueworker"),
		tcPostgres.WithUsername("queueworker"),
		tcPostgres.WithPassword("queueworker"),
		tcPostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	url, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return url
}

// NATS starts a NATS server and returns its nats:// URL.
func NATS(t *testing.T) string {
	t.Helper()
	ctx := skipShort(t)

	c, err := tcNats.Run(ctx, NatsImage)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("nats container unavailable: %v", err)
	}
	url, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("nats connection string: %v", err)
	}
	return url
}
