// Package testsupport starts the throwaway Postgres and Redis containers used
// by integration tests.
package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresUser     = "user"
	PostgresPassword = "password"
	PostgresDB       = "fern"
)

// Postgres is a running Postgres container.
type Postgres struct {
	Host string
	Port string
}

// DSN returns a lib/pq keyword DSN for the container.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, PostgresUser, PostgresPassword, PostgresDB)
}

// StartPostgres runs postgres:15-alpine for the duration of the test.
func StartPostgres(t *testing.T) Postgres {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     PostgresUser,
			"POSTGRES_PASSWORD": PostgresPassword,
			"POSTGRES_DB":       PostgresDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container := start(t, ctx, req)
	host, port := endpoint(t, ctx, container, "5432")
	return Postgres{Host: host, Port: port}
}

// StartRedis runs redis:7-alpine and returns its host:port address.
func StartRedis(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container := start(t, ctx, req)
	return endpoint(t, ctx, container, "6379")
}

func start(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return container
}

func endpoint(t *testing.T, ctx context.Context, container testcontainers.Container, port string) (string, string) {
	t.Helper()
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to read container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to read mapped port %s: %v", port, err)
	}
	return host, mapped.Port()
}
