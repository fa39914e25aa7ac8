package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/assetlab-io/assetx/pkg/retry"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client wraps a ClickHouse connection scoped to a single target database.
type Client struct {
	Logger *zap.Logger
	Db     driver.Conn
	Name   string // target database name
}

const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// New connects to ClickHouse (CLICKHOUSE_ADDR) and ensures the target
// database exists. The initial connection is retried with backoff because
// the pipeline usually races the database container at startup.
func New(ctx context.Context, logger *zap.Logger, dbName string) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	username, password := extractCredentials(dsn)

	options := &clickhouse.Options{
		Addr: []string{extractHost(dsn)},
		Auth: clickhouse.Auth{
			Database: "default", // connect to default first, the target may not exist yet
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: utils.EnvDuration("CLICKHOUSE_CONN_MAX_LIFETIME", time.Hour),
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	client := &Client{Logger: logger, Name: SanitizeName(dbName)}

	err := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("open clickhouse connection: %w", err)
		}
		if err := conn.Ping(connCtx); err != nil {
			return fmt.Errorf("ping clickhouse: %w", err)
		}
		createQuery := fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, client.Name)
		if err := conn.Exec(connCtx, createQuery); err != nil {
			return fmt.Errorf("create database %s: %w", client.Name, err)
		}
		client.Db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	client.Logger.Info("ClickHouse connection established",
		zap.String("database", client.Name),
		zap.String("addr", extractHost(dsn)),
	)
	return client, nil
}

// Exec runs a DDL or write statement against the connection.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.Db.Exec(ctx, query, args...)
}

// Query runs a read statement against the connection.
func (c *Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.Db.Query(ctx, query, args...)
}

// PrepareBatch prepares a batch insert.
func (c *Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

// Health pings the connection.
func (c *Client) Health(ctx context.Context) error {
	return c.Db.Ping(ctx)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.Db == nil {
		return nil
	}
	return c.Db.Close()
}

// Engine returns the table engine clause. When CLICKHOUSE_REPLICATED=true the
// Replicated variant is used with auto-generated UUID ZooKeeper paths.
func Engine(engine, versionCol string) string {
	if utils.Env("CLICKHOUSE_REPLICATED", "false") == "true" {
		engine = "Replicated" + engine
	}
	if versionCol != "" {
		return fmt.Sprintf("%s(%s)", engine, versionCol)
	}
	return engine
}

// SanitizeName sanitizes the provided database name to be compatible with ClickHouse.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// extractHost pulls the host:port out of a clickhouse:// DSN.
func extractHost(dsn string) string {
	cleaned := strings.TrimPrefix(dsn, "clickhouse://")
	cleaned = strings.TrimPrefix(cleaned, "tcp://")
	if idx := strings.Index(cleaned, "@"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}
	if idx := strings.IndexAny(cleaned, "/?"); idx != -1 {
		cleaned = cleaned[:idx]
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "localhost:9000"
	}
	return cleaned
}

// extractCredentials extracts username and password from a DSN string.
// Defaults to "default" with an empty password when absent.
func extractCredentials(dsn string) (string, string) {
	dsn = strings.TrimPrefix(dsn, "clickhouse://")
	dsn = strings.TrimPrefix(dsn, "tcp://")

	atIdx := strings.Index(dsn, "@")
	if atIdx == -1 {
		return "default", ""
	}
	credentials := dsn[:atIdx]
	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return credentials, ""
	}
	return credentials[:colonIdx], credentials[colonIdx+1:]
}
