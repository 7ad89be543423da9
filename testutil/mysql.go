// Package testutil provides shared test utilities for myschema
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
)

var suppressedLogger = log.New(io.Discard, "", 0)

// MySQLVersion returns the MySQL image tag to use for testing.
// It reads from the MYSCHEMA_MYSQL_VERSION environment variable,
// defaulting to "8.0" if not set.
func MySQLVersion() string {
	if version := os.Getenv("MYSCHEMA_MYSQL_VERSION"); version != "" {
		return version
	}
	return "8.0"
}

// MajorVersion returns the major component of MySQLVersion
func MajorVersion() int {
	major, _, _ := strings.Cut(MySQLVersion(), ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 8
	}
	return n
}

// ContainerInfo holds MySQL container connection details
type ContainerInfo struct {
	Container testcontainers.Container
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	DSN       string
	Conn      *sql.DB
}

// SetupMySQLContainer creates a new MySQL test container. The root account is used so
// tests can create and drop databases freely.
func SetupMySQLContainer(ctx context.Context, t *testing.T) *ContainerInfo {
	return SetupMySQLContainerWithDB(ctx, t, "testdb", "root", "testpass")
}

// SetupMySQLContainerWithDB creates a new MySQL test container with custom database settings
func SetupMySQLContainerWithDB(ctx context.Context, t *testing.T, database, username, password string) *ContainerInfo {
	t.Helper()

	mysqlContainer, err := mysql.Run(ctx,
		"mysql:"+MySQLVersion(),
		mysql.WithDatabase(database),
		mysql.WithUsername(username),
		mysql.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(90*time.Second)),
		testcontainers.WithLogger(suppressedLogger),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}

	testDSN, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	conn, err := sql.Open("mysql", testDSN)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	containerHost, err := mysqlContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	containerPort, err := mysqlContainer.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return &ContainerInfo{
		Container: mysqlContainer,
		Host:      containerHost,
		Port:      containerPort.Int(),
		User:      username,
		Password:  password,
		Database:  database,
		DSN:       testDSN,
		Conn:      conn,
	}
}

// Terminate cleans up the container and connection
func (ci *ContainerInfo) Terminate(ctx context.Context, t *testing.T) {
	ci.Conn.Close()
	if err := ci.Container.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}

// SetEnvPassword sets the MYSCHEMA_PASSWORD environment variable
func SetEnvPassword(password string) {
	os.Setenv("MYSCHEMA_PASSWORD", password)
}
