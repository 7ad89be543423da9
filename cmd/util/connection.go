package util

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/logger"
)

// errUnknownDatabase is the server error for a schema that does not exist yet
const errUnknownDatabase = 1049

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// Timeout bounds the dial. Zero uses the driver default.
	Timeout time.Duration
}

// NewConnectionConfig returns the connection settings of cfg for one database
func NewConnectionConfig(cfg config.ConnectionConfig, database string) *ConnectionConfig {
	return &ConnectionConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: database,
		User:     cfg.User,
		Password: cfg.Password,
	}
}

// Connect establishes a database connection using the provided configuration
func Connect(ctx context.Context, config *ConnectionConfig) (*sql.DB, error) {
	log := logger.Get()

	log.Debug("Attempting database connection",
		"host", config.Host,
		"port", config.Port,
		"database", config.Database,
		"user", config.User,
	)

	connector, err := mysql.NewConnector(DriverConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		log.Debug("Database ping failed", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Debug("Database connection established successfully")
	return db, nil
}

// DriverConfig builds the driver configuration. Statements are executed one at a
// time, so multi-statement mode stays off.
func DriverConfig(config *ConnectionConfig) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	cfg.User = config.User
	cfg.Passwd = config.Password
	cfg.DBName = config.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if config.Timeout > 0 {
		cfg.Timeout = config.Timeout
	}
	return cfg
}

// IsUnknownDatabase reports whether err is the server's "unknown database" error
func IsUnknownDatabase(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errUnknownDatabase
}
