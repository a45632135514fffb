package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the pure Go modernc driver.
	DriverSQLite = "sqlite"
)

// Config holds SQL connection settings.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// ConnectTimeoutSeconds bounds the retry loop on startup; 0 -> 30.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" envconfig:"DB_CONNECT_TIMEOUT_SECONDS"`
}

func (c Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	switch d {
	case "", "pq", "postgresql":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	}
	return d
}

// DSN returns the connection string understood by database/sql.
func (c Config) DSN() string {
	if c.driver() == DriverSQLite {
		return c.Path + "?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.sslMode(),
	)
}

// MigrationURL returns the URL form used by golang-migrate.
func (c Config) MigrationURL() string {
	if c.driver() == DriverSQLite {
		return "sqlite://" + c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.sslMode(),
	}
	return u.String()
}

func (c Config) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.driver() {
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", c.Driver)
	}
	return nil
}
