package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlCreateTableTmpl = `CREATE TABLE IF NOT EXISTS frames (
		ID          BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		Identifier  VARCHAR(64) NOT NULL,
		Source      VARCHAR(64) NOT NULL,
		Mode        VARCHAR(16) NOT NULL,
		Seq         BIGINT,
		Time        BIGINT,
		Length      INT,
		Data        MEDIUMTEXT
	);`
	mysqlInsertFrameTmpl = `INSERT INTO frames (
		Identifier,
		Source,
		Mode,
		Seq,
		Time,
		Length,
		Data
	) VALUES (?, ?, ?, ?, ?, ?, ?);`
)

// MySQLConfig locates a MySQL database.
type MySQLConfig struct {
	// Server is the TCP endpoint (IP/DNS and port).
	Server string
	User   string
	// PasswordFile contains the password of User.
	PasswordFile string
	DBName       string
}

// DSN builds the driver connection string.
func (c MySQLConfig) DSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Net = "tcp"
	cfg.Addr = c.Server
	cfg.DBName = c.DBName
	if c.PasswordFile != "" {
		pass, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("unable to read MySQL password file %q: %w", c.PasswordFile, err)
		}
		cfg.Passwd = strings.TrimSpace(string(pass))
	}
	return cfg.FormatDSN(), nil
}

// OpenMySQL opens a connection pool to the database.
func OpenMySQL(c MySQLConfig) (*sql.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open MySQL DB %q: %w", c.Server, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db, nil
}

// MySQL stores one row per frame in a MySQL database.
type MySQL struct {
	*sqlStore
}

// NewMySQL creates the frames table if needed. The exporter takes ownership
// of db and closes it on Close.
func NewMySQL(ctx context.Context, db *sql.DB, identifier, source string) (*MySQL, error) {
	s, err := newSQLStore(ctx, "mysql", db, mysqlCreateTableTmpl, mysqlInsertFrameTmpl, identifier, source)
	if err != nil {
		return nil, err
	}
	return &MySQL{s}, nil
}
