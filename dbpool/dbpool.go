// Package dbpool provides a unified connection manager for the analytics
// store. It abstracts the engine (MySQL in production, SQLite for local and
// test runs) and handles retry logic and connection pool settings.
//
// All code that needs a *sql.DB should go through Manager instead of calling
// sql.Open directly. The agent only ever asks for read-only access; pair this
// with a read-only database credential in the DSN — the executor's textual
// query validation is defense-in-depth, not the security boundary.
package dbpool

import (
	"database/sql"
	"fmt"
)

// Engine identifies the database engine to use.
type Engine string

const (
	EngineMySQL  Engine = "mysql"
	EngineSQLite Engine = "sqlite"
)

// AccessMode controls whether the connection is read-only or read-write.
type AccessMode int

const (
	ModeReadWrite AccessMode = iota
	ModeReadOnly
)

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	// Engine to use. Defaults to the manager's engine if empty.
	Engine Engine
	// Path is the file path for SQLite. For MySQL, this is the DSN string.
	Path string
	// Mode controls read-only vs read-write access. Only SQLite can enforce
	// this at the connection level; for MySQL it is advisory and the DSN's
	// credential must carry the grant.
	Mode AccessMode
	// MaxRetries overrides the default retry count (0 = use default).
	MaxRetries int
	// RetryBaseMs overrides the base retry interval in milliseconds (0 = use default).
	RetryBaseMs int
}

// Logger is a simple logging function signature.
type Logger func(string)

// Manager is the central connection manager.
type Manager struct {
	logger Logger
	engine Engine
}

// New creates a new Manager with the given default engine and logger.
func New(defaultEngine Engine, logger Logger) *Manager {
	if logger == nil {
		logger = func(string) {}
	}
	return &Manager{
		engine: defaultEngine,
		logger: logger,
	}
}

// DefaultEngine returns the manager's default engine.
func (m *Manager) DefaultEngine() Engine {
	return m.engine
}

// Open opens a database connection with the given options.
// It applies retry logic for the file-based engine to handle lock contention.
func (m *Manager) Open(opts OpenOptions) (*sql.DB, error) {
	eng := opts.Engine
	if eng == "" {
		eng = m.engine
	}

	switch eng {
	case EngineMySQL:
		return m.openMySQL(opts)
	case EngineSQLite:
		return m.openSQLite(opts)
	default:
		return nil, fmt.Errorf("dbpool: unsupported engine %q", eng)
	}
}

// OpenReadOnly is a convenience wrapper for read-only access, the only mode
// the agent's SQL executor uses.
func (m *Manager) OpenReadOnly(path string) (*sql.DB, error) {
	return m.Open(OpenOptions{Path: path, Mode: ModeReadOnly})
}

// OpenWritable is a convenience wrapper for read-write access (migrations,
// test fixtures).
func (m *Manager) OpenWritable(path string) (*sql.DB, error) {
	return m.Open(OpenOptions{Path: path, Mode: ModeReadWrite})
}

// configurePool sets connection pool parameters. The agent loop treats the
// store as acquire-execute-release per query, so a small pool is enough.
func configurePool(db *sql.DB, eng Engine) {
	if eng == EngineSQLite {
		// Release file locks immediately on Close().
		db.SetMaxIdleConns(0)
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(10)
}

// retryParams returns (maxRetries, baseMs) from opts or defaults.
func retryParams(opts OpenOptions) (int, int) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 8
	}
	baseMs := opts.RetryBaseMs
	if baseMs <= 0 {
		baseMs = 400
	}
	return maxRetries, baseMs
}
