package agent

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// SQLExecutor validates and runs a single read-only query against the
// analytics store. It never returns a Go error to the orchestrator: every
// failure comes back inside SQLExecutionResult.Error so it can be fed to the
// model as a corrective instruction.
type SQLExecutor struct {
	db  *sql.DB
	log func(string)
}

// NewSQLExecutor creates an executor over an open store handle.
func NewSQLExecutor(db *sql.DB, logFunc func(string)) *SQLExecutor {
	return &SQLExecutor{db: db, log: logFunc}
}

func (e *SQLExecutor) logf(format string, args ...interface{}) {
	if e.log != nil {
		e.log(fmt.Sprintf(format, args...))
	}
}

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	denylistRe     = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|GRANT|REVOKE)\b`)
)

// ValidateQuery runs the textual safety pipeline without touching the store.
// This is a best-effort denylist, not a SQL parser: the real boundary is the
// read-only credential the store connection carries.
func ValidateQuery(query string) error {
	clean := strings.TrimSpace(query)
	clean = lineCommentRe.ReplaceAllString(clean, "")
	clean = blockCommentRe.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)

	if clean == "" {
		return fmt.Errorf("consulta vacía: se esperaba una consulta SELECT")
	}

	upper := strings.ToUpper(clean)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("solo se permiten consultas de lectura (SELECT o WITH). Consulta recibida: %s", query)
	}

	if m := denylistRe.FindString(clean); m != "" {
		return fmt.Errorf("Comando %s no permitido: solo se aceptan consultas de lectura", strings.ToUpper(m))
	}

	return nil
}

// Execute validates and runs the query, scoping warnings to the account.
// Positional params are only used by the synthesized fallback queries; model
// generated queries arrive fully inlined.
func (e *SQLExecutor) Execute(ctx context.Context, query string, accountID int, params ...interface{}) *SQLExecutionResult {
	if err := ValidateQuery(query); err != nil {
		e.logf("[SQL] query rejected: %v", err)
		return &SQLExecutionResult{Error: err.Error()}
	}

	// Known gap: account scoping is enforced by prompting, so the missing
	// filter is only warned about, never blocked.
	if !strings.Contains(query, "id_cuenta") {
		e.logf("[SQL] WARNING: query for account %d has no id_cuenta filter: %s", accountID, truncateForLog(query, 200))
	}

	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		e.logf("[SQL] execution failed: %v", err)
		return &SQLExecutionResult{Error: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return &SQLExecutionResult{Error: fmt.Sprintf("failed to get columns: %v", err)}
	}

	var results []map[string]interface{}
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return &SQLExecutionResult{Error: fmt.Sprintf("failed to scan row: %v", err)}
		}

		rowMap := make(map[string]interface{})
		for i, colName := range cols {
			val := columnPointers[i].(*interface{})
			if val != nil && *val != nil {
				// Text columns come back as []byte from both drivers.
				if b, ok := (*val).([]byte); ok {
					rowMap[colName] = string(b)
				} else {
					rowMap[colName] = *val
				}
			} else {
				rowMap[colName] = nil
			}
		}
		results = append(results, rowMap)
	}

	if err := rows.Err(); err != nil {
		return &SQLExecutionResult{Error: fmt.Sprintf("error iterating rows: %v", err)}
	}

	e.logf("[SQL] query for account %d returned %d rows", accountID, len(results))
	return &SQLExecutionResult{Rows: results, RowCount: len(results)}
}

// truncateForLog shortens a string for log lines.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
