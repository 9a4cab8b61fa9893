package dbpool

import "fmt"

// Dialect provides engine-specific SQL fragments so callers don't need to
// know which engine is in use.
type Dialect struct {
	Engine Engine
}

// NewDialect creates a Dialect for the given engine.
func NewDialect(engine Engine) *Dialect {
	return &Dialect{Engine: engine}
}

// TimezoneConvertExpr returns an expression casting a UTC timestamp column
// into the given IANA timezone. Every date filter the agent's suggested
// queries emit goes through this so day boundaries match the dashboard.
func (d *Dialect) TimezoneConvertExpr(column, timezone string) string {
	if timezone == "" {
		return column
	}
	switch d.Engine {
	case EngineMySQL:
		return fmt.Sprintf("CONVERT_TZ(%s, '+00:00', '%s')", column, timezone)
	default:
		// SQLite stores localized timestamps in the fixtures; no conversion.
		return column
	}
}
