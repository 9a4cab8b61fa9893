package agent

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
	"time"

	_ "modernc.org/sqlite"
)

func TestValidateQuery(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"plain select", "SELECT 1", ""},
		{"select with filter", "SELECT COUNT(*) FROM eventos_llamadas_tiempo_real WHERE id_cuenta = 1", ""},
		{"cte", "WITH g AS (SELECT 1 AS x) SELECT x FROM g", ""},
		{"lowercase select", "select estado from eventos_llamadas_tiempo_real where id_cuenta = 1", ""},
		{"empty", "", "consulta vacía"},
		{"only comments", "-- nada\n/* nada */", "consulta vacía"},
		{"drop", "DROP TABLE usuarios", "solo se permiten consultas de lectura"},
		{"delete", "DELETE FROM eventos_llamadas_tiempo_real", "solo se permiten consultas de lectura"},
		{"select wrapping update", "SELECT 1; UPDATE usuarios SET rol = 'admin'", "Comando UPDATE no permitido"},
		{"comment-hidden delete", "SELECT 1 /* x */; DELETE FROM usuarios", "Comando DELETE no permitido"},
		{"truncate inside select", "SELECT * FROM t WHERE 1=1; TRUNCATE t", "Comando TRUNCATE no permitido"},
		{"create keyword as substring ok", "SELECT created_at FROM eventos_llamadas_tiempo_real WHERE id_cuenta = 1", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuery(tc.query)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("expected query to pass, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

// Validation is pure: the same query always yields the same verdict.
func TestPropertyValidateQueryDeterministic(t *testing.T) {
	cfg := &quick.Config{MaxCount: 200, Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	f := func(query string) bool {
		first := ValidateQuery(query)
		second := ValidateQuery(query)
		if (first == nil) != (second == nil) {
			return false
		}
		if first != nil && first.Error() != second.Error() {
			return false
		}
		return true
	}
	if err := quick.Check(f, cfg); err != nil {
		t.Errorf("determinism property failed: %v", err)
	}
}

func openTestStore(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `CREATE TABLE eventos_llamadas_tiempo_real (
		id INTEGER PRIMARY KEY,
		id_cuenta INTEGER NOT NULL,
		closer TEXT,
		estado TEXT,
		resultado TEXT,
		facturacion REAL,
		cash_collected REAL,
		fecha_agendada TEXT,
		fecha_llamada TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create fixture table: %v", err)
	}

	rows := []string{
		`INSERT INTO eventos_llamadas_tiempo_real (id_cuenta, closer, estado, resultado, facturacion, fecha_agendada) VALUES (1, 'Andrea', 'realizada', 'cierre', 1500, '2025-06-10 10:00:00')`,
		`INSERT INTO eventos_llamadas_tiempo_real (id_cuenta, closer, estado, resultado, facturacion, fecha_agendada) VALUES (1, 'Andrea', 'realizada', 'seguimiento', 0, '2025-06-11 10:00:00')`,
		`INSERT INTO eventos_llamadas_tiempo_real (id_cuenta, closer, estado, resultado, facturacion, fecha_agendada) VALUES (1, 'Bruno', 'no_show', NULL, NULL, '2025-06-12 10:00:00')`,
		`INSERT INTO eventos_llamadas_tiempo_real (id_cuenta, closer, estado, resultado, facturacion, fecha_agendada) VALUES (2, 'Carla', 'realizada', 'cierre', 900, '2025-06-12 16:00:00')`,
	}
	for _, stmt := range rows {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to insert fixture row: %v", err)
		}
	}

	return db
}

func TestExecute_ScanAndAccountScope(t *testing.T) {
	db := openTestStore(t)
	e := NewSQLExecutor(db, nil)

	result := e.Execute(context.Background(), "SELECT closer, estado, resultado, facturacion FROM eventos_llamadas_tiempo_real WHERE id_cuenta = 1 ORDER BY id", 1)
	if !result.OK() {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.RowCount != 3 {
		t.Fatalf("expected 3 rows, got %d", result.RowCount)
	}

	first := result.Rows[0]
	if first["closer"] != "Andrea" {
		t.Errorf("expected text column decoded to string, got %T %v", first["closer"], first["closer"])
	}
	if first["facturacion"] != 1500.0 {
		t.Errorf("expected facturacion 1500, got %v", first["facturacion"])
	}

	third := result.Rows[2]
	if third["resultado"] != nil {
		t.Errorf("expected NULL resultado to stay nil, got %v", third["resultado"])
	}
}

func TestExecute_ZeroRowsIsSuccess(t *testing.T) {
	db := openTestStore(t)
	e := NewSQLExecutor(db, nil)

	result := e.Execute(context.Background(), "SELECT * FROM eventos_llamadas_tiempo_real WHERE id_cuenta = 99", 99)
	if !result.OK() {
		t.Fatalf("expected success for empty result, got error: %s", result.Error)
	}
	if result.RowCount != 0 {
		t.Errorf("expected 0 rows, got %d", result.RowCount)
	}
}

func TestExecute_MutationRejectedWithoutTouchingStore(t *testing.T) {
	db := openTestStore(t)
	e := NewSQLExecutor(db, nil)

	result := e.Execute(context.Background(), "DROP TABLE eventos_llamadas_tiempo_real", 1)
	if result.OK() {
		t.Fatal("expected a mutation to be rejected")
	}
	if !strings.Contains(result.Error, "solo se permiten consultas de lectura") {
		t.Errorf("expected the read-only rejection message, got: %s", result.Error)
	}

	// The table must be untouched.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM eventos_llamadas_tiempo_real").Scan(&count); err != nil {
		t.Fatalf("table should still exist: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 rows to survive, got %d", count)
	}
}

func TestExecute_ExecutionErrorReturnedInResult(t *testing.T) {
	db := openTestStore(t)
	e := NewSQLExecutor(db, nil)

	result := e.Execute(context.Background(), "SELECT columna_inexistente FROM eventos_llamadas_tiempo_real WHERE id_cuenta = 1", 1)
	if result.OK() {
		t.Fatal("expected an execution error")
	}
	if result.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestExecute_MissingAccountFilterOnlyWarns(t *testing.T) {
	db := openTestStore(t)

	var logged []string
	e := NewSQLExecutor(db, func(m string) { logged = append(logged, m) })

	result := e.Execute(context.Background(), "SELECT COUNT(*) AS n FROM eventos_llamadas_tiempo_real", 1)
	if !result.OK() {
		t.Fatalf("unscoped query must still execute, got error: %s", result.Error)
	}

	warned := false
	for _, m := range logged {
		if strings.Contains(m, "no id_cuenta filter") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning about the missing id_cuenta filter")
	}
}
