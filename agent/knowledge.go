package agent

import (
	"fmt"
	"strings"

	"auralytics/kpi"
)

// Knowledge is the static prompt knowledge: schema description, business
// rules and worked query examples. Loaded once at process start and passed by
// reference into the prompt assembler; never mutated afterwards.
type Knowledge struct {
	SchemaDoc     string
	BusinessRules string
	Examples      string
}

// Placeholders substituted by the prompt assembler per request.
const (
	placeholderAccountID = "{ACCOUNT_ID}"
	placeholderTimezone  = "{TIMEZONE}"
)

// NewKnowledge builds the immutable knowledge block. The business rules embed
// the kpi package fragments verbatim so the model reproduces the dashboard's
// formulas when writing its own SQL.
func NewKnowledge() *Knowledge {
	return &Knowledge{
		SchemaDoc:     schemaDoc,
		BusinessRules: buildBusinessRules(),
		Examples:      queryExamples,
	}
}

// Substitute fills the per-request placeholders.
func (k *Knowledge) Substitute(text string, account AccountContext) string {
	text = strings.ReplaceAll(text, placeholderAccountID, fmt.Sprintf("%d", account.AccountID))
	text = strings.ReplaceAll(text, placeholderTimezone, account.Timezone)
	return text
}

const schemaDoc = `## Esquema de datos disponible

Tabla eventos_llamadas_tiempo_real (una fila por llamada de ventas agendada):
- id (INT), id_cuenta (INT, SIEMPRE filtrar por este campo)
- fecha_agendada (DATETIME, cuándo se agendó la llamada)
- fecha_llamada (DATETIME, cuándo ocurrió o debía ocurrir)
- closer (VARCHAR, nombre del vendedor que tomó la llamada)
- cliente (VARCHAR), email (VARCHAR), telefono (VARCHAR)
- estado (VARCHAR: 'agendada', 'realizada', 'no_show', 'cancelada')
- resultado (VARCHAR: 'cierre', 'seguimiento', 'perdida'; NULL si no se realizó)
- facturacion (DECIMAL, monto total vendido en la llamada)
- cash_collected (DECIMAL, monto cobrado por adelantado)
- objeciones (JSON, lista de objeciones mencionadas, p. ej. ["precio","tiempo"])
- origen (VARCHAR, campaña/anuncio que originó el lead)

Tabla gastos_publicitarios (una fila por anuncio y día):
- id (INT), id_cuenta (INT, SIEMPRE filtrar por este campo)
- fecha (DATE), plataforma (VARCHAR: 'meta', 'google', 'tiktok')
- campana (VARCHAR), conjunto (VARCHAR), anuncio (VARCHAR)
- gasto (DECIMAL), impresiones (INT), clicks (INT), leads (INT)

Tabla usuarios:
- id (INT), id_cuenta (INT), nombre (VARCHAR), rol (VARCHAR: 'admin', 'closer', 'media_buyer')

Reglas de acceso:
- TODA consulta debe incluir "id_cuenta = {ACCOUNT_ID}" en cada tabla consultada.
- Solo consultas de lectura: SELECT o WITH. Nada de INSERT/UPDATE/DELETE/DDL.
- Las fechas están almacenadas en UTC; la zona horaria de la cuenta es {TIMEZONE}.
- Para leer objeciones usa JSON_EXTRACT/JSON_UNQUOTE sobre la columna objeciones.`

func buildBusinessRules() string {
	var sb strings.Builder
	sb.WriteString("## Métricas del negocio (usa EXACTAMENTE estas fórmulas, son las del dashboard)\n\n")
	sb.WriteString(fmt.Sprintf("- Llamadas agendadas: %s\n", kpi.ScheduledCallsExpr))
	sb.WriteString(fmt.Sprintf("- Llamadas asistidas: %s\n", kpi.AttendedCallsExpr))
	sb.WriteString(fmt.Sprintf("- Cierres: %s\n", kpi.ClosedCallsExpr))
	sb.WriteString(fmt.Sprintf("- Show rate (%%): %s\n", kpi.ShowRateExpr))
	sb.WriteString(fmt.Sprintf("- Close rate (%%): %s\n", kpi.CloseRateExpr))
	sb.WriteString(fmt.Sprintf("- Facturación: %s\n", kpi.RevenueExpr))
	sb.WriteString(fmt.Sprintf("- Cash collected: %s\n", kpi.CashCollectedExpr))
	sb.WriteString(fmt.Sprintf("- Gasto publicitario: %s (sobre gastos_publicitarios)\n", kpi.AdSpendExpr))
	sb.WriteString(fmt.Sprintf("- ROAS: %s\n", kpi.ROASExpr("<facturación del período>", "<gasto del período>")))
	sb.WriteString("\nSi el usuario pregunta por una de estas métricas con nombre, la cifra que respondas debe salir de la fórmula de arriba, nunca de una aproximación propia.\n")
	return sb.String()
}

const queryExamples = `## Ejemplos de consultas correctas

Pregunta: "¿Cuántas llamadas agendamos la semana pasada?"
{"tool": "sql_query", "parameters": {"query": "SELECT COUNT(*) AS agendadas FROM eventos_llamadas_tiempo_real WHERE id_cuenta = {ACCOUNT_ID} AND fecha_agendada BETWEEN '2024-11-18 00:00:00' AND '2024-11-24 23:59:59'", "explanation": "Conteo de llamadas agendadas en el rango"}}

Pregunta: "¿Cuál fue el show rate de noviembre?"
{"tool": "sql_query", "parameters": {"query": "SELECT ROUND(100.0 * SUM(CASE WHEN estado = 'realizada' THEN 1 ELSE 0 END) / NULLIF(COUNT(*), 0), 2) AS show_rate FROM eventos_llamadas_tiempo_real WHERE id_cuenta = {ACCOUNT_ID} AND fecha_agendada BETWEEN '2024-11-01 00:00:00' AND '2024-11-30 23:59:59'", "explanation": "Show rate con la fórmula del dashboard"}}

Pregunta: "¿Qué anuncio nos trae más leads?"
{"tool": "sql_query", "parameters": {"query": "SELECT campana, anuncio, SUM(leads) AS leads, ROUND(SUM(COALESCE(gasto, 0)), 2) AS gasto FROM gastos_publicitarios WHERE id_cuenta = {ACCOUNT_ID} AND fecha >= DATE_SUB(CURDATE(), INTERVAL 30 DAY) GROUP BY campana, anuncio ORDER BY leads DESC LIMIT 10", "explanation": "Leads por anuncio en los últimos 30 días"}}`
