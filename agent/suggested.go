package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"auralytics/dbpool"
	"auralytics/kpi"
)

// QueryTopic maps a family of question phrasings to a parameterized query
// template. Topics are evaluated in priority order; the first match wins.
// Every template scopes to id_cuenta and mirrors the dashboard's formulas
// through the kpi package, so a forced answer for a named metric equals the
// dashboard's number.
type QueryTopic struct {
	Name  string
	Match func(question string) bool
	Build func(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall
}

// queryTopics is the ordered topic table. Order matters: more specific
// metric topics come before the generic calls/revenue topics.
var queryTopics = []QueryTopic{
	{
		Name:  "show_rate",
		Match: matchAny("show rate", "showrate", "tasa de asistencia", "asistencia a llamadas"),
		Build: buildShowRateQuery,
	},
	{
		Name:  "objections",
		Match: matchAny("objecion", "objeción", "objeciones"),
		Build: buildObjectionsQuery,
	},
	{
		Name: "ad_recommendations",
		Match: func(q string) bool {
			lq := strings.ToLower(q)
			return (strings.Contains(lq, "recomien") || strings.Contains(lq, "optimizar") || strings.Contains(lq, "escalar")) &&
				(strings.Contains(lq, "anuncio") || strings.Contains(lq, "campañ") || strings.Contains(lq, "campana") || strings.Contains(lq, "ads"))
		},
		Build: buildAdPerformanceQuery,
	},
	{
		Name:  "roas",
		Match: matchAny("roas", "retorno de la inversion", "retorno de la inversión", "retorno publicitario"),
		Build: buildROASQuery,
	},
	{
		Name: "calls",
		Match: func(q string) bool {
			lq := strings.ToLower(q)
			return strings.Contains(lq, "llamada") || strings.Contains(lq, "reunion") || strings.Contains(lq, "reunión") || strings.Contains(lq, "cita")
		},
		Build: buildCallsQuery,
	},
	{
		Name: "closer_leaderboard",
		Match: func(q string) bool {
			lq := strings.ToLower(q)
			return strings.Contains(lq, "closer") &&
				(strings.Contains(lq, "mejor") || strings.Contains(lq, "ranking") || strings.Contains(lq, "top") || strings.Contains(lq, "compara"))
		},
		Build: buildCloserLeaderboardQuery,
	},
	{
		Name:  "close_rate",
		Match: matchAny("close rate", "tasa de cierre", "porcentaje de cierre"),
		Build: buildCloseRateQuery,
	},
	{
		Name:  "revenue",
		Match: matchAny("factur", "ingreso", "revenue", "cash collected", "cuánto vendimos", "cuanto vendimos"),
		Build: buildRevenueQuery,
	},
	{
		Name:  "creative_winner",
		Match: matchAny("anuncio ganador", "creativo ganador", "mejor anuncio", "mejor creativo", "mejor campaña", "mejor campana"),
		Build: buildCreativeWinnerQuery,
	},
}

// SuggestQuery matches the question against the topic table and returns a
// synthesized sql_query call plus the topic name, or nil when no topic fits.
// The dialect controls timezone casting of the timestamp columns; timestamps
// are stored in UTC and every synthesized filter compares against the
// account's local day boundaries, same as the dashboard.
func SuggestQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) (*ToolCall, string) {
	if d == nil {
		d = dbpool.NewDialect(dbpool.EngineMySQL)
	}
	for _, topic := range queryTopics {
		if topic.Match(question) {
			return topic.Build(question, account, d, now), topic.Name
		}
	}
	return nil, ""
}

func matchAny(phrases ...string) func(string) bool {
	return func(q string) bool {
		lq := strings.ToLower(q)
		for _, p := range phrases {
			if strings.Contains(lq, p) {
				return true
			}
		}
		return false
	}
}

// --- date-range extraction ---

var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
}

var (
	// "del 1 al 7 de diciembre", "del 1 al 7 de diciembre de 2024"
	dayRangeRe = regexp.MustCompile(`(?i)del?\s+(\d{1,2})\s+al\s+(\d{1,2})\s+de\s+([a-záéíóú]+)(?:\s+de[l]?\s+(\d{4}))?`)
	// "en diciembre", "de noviembre de 2024"
	monthRe = regexp.MustCompile(`(?i)\b(?:en|de|durante)\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)(?:\s+de[l]?\s+(\d{4}))?`)
	// explicit ISO dates
	isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	// closer name after the word "closer"
	closerNameRe = regexp.MustCompile(`(?i)\bcloser\s+([\p{L}]+)`)
)

// extractDateRange resolves an explicit range from the question. Partial
// dates without a year resolve to the current year, same as the prompt
// instructs the model to do.
func extractDateRange(question string, now time.Time) (string, string, bool) {
	if m := dayRangeRe.FindStringSubmatch(question); m != nil {
		month, ok := spanishMonths[strings.ToLower(m[3])]
		if ok {
			year := now.Year()
			if m[4] != "" {
				fmt.Sscanf(m[4], "%d", &year)
			}
			from := fmt.Sprintf("%04d-%02d-%s", year, month, pad2(m[1]))
			to := fmt.Sprintf("%04d-%02d-%s", year, month, pad2(m[2]))
			return from, to, true
		}
	}

	if m := isoDateRe.FindAllString(question, 2); len(m) == 2 {
		return m[0], m[1], true
	} else if len(m) == 1 {
		return m[0], m[0], true
	}

	if m := monthRe.FindStringSubmatch(question); m != nil {
		month := spanishMonths[strings.ToLower(m[1])]
		year := now.Year()
		if m[2] != "" {
			fmt.Sscanf(m[2], "%d", &year)
		}
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, -1)
		return from.Format("2006-01-02"), to.Format("2006-01-02"), true
	}

	return "", "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// rangeOrDefault falls back to the last 30 days when the question carries no
// explicit range.
func rangeOrDefault(question string, now time.Time) (string, string) {
	if from, to, ok := extractDateRange(question, now); ok {
		return from, to
	}
	return now.AddDate(0, 0, -30).Format("2006-01-02"), now.Format("2006-01-02")
}

func extractCloserName(question string) string {
	if m := closerNameRe.FindStringSubmatch(question); m != nil {
		name := m[1]
		lname := strings.ToLower(name)
		// Skip connective words that follow "closer" in ranking questions.
		for _, stop := range []string{"con", "que", "de", "del", "más", "mas", "mejor"} {
			if lname == stop {
				return ""
			}
		}
		return name
	}
	return ""
}

// --- query templates ---

func sqlCall(query, explanation string) *ToolCall {
	return &ToolCall{
		Name: ToolSQLQuery,
		Args: map[string]interface{}{
			"query":       query,
			"explanation": explanation,
		},
	}
}

// localDayFilter builds "<tz-cast column> BETWEEN 'from 00:00:00' AND
// 'to 23:59:59'" so day boundaries land in the account timezone. The `fecha`
// DATE column of gastos_publicitarios is already a plain local date and is
// filtered without casting.
func localDayFilter(d *dbpool.Dialect, column, timezone, from, to string) string {
	return fmt.Sprintf("%s BETWEEN '%s 00:00:00' AND '%s 23:59:59'",
		d.TimezoneConvertExpr(column, timezone), from, to)
}

func buildShowRateQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT %s AS agendadas, %s AS asistidas, %s AS show_rate
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d AND %s`,
		kpi.ScheduledCallsExpr, kpi.AttendedCallsExpr, kpi.ShowRateExpr, account.AccountID,
		localDayFilter(d, "fecha_agendada", account.Timezone, from, to))
	return sqlCall(query, "Show rate de llamadas en el período, con la fórmula del dashboard")
}

func buildObjectionsQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT JSON_UNQUOTE(JSON_EXTRACT(objeciones, '$[0]')) AS objecion, COUNT(*) AS veces
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d AND objeciones IS NOT NULL AND JSON_LENGTH(objeciones) > 0
  AND %s
GROUP BY objecion
ORDER BY veces DESC
LIMIT 20`, account.AccountID, localDayFilter(d, "fecha_llamada", account.Timezone, from, to))
	return sqlCall(query, "Objeciones más frecuentes en las llamadas del período")
}

func buildAdPerformanceQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT campana, anuncio, %s AS gasto, SUM(leads) AS leads,
  ROUND(SUM(COALESCE(gasto, 0)) / NULLIF(SUM(leads), 0), 2) AS costo_por_lead
FROM gastos_publicitarios
WHERE id_cuenta = %d AND fecha BETWEEN '%s' AND '%s'
GROUP BY campana, anuncio
ORDER BY costo_por_lead ASC
LIMIT 20`, kpi.AdSpendExpr, account.AccountID, from, to)
	return sqlCall(query, "Rendimiento por anuncio para decidir dónde escalar o recortar")
}

func buildROASQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`WITH gasto AS (
  SELECT %s AS total_gasto
  FROM gastos_publicitarios
  WHERE id_cuenta = %d AND fecha BETWEEN '%s' AND '%s'
), ventas AS (
  SELECT %s AS total_facturacion
  FROM eventos_llamadas_tiempo_real
  WHERE id_cuenta = %d AND %s
)
SELECT g.total_gasto, v.total_facturacion, %s AS roas
FROM gasto g, ventas v`,
		kpi.AdSpendExpr, account.AccountID, from, to,
		kpi.RevenueExpr, account.AccountID,
		localDayFilter(d, "fecha_llamada", account.Timezone, from, to),
		kpi.ROASExpr("v.total_facturacion", "g.total_gasto"))
	return sqlCall(query, "ROAS del período: facturación sobre gasto publicitario, fórmula del dashboard")
}

func buildCallsQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	closerFilter := ""
	if name := extractCloserName(question); name != "" {
		closerFilter = fmt.Sprintf(" AND closer LIKE '%%%s%%'", name)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) AS total_llamadas, %s AS asistidas, %s AS cierres
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d%s AND %s`,
		kpi.AttendedCallsExpr, kpi.ClosedCallsExpr, account.AccountID, closerFilter,
		localDayFilter(d, "fecha_agendada", account.Timezone, from, to))
	return sqlCall(query, "Conteo de llamadas del período")
}

func buildCloserLeaderboardQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT closer, COUNT(*) AS llamadas, %s AS asistidas, %s AS cierres,
  %s AS close_rate, %s AS facturacion
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d AND %s
GROUP BY closer
ORDER BY cierres DESC, facturacion DESC
LIMIT 10`,
		kpi.AttendedCallsExpr, kpi.ClosedCallsExpr, kpi.CloseRateExpr, kpi.RevenueExpr,
		account.AccountID, localDayFilter(d, "fecha_agendada", account.Timezone, from, to))
	return sqlCall(query, "Ranking de closers por cierres y facturación")
}

func buildCloseRateQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT %s AS asistidas, %s AS cierres, %s AS close_rate
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d AND %s`,
		kpi.AttendedCallsExpr, kpi.ClosedCallsExpr, kpi.CloseRateExpr, account.AccountID,
		localDayFilter(d, "fecha_agendada", account.Timezone, from, to))
	return sqlCall(query, "Close rate del período, con la fórmula del dashboard")
}

func buildRevenueQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT %s AS facturacion, %s AS cash_collected, %s AS cierres
FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = %d AND %s`,
		kpi.RevenueExpr, kpi.CashCollectedExpr, kpi.ClosedCallsExpr, account.AccountID,
		localDayFilter(d, "fecha_llamada", account.Timezone, from, to))
	return sqlCall(query, "Facturación y cash collected del período")
}

func buildCreativeWinnerQuery(question string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	from, to := rangeOrDefault(question, now)
	query := fmt.Sprintf(`SELECT plataforma, campana, anuncio, %s AS gasto, SUM(leads) AS leads,
  SUM(clicks) AS clicks, ROUND(SUM(COALESCE(gasto, 0)) / NULLIF(SUM(leads), 0), 2) AS costo_por_lead
FROM gastos_publicitarios
WHERE id_cuenta = %d AND fecha BETWEEN '%s' AND '%s'
GROUP BY plataforma, campana, anuncio
ORDER BY leads DESC, costo_por_lead ASC
LIMIT 10`, kpi.AdSpendExpr, account.AccountID, from, to)
	return sqlCall(query, "Anuncio ganador del período por leads y costo por lead")
}
