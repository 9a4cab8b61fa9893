// Package kpi holds the canonical formulas for the named metrics the product
// reports (show rate, close rate, ROAS, revenue). Both the dashboard query
// layer and the agent's suggested/corrected query templates consume these
// fragments, so an agent answer for a named KPI always matches the dashboard
// number in formula, not just approximately.
package kpi

import "fmt"

// SQL fragments over eventos_llamadas_tiempo_real. Column conventions:
// estado marks attendance ('agendada', 'realizada', 'no_show', 'cancelada'),
// resultado marks the outcome of an attended call ('cierre', 'seguimiento',
// 'perdida'), facturacion and cash_collected are per-call amounts.
const (
	// ScheduledCallsExpr counts every scheduled call, whatever happened to it.
	ScheduledCallsExpr = "COUNT(*)"

	// AttendedCallsExpr counts calls the prospect actually showed up to.
	AttendedCallsExpr = "SUM(CASE WHEN estado = 'realizada' THEN 1 ELSE 0 END)"

	// ClosedCallsExpr counts attended calls that ended in a sale.
	ClosedCallsExpr = "SUM(CASE WHEN resultado = 'cierre' THEN 1 ELSE 0 END)"

	// ShowRateExpr is attended over scheduled, as a percentage.
	ShowRateExpr = "ROUND(100.0 * SUM(CASE WHEN estado = 'realizada' THEN 1 ELSE 0 END) / NULLIF(COUNT(*), 0), 2)"

	// CloseRateExpr is closed over attended, as a percentage.
	CloseRateExpr = "ROUND(100.0 * SUM(CASE WHEN resultado = 'cierre' THEN 1 ELSE 0 END) / NULLIF(SUM(CASE WHEN estado = 'realizada' THEN 1 ELSE 0 END), 0), 2)"

	// RevenueExpr is total invoiced amount.
	RevenueExpr = "ROUND(SUM(COALESCE(facturacion, 0)), 2)"

	// CashCollectedExpr is total cash actually collected up front.
	CashCollectedExpr = "ROUND(SUM(COALESCE(cash_collected, 0)), 2)"
)

// AdSpendExpr is total ad spend over gastos_publicitarios.
const AdSpendExpr = "ROUND(SUM(COALESCE(gasto, 0)), 2)"

// ROASExpr builds revenue-over-spend given the two aggregate subexpressions
// (the join shape varies per query, the division does not).
func ROASExpr(revenueExpr, spendExpr string) string {
	return fmt.Sprintf("ROUND(%s / NULLIF(%s, 0), 2)", revenueExpr, spendExpr)
}

// ShowRate computes the show-rate percentage for in-process checks.
func ShowRate(attended, scheduled int) float64 {
	if scheduled == 0 {
		return 0
	}
	return 100.0 * float64(attended) / float64(scheduled)
}

// CloseRate computes the close-rate percentage for in-process checks.
func CloseRate(closed, attended int) float64 {
	if attended == 0 {
		return 0
	}
	return 100.0 * float64(closed) / float64(attended)
}

// ROAS computes revenue over spend for in-process checks.
func ROAS(revenue, spend float64) float64 {
	if spend == 0 {
		return 0
	}
	return revenue / spend
}
