package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
)

func newTestPromptBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	tools := []tool.BaseTool{
		NewSQLQueryTool(NewSQLExecutor(nil, nil)),
		NewExcelReportTool(nil),
	}
	b, err := NewPromptBuilder(NewKnowledge(), tools, testDialect, nil)
	if err != nil {
		t.Fatalf("failed to build prompt builder: %v", err)
	}
	return b
}

func stepInput(question string) StepInput {
	return StepInput{
		History: []ConversationMessage{{Role: RoleUser, Content: question}},
		Account: AccountContext{AccountID: 42, Timezone: "America/Mexico_City"},
		Now:     testNow,
	}
}

func TestBuildSystem_ContainsContract(t *testing.T) {
	b := newTestPromptBuilder(t)

	system, _ := b.Build(stepInput("¿Cuántas llamadas tuvimos?"))

	for _, want := range []string{
		"Eres Aura",
		"eventos_llamadas_tiempo_real",
		ToolSQLQuery,
		ToolGenerateExcel,
		"PROHIBIDO",
		"El año actual es 2025",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildSystem_SubstitutesAccount(t *testing.T) {
	b := newTestPromptBuilder(t)

	system, _ := b.Build(stepInput("hola"))

	if strings.Contains(system, "{ACCOUNT_ID}") {
		t.Error("ACCOUNT_ID placeholder was not substituted")
	}
	if !strings.Contains(system, "42") {
		t.Error("expected the account id in the system prompt")
	}
}

func TestBuildSystem_DefaultRange(t *testing.T) {
	b := newTestPromptBuilder(t)
	in := stepInput("¿cómo vamos?")
	in.DefaultRange = &DateRange{From: "2025-06-01", To: "2025-06-15"}

	system, _ := b.Build(in)

	if !strings.Contains(system, "2025-06-01") || !strings.Contains(system, "2025-06-15") {
		t.Error("expected the dashboard's selected range in the temporal context")
	}
}

func TestBuildUser_FeedbackSuccessTruncated(t *testing.T) {
	b := newTestPromptBuilder(t)

	rows := make([]map[string]interface{}, 0, 2000)
	for i := 0; i < 2000; i++ {
		rows = append(rows, map[string]interface{}{
			"closer":  fmt.Sprintf("persona_%d_con_nombre_bastante_largo", i),
			"detalle": strings.Repeat("x", 40),
		})
	}

	in := stepInput("¿Cuántas llamadas tuvimos?")
	in.Feedback = &ToolFeedback{
		Call:   &ToolCall{Name: ToolSQLQuery, Args: map[string]interface{}{"query": "SELECT 1"}},
		Result: &SQLExecutionResult{Rows: rows, RowCount: len(rows)},
	}

	_, user := b.Build(in)

	if !strings.Contains(user, "[truncado]") {
		t.Error("expected the oversized result to be truncated")
	}
	// Cap plus the block around it, never the full payload.
	if len(user) > resultJSONCap+5000 {
		t.Errorf("user content too large after truncation: %d chars", len(user))
	}
}

func TestBuildUser_ObjectionsGetLargerCap(t *testing.T) {
	b := newTestPromptBuilder(t)

	rows := make([]map[string]interface{}, 0, 500)
	for i := 0; i < 500; i++ {
		rows = append(rows, map[string]interface{}{
			"objecion": strings.Repeat("precio muy alto ", 5),
			"veces":    i,
		})
	}

	in := stepInput("¿Cuáles fueron las objeciones más comunes?")
	in.Feedback = &ToolFeedback{
		Call:   &ToolCall{Name: ToolSQLQuery, Args: map[string]interface{}{"query": "SELECT 1"}},
		Result: &SQLExecutionResult{Rows: rows, RowCount: len(rows)},
	}

	_, user := b.Build(in)

	// ~45k of rows fits the 30k objections cap partially but would be cut
	// much harder at the default cap.
	if len(user) < resultJSONCap {
		t.Errorf("objections feedback was truncated at the default cap: %d chars", len(user))
	}
}

func TestBuildUser_FailureGetsCorrectionTemplate(t *testing.T) {
	b := newTestPromptBuilder(t)

	in := stepInput("¿Cuál fue el show rate de la semana?")
	in.Feedback = &ToolFeedback{
		Call:   &ToolCall{Name: ToolSQLQuery, Args: map[string]interface{}{"query": "SELECT bad FROM nada"}},
		Result: &SQLExecutionResult{Error: "Unknown column 'bad' in 'field list'"},
	}

	_, user := b.Build(in)

	if !strings.Contains(user, "FALLÓ") {
		t.Error("expected the failure marker in the feedback block")
	}
	if !strings.Contains(user, "show_rate") {
		t.Error("expected the corrected show-rate template for a schema error")
	}
	if !strings.Contains(user, "id_cuenta = 42") {
		t.Error("expected the corrected template scoped to the account")
	}
}

func TestBuildUser_NonSchemaErrorHasNoTemplate(t *testing.T) {
	b := newTestPromptBuilder(t)

	in := stepInput("¿Cuál fue el show rate de la semana?")
	in.Feedback = &ToolFeedback{
		Call:   &ToolCall{Name: ToolSQLQuery, Args: map[string]interface{}{"query": "SELECT 1"}},
		Result: &SQLExecutionResult{Error: "context deadline exceeded"},
	}

	_, user := b.Build(in)

	if !strings.Contains(user, "FALLÓ") {
		t.Error("expected the failure marker")
	}
	if strings.Contains(user, "Plantilla corregida") {
		t.Error("did not expect a corrected template for a non-schema error")
	}
}

func TestTranscript_WindowsToRecentMessages(t *testing.T) {
	b := newTestPromptBuilder(t)

	var history []ConversationMessage
	for i := 0; i < 15; i++ {
		history = append(history, ConversationMessage{Role: RoleUser, Content: fmt.Sprintf("pregunta %d", i)})
	}
	in := StepInput{History: history, Account: AccountContext{AccountID: 1}, Now: time.Now()}

	_, user := b.Build(in)

	if strings.Contains(user, "pregunta 0\n") {
		t.Error("expected old messages outside the window to be dropped")
	}
	if !strings.Contains(user, "pregunta 14") {
		t.Error("expected the latest message to be present")
	}
}

func TestLatestUserQuestion(t *testing.T) {
	history := []ConversationMessage{
		{Role: RoleUser, Content: "primera"},
		{Role: RoleModel, Content: "respuesta"},
		{Role: RoleUser, Content: "segunda"},
	}
	if q := LatestUserQuestion(history); q != "segunda" {
		t.Errorf("expected 'segunda', got %q", q)
	}
	if q := LatestUserQuestion(nil); q != "" {
		t.Errorf("expected empty for nil history, got %q", q)
	}
}
