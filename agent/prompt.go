package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"auralytics/dbpool"
)

// Windowing and truncation caps for the assembled prompts.
const (
	transcriptWindow = 10
	resultJSONCap    = 15000
	// Objection breakdowns are denser payloads; the cap is doubled so the
	// model sees the full distribution instead of a cut-off JSON blob.
	objectionsJSONCap = 30000
)

// ToolFeedback carries the previous iteration's tool call and its outcome
// into the next prompt.
type ToolFeedback struct {
	Call   *ToolCall
	Result *SQLExecutionResult
}

// StepInput is everything the assembler needs for one step. Fully determines
// the two output strings; the assembler holds no mutable state.
type StepInput struct {
	History      []ConversationMessage
	Account      AccountContext
	DefaultRange *DateRange
	Feedback     *ToolFeedback
	Now          time.Time
}

// PromptBuilder deterministically constructs the systemPrompt/userContent
// pair passed to the gateway each step.
type PromptBuilder struct {
	knowledge *Knowledge
	toolInfos []*schema.ToolInfo
	dialect   *dbpool.Dialect
	log       func(string)
}

// NewPromptBuilder collects the tool metadata once; the instruction block is
// rendered from it on every build. The dialect shapes the timestamp casts in
// corrected query templates.
func NewPromptBuilder(knowledge *Knowledge, tools []tool.BaseTool, dialect *dbpool.Dialect, logFunc func(string)) (*PromptBuilder, error) {
	var infos []*schema.ToolInfo
	for _, t := range tools {
		info, err := t.Info(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to read tool info: %v", err)
		}
		infos = append(infos, info)
	}
	if dialect == nil {
		dialect = dbpool.NewDialect(dbpool.EngineMySQL)
	}
	return &PromptBuilder{knowledge: knowledge, toolInfos: infos, dialect: dialect, log: logFunc}, nil
}

// Build assembles the prompt pair for one step.
func (b *PromptBuilder) Build(in StepInput) (string, string) {
	return b.buildSystem(in), b.buildUser(in)
}

func (b *PromptBuilder) buildSystem(in StepInput) string {
	var sb strings.Builder

	sb.WriteString("Eres Aura, la analista de datos del equipo de marketing y ventas. Respondes en español, con cifras que salen únicamente de la base de datos de la cuenta.\n\n")

	sb.WriteString(b.knowledge.Substitute(b.knowledge.SchemaDoc, in.Account))
	sb.WriteString("\n\n")
	sb.WriteString(b.knowledge.BusinessRules)
	sb.WriteString("\n")
	sb.WriteString(b.knowledge.Substitute(b.knowledge.Examples, in.Account))
	sb.WriteString("\n\n")

	sb.WriteString(b.temporalContext(in))
	sb.WriteString("\n")
	sb.WriteString(b.toolCatalog())
	sb.WriteString("\n")
	sb.WriteString(outputContract)

	return sb.String()
}

// temporalContext tells the model how to resolve relative and partial dates.
func (b *PromptBuilder) temporalContext(in StepInput) string {
	var sb strings.Builder
	now := in.Now
	if loc, err := time.LoadLocation(in.Account.Timezone); err == nil {
		now = now.In(loc)
	}

	sb.WriteString("## Contexto temporal\n")
	sb.WriteString(fmt.Sprintf("- Hoy es %s (zona horaria %s). El año actual es %d.\n",
		now.Format("2006-01-02"), in.Account.Timezone, now.Year()))
	if in.DefaultRange != nil {
		sb.WriteString(fmt.Sprintf("- El usuario tiene seleccionado en el dashboard el rango %s a %s; úsalo cuando la pregunta no indique fechas.\n",
			in.DefaultRange.From, in.DefaultRange.To))
	}
	sb.WriteString(fmt.Sprintf("- Fechas relativas (\"esta semana\", \"el mes pasado\") se resuelven contra la fecha de hoy en %s.\n", in.Account.Timezone))
	sb.WriteString(fmt.Sprintf("- Fechas sin año (\"del 1 al 7 de diciembre\") se asumen del año %d.\n", now.Year()))
	return sb.String()
}

func (b *PromptBuilder) toolCatalog() string {
	var sb strings.Builder
	sb.WriteString("## Herramientas disponibles\n")
	for _, info := range b.toolInfos {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", info.Name, info.Desc))
	}
	sb.WriteString(`- Parámetros de sql_query: {"query": string (obligatorio), "explanation": string (opcional)}
- Parámetros de generate_excel: {"filename": string (opcional), "sheets": [{"sheetName": string, "data": [fila, ...]}]}
`)
	return sb.String()
}

const outputContract = `## Formato de respuesta (obligatorio)
Responde con UNA de estas dos cosas, nunca ambas:
1. Un único objeto JSON de llamada a herramienta, sin texto alrededor:
   {"tool": "sql_query", "parameters": {"query": "...", "explanation": "..."}}
2. Texto natural para el usuario, cuando ya tienes los datos necesarios.

PROHIBIDO anunciar que vas a consultar ("voy a revisar los datos...") sin emitir el JSON inmediatamente. Si necesitas datos, emite el JSON. Si ya los tienes, responde con texto y cifras exactas del resultado.`

func (b *PromptBuilder) buildUser(in StepInput) string {
	var sb strings.Builder

	sb.WriteString("## Conversación\n")
	sb.WriteString(b.transcript(in.History))
	sb.WriteString("\n")

	if in.Feedback != nil {
		sb.WriteString(b.feedbackBlock(in))
		sb.WriteString("\n")
	}

	if q := LatestUserQuestion(in.History); q != "" {
		sb.WriteString(fmt.Sprintf("## Pregunta a responder\n%s\n", q))
	}

	return sb.String()
}

// transcript serializes the trailing conversation, windowed to the most
// recent messages.
func (b *PromptBuilder) transcript(history []ConversationMessage) string {
	if len(history) > transcriptWindow {
		history = history[len(history)-transcriptWindow:]
	}

	var sb strings.Builder
	for _, msg := range history {
		switch {
		case msg.ToolCall != nil:
			sb.WriteString(fmt.Sprintf("[Aura ejecutó la herramienta %s]\n", msg.ToolCall.Name))
		case msg.ToolResult != nil:
			sb.WriteString(fmt.Sprintf("[Resultado de %s recibido]\n", msg.ToolResult.Name))
		case msg.Role == RoleUser:
			sb.WriteString(fmt.Sprintf("Usuario: %s\n", msg.Content))
		case msg.Role == RoleModel:
			sb.WriteString(fmt.Sprintf("Aura: %s\n", msg.Content))
		}
	}
	return sb.String()
}

// feedbackBlock serializes the previous tool outcome: data as truncated JSON
// on success, corrective instructions (plus a corrected query template for
// known error classes) on failure.
func (b *PromptBuilder) feedbackBlock(in StepInput) string {
	question := LatestUserQuestion(in.History)
	result := in.Feedback.Result

	if result == nil {
		return ""
	}

	if result.Error != "" {
		return b.correctionBlock(question, result.Error, in)
	}

	capChars := resultJSONCap
	if strings.Contains(strings.ToLower(question), "objecion") || strings.Contains(strings.ToLower(question), "objeción") {
		capChars = objectionsJSONCap
	}

	data, err := json.Marshal(result)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"rowCount": %d}`, result.RowCount))
	}
	payload := string(data)
	if len(payload) > capChars {
		if b.log != nil {
			b.log(fmt.Sprintf("[PROMPT] tool result truncated from %d to %d chars", len(payload), capChars))
		}
		payload = payload[:capChars] + "... [truncado]"
	}

	var sb strings.Builder
	sb.WriteString("## Resultado de la consulta anterior\n")
	sb.WriteString("```json\n")
	sb.WriteString(payload)
	sb.WriteString("\n```\n")
	sb.WriteString("Usa estos datos para responder. No inventes cifras que no estén aquí.\n")
	return sb.String()
}

// correctionBlock turns an execution error into instructions the model can
// act on. For known error classes it embeds a hand-written corrected query
// whose shape reproduces the dashboard's own formulas.
func (b *PromptBuilder) correctionBlock(question, errMsg string, in StepInput) string {
	var sb strings.Builder
	sb.WriteString("## La consulta anterior FALLÓ\n")
	sb.WriteString(fmt.Sprintf("Error: %s\n\n", errMsg))
	sb.WriteString("Corrige la consulta y vuelve a emitir el JSON de herramienta. Revisa el esquema: usa solo tablas y columnas que existen, y mantén el filtro id_cuenta.\n")

	if corrected := correctedQueryFor(question, errMsg, in.Account, b.dialect, in.Now); corrected != nil {
		sb.WriteString("\nPlantilla corregida para esta pregunta (ajusta solo las fechas si hace falta):\n")
		sb.WriteString("```json\n")
		data, _ := json.Marshal(map[string]interface{}{
			"tool":       corrected.Name,
			"parameters": corrected.Args,
		})
		sb.Write(data)
		sb.WriteString("\n```\n")
	}

	return sb.String()
}

// correctedQueryFor matches known error classes against the question and
// returns the canonical template for the named metric, or nil.
func correctedQueryFor(question, errMsg string, account AccountContext, d *dbpool.Dialect, now time.Time) *ToolCall {
	lerr := strings.ToLower(errMsg)
	schemaError := strings.Contains(lerr, "column") || strings.Contains(lerr, "columna") ||
		strings.Contains(lerr, "table") || strings.Contains(lerr, "tabla") ||
		strings.Contains(lerr, "unknown") || strings.Contains(lerr, "no such") ||
		strings.Contains(lerr, "syntax")
	if !schemaError {
		return nil
	}

	lq := strings.ToLower(question)
	switch {
	case strings.Contains(lq, "show rate") || strings.Contains(lq, "tasa de asistencia"):
		return buildShowRateQuery(question, account, d, now)
	case strings.Contains(lq, "objecion") || strings.Contains(lq, "objeción"):
		return buildObjectionsQuery(question, account, d, now)
	case strings.Contains(lq, "close rate") || strings.Contains(lq, "tasa de cierre"):
		return buildCloseRateQuery(question, account, d, now)
	case strings.Contains(lq, "roas"):
		return buildROASQuery(question, account, d, now)
	}
	return nil
}

// LatestUserQuestion returns the content of the most recent user message.
func LatestUserQuestion(history []ConversationMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}
