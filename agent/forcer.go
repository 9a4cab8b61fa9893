package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"auralytics/dbpool"
)

// Forcer is the corrective half of the intent-mismatch safety net: when the
// detector flags a miss, the forcer regenerates with a stricter prompt and,
// if every provider still fails to emit a parseable call, synthesizes the
// suggested query directly so the loop always makes progress instead of
// returning a hallucinated answer. It never fails: its worst case is handing
// back the unmodified response.
type Forcer struct {
	gateway *Gateway
	dialect *dbpool.Dialect
	log     func(string)
}

// NewForcer creates a forcer over the gateway's provider chain. The dialect
// shapes the timestamp casts in synthesized queries.
func NewForcer(gateway *Gateway, dialect *dbpool.Dialect, logFunc func(string)) *Forcer {
	if dialect == nil {
		dialect = dbpool.NewDialect(dbpool.EngineMySQL)
	}
	return &Forcer{gateway: gateway, dialect: dialect, log: logFunc}
}

func (f *Forcer) logf(format string, args ...interface{}) {
	if f.log != nil {
		f.log(fmt.Sprintf(format, args...))
	}
}

// Force runs the forced-retry procedure and returns the step result to use
// in place of the original response.
func (f *Forcer) Force(ctx context.Context, question string, account AccountContext, now time.Time, originalResponse string) *AgentStepResult {
	suggested, topic := SuggestQuery(question, account, f.dialect, now)
	if suggested != nil {
		f.logf("[FORCER] suggested query topic: %s", topic)
	}

	system, user := f.strictPrompt(question, suggested)

	// Walk the provider chain ourselves: a provider can answer with prose
	// again, and only a parseable call counts as success here.
	for _, p := range f.gateway.providers {
		text := f.gateway.generateWith(ctx, p, system, user)
		if text == "" {
			continue
		}
		if call, thinking := ParseToolCall(text, f.log); call != nil {
			f.logf("[FORCER] provider %s produced a tool call on forced retry", p.Name())
			return &AgentStepResult{ToolCall: call, Thinking: thinking}
		}
		f.logf("[FORCER] provider %s still answered with prose on forced retry", p.Name())
	}

	if suggested != nil {
		f.logf("[FORCER] all providers failed, synthesizing suggested %s query", topic)
		thinking, _ := suggested.Args["explanation"].(string)
		return &AgentStepResult{ToolCall: suggested, Thinking: thinking}
	}

	// No suggested query available: use the unforced response as-is.
	f.logf("[FORCER] no suggested query for question, keeping original response")
	return &AgentStepResult{Text: originalResponse}
}

// strictPrompt demands the bare tool-call JSON and nothing else, embedding
// the suggested query when one was identified.
func (f *Forcer) strictPrompt(question string, suggested *ToolCall) (string, string) {
	system := `Eres Aura, la analista de datos. Tu respuesta anterior anunció una consulta sin ejecutarla o incluyó cifras sin respaldo.
Responde ÚNICAMENTE con un objeto JSON de llamada a herramienta, sin ningún texto adicional, sin markdown:
{"tool": "sql_query", "parameters": {"query": "...", "explanation": "..."}}`

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pregunta del usuario: %s\n\n", question))
	if suggested != nil {
		data, _ := json.Marshal(map[string]interface{}{
			"tool":       suggested.Name,
			"parameters": suggested.Args,
		})
		sb.WriteString("Esta consulta responde la pregunta; úsala tal cual o con ajustes mínimos:\n")
		sb.Write(data)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Emite SOLO el objeto JSON.")

	return system, sb.String()
}
