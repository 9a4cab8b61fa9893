package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"auralytics/dbpool"
)

// User-facing fixed messages. Failures never reach the user as technical
// text; the thread always gets a natural-language apology.
const (
	msgIterationLimit = "He ejecutado varias consultas pero no logré armar una respuesta completa. ¿Puedes reformular la pregunta o acotar el período?"
	msgNoAnswer       = "Lo siento, en este momento no puedo procesar tu solicitud. Inténtalo de nuevo en unos minutos."
)

// Loop bounds.
const (
	historyWindow = 20
	// Exploratory fallback window when a specific-entity search finds nothing.
	fallbackDays = 60
	fallbackRows = 50
)

// ChatRequest is one inbound conversation turn with its account scope.
type ChatRequest struct {
	Messages     []ConversationMessage `json:"messages"`
	Account      AccountContext        `json:"-"`
	DefaultRange *DateRange            `json:"defaultRange,omitempty"`
}

// ChatResponse is the fully resolved outcome of the loop: final text, the
// model's last explanation, and the spreadsheet payload when an excel call
// terminated the loop.
type ChatResponse struct {
	Text     string      `json:"text,omitempty"`
	Thinking string      `json:"thinking,omitempty"`
	File     *ReportFile `json:"file,omitempty"`
}

// Orchestrator drives the agent loop for a single request: prompt, generate,
// parse, maybe force, dispatch, feed back, bounded by maxIterations tool
// round-trips. One instance per request; nothing here is shared.
type Orchestrator struct {
	gateway       *Gateway
	prompts       *PromptBuilder
	detector      *IntentDetector
	forcer        *Forcer
	sqlTool       *SQLQueryTool
	excelTool     *ExcelReportTool
	dialect       *dbpool.Dialect
	maxIterations int
	now           func() time.Time
	log           func(string)
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.log != nil {
		o.log(fmt.Sprintf(format, args...))
	}
}

// Run executes the loop until a plain-text answer, a terminal excel export,
// or the iteration budget runs out.
func (o *Orchestrator) Run(ctx context.Context, req ChatRequest) ChatResponse {
	history := req.Messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	question := LatestUserQuestion(history)
	requestNow := o.now()

	var feedback *ToolFeedback
	var lastThinking string

	for iteration := 0; ; iteration++ {
		step := o.step(ctx, StepInput{
			History:      history,
			Account:      req.Account,
			DefaultRange: req.DefaultRange,
			Feedback:     feedback,
			Now:          requestNow,
		}, question, requestNow)

		if step.Thinking != "" {
			lastThinking = step.Thinking
		}

		if step.ToolCall == nil {
			if step.Text == "" {
				return ChatResponse{Text: msgNoAnswer, Thinking: lastThinking}
			}
			return ChatResponse{Text: step.Text, Thinking: lastThinking}
		}

		// The budget counts tool dispatches: a pending call past the limit
		// ends the loop with the fixed apology instead of a fourth dispatch.
		if iteration >= o.maxIterations {
			o.logf("[AGENT] iteration limit (%d) reached with a tool call still pending", o.maxIterations)
			return ChatResponse{Text: msgIterationLimit, Thinking: lastThinking}
		}

		switch step.ToolCall.Name {
		case ToolSQLQuery:
			result := o.dispatchSQL(ctx, step.ToolCall, question, iteration)
			feedback = &ToolFeedback{Call: step.ToolCall, Result: result}

		case ToolGenerateExcel:
			file, err := o.excelTool.BuildFromCall(step.ToolCall)
			if err != nil {
				o.logf("[AGENT] excel generation failed: %v", err)
				return ChatResponse{Text: msgNoAnswer, Thinking: lastThinking}
			}
			o.logf("[AGENT] excel export %s terminated the loop (%d bytes)", file.Filename, len(file.Content))
			return ChatResponse{
				Text:     fmt.Sprintf("Listo, generé el archivo %s con los datos solicitados.", file.Filename),
				Thinking: lastThinking,
				File:     file,
			}

		default:
			o.logf("[AGENT] unrecognized tool %q, terminating loop", step.ToolCall.Name)
			return ChatResponse{Text: msgNoAnswer, Thinking: lastThinking}
		}
	}
}

// step runs one model round-trip: assemble, generate, parse, and apply the
// intent-mismatch safety net. Always returns Text or ToolCall set.
func (o *Orchestrator) step(ctx context.Context, in StepInput, question string, requestNow time.Time) *AgentStepResult {
	system, user := o.prompts.Build(in)

	raw := o.gateway.Generate(ctx, system, user)
	if raw == "" {
		return &AgentStepResult{Text: msgNoAnswer}
	}

	if call, thinking := ParseToolCall(raw, o.log); call != nil {
		return &AgentStepResult{ToolCall: call, Thinking: thinking}
	}

	report := o.detector.Detect(Signals{
		Response:      raw,
		Question:      question,
		HasToolResult: in.Feedback != nil,
	})
	if report.ShouldForce {
		return o.forcer.Force(ctx, question, in.Account, requestNow, raw)
	}

	return &AgentStepResult{Text: raw}
}

// Entity nouns whose zero-row searches get a second chance: the model tends
// to over-filter names and emails it only partially knows.
var entityNouns = []string{"cliente", "closer", "llamada", "email", "telefono", "teléfono", "nombre"}

// dispatchSQL executes the call and applies the second-chance policy: a
// specific-entity search returning zero rows on the first iteration gets one
// exploratory query widening to all recent rows before reporting "not found".
func (o *Orchestrator) dispatchSQL(ctx context.Context, call *ToolCall, question string, iteration int) *SQLExecutionResult {
	query := call.QueryArg()
	result := o.sqlTool.Execute(ctx, query)

	if result.OK() && result.RowCount == 0 && iteration == 0 && mentionsEntity(query, question) {
		o.logf("[AGENT] zero rows on entity search, issuing %d-day exploratory fallback", fallbackDays)
		fallback := o.sqlTool.Execute(ctx, o.exploratoryQuery(), o.sqlTool.account.AccountID)
		if fallback.OK() {
			return fallback
		}
		// Keep the original empty result when the fallback itself errors.
	}

	return result
}

func mentionsEntity(query, question string) bool {
	lq := strings.ToLower(query + " " + question)
	for _, noun := range entityNouns {
		if strings.Contains(lq, noun) {
			return true
		}
	}
	return false
}

// exploratoryQuery widens the search to all recent rows for the account,
// parameterized so the account id travels as a query parameter. The recency
// cutoff runs in the account timezone via the dialect cast.
func (o *Orchestrator) exploratoryQuery() string {
	ts := o.dialect.TimezoneConvertExpr("fecha_agendada", o.sqlTool.account.Timezone)
	switch o.dialect.Engine {
	case dbpool.EngineSQLite:
		return fmt.Sprintf(`SELECT * FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = ? AND %s >= datetime('now', '-%d day')
ORDER BY fecha_agendada DESC
LIMIT %d`, ts, fallbackDays, fallbackRows)
	default:
		return fmt.Sprintf(`SELECT * FROM eventos_llamadas_tiempo_real
WHERE id_cuenta = ? AND %s >= DATE_SUB(NOW(), INTERVAL %d DAY)
ORDER BY fecha_agendada DESC
LIMIT %d`, ts, fallbackDays, fallbackRows)
	}
}

// Service holds the shared pieces and builds a request-scoped orchestrator
// per chat turn, keeping tool account state off the shared path.
type Service struct {
	gateway       *Gateway
	executor      *SQLExecutor
	knowledge     *Knowledge
	detector      *IntentDetector
	builder       ReportBuilder
	dialect       *dbpool.Dialect
	maxIterations int
	now           func() time.Time
	log           func(string)
}

// NewService wires the shared agent dependencies.
func NewService(gateway *Gateway, executor *SQLExecutor, builder ReportBuilder, engine dbpool.Engine, maxIterations int, logFunc func(string)) *Service {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &Service{
		gateway:       gateway,
		executor:      executor,
		knowledge:     NewKnowledge(),
		detector:      NewIntentDetector(logFunc),
		builder:       builder,
		dialect:       dbpool.NewDialect(engine),
		maxIterations: maxIterations,
		now:           time.Now,
		log:           logFunc,
	}
}

// Chat runs the full loop for one request.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	sqlTool := NewSQLQueryTool(s.executor)
	sqlTool.SetAccount(req.Account)
	excelTool := NewExcelReportTool(s.builder)

	prompts, err := NewPromptBuilder(s.knowledge, []tool.BaseTool{sqlTool, excelTool}, s.dialect, s.log)
	if err != nil {
		return ChatResponse{}, err
	}

	o := &Orchestrator{
		gateway:       s.gateway,
		prompts:       prompts,
		detector:      s.detector,
		forcer:        NewForcer(s.gateway, s.dialect, s.log),
		sqlTool:       sqlTool,
		excelTool:     excelTool,
		dialect:       s.dialect,
		maxIterations: s.maxIterations,
		now:           s.now,
		log:           s.log,
	}

	return o.Run(ctx, req), nil
}
