package agent

// Message roles. The frontend sends "user"/"model"; "system" only appears in
// transcripts the assembler builds itself.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// ToolCall is a structured action extracted from model output or synthesized
// by the forcer.
type ToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Recognized tool names.
const (
	ToolSQLQuery      = "sql_query"
	ToolGenerateExcel = "generate_excel"
)

// QueryArg returns the SQL text of a sql_query call, or "" if absent.
func (t *ToolCall) QueryArg() string {
	if t == nil || t.Args == nil {
		return ""
	}
	q, _ := t.Args["query"].(string)
	return q
}

// ToolResult is the serialized outcome of a dispatched tool call.
type ToolResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// ConversationMessage is one entry of the inbound transcript. Messages are
// append-only; the caller truncates to the most recent 20 before entering the
// agent, and the prompt assembler windows further to the most recent 10.
type ConversationMessage struct {
	Role       string      `json:"role"` // "user", "model" or "system"
	Content    string      `json:"content"`
	ToolCall   *ToolCall   `json:"toolCall,omitempty"`
	ToolResult *ToolResult `json:"toolResult,omitempty"`
}

// SQLExecutionResult is the outcome of one executor call. Exactly one of
// Rows/Error is meaningful; RowCount is always set on success (0 allowed).
type SQLExecutionResult struct {
	Rows     []map[string]interface{} `json:"rows,omitempty"`
	RowCount int                      `json:"rowCount"`
	Error    string                   `json:"error,omitempty"`
}

// OK reports whether the execution succeeded.
func (r *SQLExecutionResult) OK() bool {
	return r != nil && r.Error == ""
}

// AgentStepResult is the return value of one orchestration step. Exactly one
// of Text or ToolCall is the actionable output; Thinking carries the model's
// own explanation argument when present.
type AgentStepResult struct {
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"toolCall,omitempty"`
	Thinking string    `json:"thinking,omitempty"`
}

// AccountContext scopes one request to an account and its timezone. Immutable
// for the duration of the request; every SQL query must filter by AccountID
// (enforced by prompting, warned-not-blocked by the executor).
type AccountContext struct {
	AccountID int    `json:"accountId"`
	Timezone  string `json:"timezone"` // IANA name, e.g. "America/Mexico_City"
}

// DateRange is an optional caller-selected default range injected into the
// prompt so relative dates resolve the same way the dashboard resolved them.
type DateRange struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`   // YYYY-MM-DD
}

// ReportFile is the spreadsheet payload handed through unchanged when a
// generate_excel call terminates the loop.
type ReportFile struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}
