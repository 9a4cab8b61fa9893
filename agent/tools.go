package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ReportSheet is one sheet of a generate_excel payload. Data rows are row
// objects exactly as the model produced them.
type ReportSheet struct {
	SheetName string                   `json:"sheetName"`
	Data      []map[string]interface{} `json:"data"`
}

// ReportBuilder is the external spreadsheet-building collaborator. The agent
// hands the parsed payload through and treats the result as opaque.
type ReportBuilder interface {
	Build(filename string, sheets []ReportSheet) (*ReportFile, error)
}

// SQLQueryTool exposes the executor as the sql_query tool.
type SQLQueryTool struct {
	executor *SQLExecutor
	account  AccountContext
}

// NewSQLQueryTool creates the tool over an executor.
func NewSQLQueryTool(executor *SQLExecutor) *SQLQueryTool {
	return &SQLQueryTool{executor: executor}
}

// SetAccount scopes subsequent executions to one account context.
func (t *SQLQueryTool) SetAccount(account AccountContext) {
	t.account = account
}

type sqlQueryInput struct {
	Query       string `json:"query"`
	Explanation string `json:"explanation,omitempty"`
}

// Info returns tool information rendered into the system prompt.
func (t *SQLQueryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolSQLQuery,
		Desc: "Ejecuta una consulta SQL de solo lectura (SELECT o WITH) sobre los datos de la cuenta y devuelve las filas como JSON. Toda consulta debe filtrar por id_cuenta.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "La consulta SQL a ejecutar. Solo SELECT o WITH; siempre con filtro id_cuenta.",
				Required: true,
			},
			"explanation": {
				Type:     schema.String,
				Desc:     "Breve explicación de qué busca la consulta.",
				Required: false,
			},
		}),
	}, nil
}

// Execute runs a query under the tool's account context.
func (t *SQLQueryTool) Execute(ctx context.Context, query string, params ...interface{}) *SQLExecutionResult {
	return t.executor.Execute(ctx, query, t.account.AccountID, params...)
}

// InvokableRun implements the eino tool contract.
func (t *SQLQueryTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in sqlQueryInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	result := t.Execute(ctx, in.Query)
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %v", err)
	}
	return string(data), nil
}

// ExcelReportTool exposes the spreadsheet collaborator as the generate_excel
// tool. Dispatching it always terminates the agent loop: export is a final
// action.
type ExcelReportTool struct {
	builder ReportBuilder
}

// NewExcelReportTool creates the tool over a builder.
func NewExcelReportTool(builder ReportBuilder) *ExcelReportTool {
	return &ExcelReportTool{builder: builder}
}

type excelInput struct {
	Filename string        `json:"filename,omitempty"`
	Sheets   []ReportSheet `json:"sheets"`
}

// Info returns tool information rendered into the system prompt.
func (t *ExcelReportTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolGenerateExcel,
		Desc: "Genera un archivo Excel con los datos indicados. Úsalo solo cuando el usuario pida exportar o descargar datos.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"filename": {
				Type:     schema.String,
				Desc:     "Nombre de archivo sin extensión (opcional).",
				Required: false,
			},
			"sheets": {
				Type:     schema.Array,
				Desc:     "Hojas a generar: [{\"sheetName\": string, \"data\": [fila, ...]}].",
				Required: true,
				ElemInfo: &schema.ParameterInfo{Type: schema.Object},
			},
		}),
	}, nil
}

// BuildFromCall parses a generate_excel tool call and hands the payload to
// the collaborator verbatim.
func (t *ExcelReportTool) BuildFromCall(call *ToolCall) (*ReportFile, error) {
	if call == nil {
		return nil, fmt.Errorf("nil tool call")
	}

	data, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("invalid excel payload: %v", err)
	}
	var in excelInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("invalid excel payload: %v", err)
	}
	if len(in.Sheets) == 0 {
		return nil, fmt.Errorf("excel payload has no sheets")
	}

	return t.builder.Build(in.Filename, in.Sheets)
}

// InvokableRun implements the eino tool contract.
func (t *ExcelReportTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in excelInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if len(in.Sheets) == 0 {
		return "", fmt.Errorf("excel payload has no sheets")
	}

	file, err := t.builder.Build(in.Filename, in.Sheets)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Archivo %s generado (%d bytes).", file.Filename, len(file.Content)), nil
}
