package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	gospreadsheet "github.com/VantageDataChat/GoExcel"

	"auralytics/agent"
)

// ExcelBuilder renders agent report sheets into an XLSX workbook using
// GoExcel (pure Go, no native deps).
type ExcelBuilder struct {
	log func(string)
}

// NewExcelBuilder creates the workbook builder.
func NewExcelBuilder(logFunc func(string)) *ExcelBuilder {
	return &ExcelBuilder{log: logFunc}
}

func (b *ExcelBuilder) logf(format string, args ...interface{}) {
	if b.log != nil {
		b.log(fmt.Sprintf(format, args...))
	}
}

// Build writes every sheet into one workbook. Column order is the sorted key
// set of each sheet's rows so repeated exports of the same data are stable.
func (b *ExcelBuilder) Build(filename string, sheets []agent.ReportSheet) (*agent.ReportFile, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets to export")
	}

	wb := gospreadsheet.New()

	sheetIndex := 0
	for _, sheet := range sheets {
		if len(sheet.Data) == 0 {
			continue
		}

		name := sheet.SheetName
		if name == "" {
			name = fmt.Sprintf("Hoja%d", sheetIndex+1)
		}

		var ws *gospreadsheet.Worksheet
		if sheetIndex == 0 {
			ws = wb.GetActiveSheet()
			ws.SetTitle(name)
		} else {
			var err error
			ws, err = wb.AddSheet(name)
			if err != nil {
				return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
			}
		}
		sheetIndex++

		if err := b.writeSheet(ws, sheet.Data); err != nil {
			return nil, err
		}
	}

	if sheetIndex == 0 {
		return nil, fmt.Errorf("all sheets were empty")
	}

	wb.Properties.Title = "Reporte de análisis"
	wb.Properties.Creator = "Aura"
	wb.Properties.Description = "Generado por Aura, analista de datos"
	wb.Properties.Subject = "Reporte de marketing y ventas"
	wb.Properties.LastModifiedBy = "Aura"

	var buf bytes.Buffer
	writer := gospreadsheet.NewXLSXWriter()
	if err := writer.Write(wb, &buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	b.logf("[EXPORT] workbook built: %d sheets, %d bytes", sheetIndex, buf.Len())
	return &agent.ReportFile{Filename: NormalizeFilename(filename), Content: buf.Bytes()}, nil
}

func (b *ExcelBuilder) writeSheet(ws *gospreadsheet.Worksheet, rows []map[string]interface{}) error {
	columns := columnOrder(rows)

	headerStyle := gospreadsheet.NewStyle().
		SetFont(&gospreadsheet.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
			Name:  "Calibri",
		}).
		SetFill(&gospreadsheet.Fill{
			Type:  "solid",
			Color: "4472C4",
		}).
		SetAlignment(&gospreadsheet.Alignment{
			Horizontal: gospreadsheet.AlignCenter,
			Vertical:   gospreadsheet.AlignMiddle,
		}).
		SetBorders(&gospreadsheet.Borders{
			Left:   gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Top:    gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Bottom: gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Right:  gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
		})

	dataStyle := gospreadsheet.NewStyle().
		SetFont(&gospreadsheet.Font{
			Size: 10,
			Name: "Calibri",
		}).
		SetAlignment(&gospreadsheet.Alignment{
			Horizontal: gospreadsheet.AlignLeft,
			Vertical:   gospreadsheet.AlignMiddle,
			WrapText:   true,
		}).
		SetBorders(&gospreadsheet.Borders{
			Left:   gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Top:    gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Bottom: gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Right:  gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
		})

	for i, col := range columns {
		cellName, _ := gospreadsheet.CellName(0, i)
		ws.SetCellValue(cellName, col)
		ws.SetCellStyle(cellName, headerStyle)

		runeLen := len([]rune(col))
		width := float64(runeLen) * 2.5
		if width < 12 {
			width = 12
		}
		if width > 60 {
			width = 60
		}
		ws.SetColumnWidth(i, width)
	}
	ws.SetRowHeight(0, 25)

	for rowIdx, row := range rows {
		excelRow := rowIdx + 1
		for colIdx, col := range columns {
			cellName, _ := gospreadsheet.CellName(excelRow, colIdx)
			ws.SetCellValue(cellName, row[col])
			ws.SetCellStyle(cellName, dataStyle)
		}
		ws.SetRowHeight(excelRow, 20)
	}

	ws.FreezePane("A2")
	return nil
}

// columnOrder unions the key sets of all rows and sorts them, so sparse rows
// still land in consistent columns.
func columnOrder(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// NormalizeFilename guarantees a non-empty .xlsx filename.
func NormalizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = fmt.Sprintf("reporte_%s.xlsx", time.Now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		filename += ".xlsx"
	}
	return filename
}
