package agent

import (
	"testing"
)

func TestDetect_AnnouncedToolIntent(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "Voy a consultar los datos para responder.",
		Question:      "¿Cuántas llamadas agendamos ayer?",
		HasToolResult: false,
	})

	if !report.HasToolIntent {
		t.Error("expected HasToolIntent for an announced query")
	}
	if !report.ShouldForce {
		t.Error("expected ShouldForce when intent is announced with no tool result")
	}
}

func TestDetect_ToolIntentAfterResult(t *testing.T) {
	d := NewIntentDetector(nil)

	// Once a result exists this step, announcing more work is not forced.
	report := d.Detect(Signals{
		Response:      "Déjame revisar un detalle más antes de concluir.",
		Question:      "¿Cuántas llamadas agendamos ayer?",
		HasToolResult: true,
	})

	if report.ShouldForce {
		t.Error("did not expect ShouldForce with a tool result already supplied")
	}
}

func TestDetect_DataQuestionAnsweredWithoutData(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "Según mi análisis general, el rendimiento de tus campañas se ve estable y dentro de lo esperado para el sector.",
		Question:      "¿Cuál fue el show rate de la semana pasada?",
		HasToolResult: false,
	})

	if !report.NeedsData {
		t.Error("expected NeedsData for a show rate question")
	}
	if !report.ShouldForce {
		t.Error("expected ShouldForce: substantive answer to a data question with no result")
	}
}

func TestDetect_ShortResponseNotForced(t *testing.T) {
	d := NewIntentDetector(nil)

	// Clarifying replies under the length floor pass through.
	report := d.Detect(Signals{
		Response:      "¿De qué semana?",
		Question:      "¿Cuál fue el show rate?",
		HasToolResult: false,
	})

	if report.ShouldForce {
		t.Errorf("did not expect ShouldForce for a short clarifying reply, reasons=%v", report.Reasons)
	}
}

func TestDetect_FabricatedFigures(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "La semana pasada tuviste 142 llamadas agendadas y un show rate del 63%.",
		Question:      "¿Cuántas llamadas tuvimos la semana pasada?",
		HasToolResult: false,
	})

	if !report.LikelyFabricated {
		t.Error("expected LikelyFabricated: domain noun next to a digit run with no tool result")
	}
	if !report.ShouldForce {
		t.Error("expected ShouldForce for fabricated figures")
	}
}

func TestDetect_FiguresWithResultNotFabricated(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "Tuviste 142 llamadas agendadas y un show rate del 63%.",
		Question:      "¿Cuántas llamadas tuvimos la semana pasada?",
		HasToolResult: true,
	})

	if report.LikelyFabricated {
		t.Error("figures backed by a tool result must not be flagged as fabricated")
	}
	if report.ShouldForce {
		t.Error("did not expect ShouldForce with a tool result present")
	}
}

func TestDetect_GeneralQuestionNotForced(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "Un buen guion de ventas empieza escuchando al prospecto y validando su situación antes de presentar la oferta.",
		Question:      "¿Me das consejos para mejorar mi guion de ventas?",
		HasToolResult: false,
	})

	if report.ShouldForce {
		t.Errorf("general-knowledge answers must pass through, reasons=%v", report.Reasons)
	}
}

func TestDetect_ErrorMentionCountsAsIntent(t *testing.T) {
	d := NewIntentDetector(nil)

	report := d.Detect(Signals{
		Response:      "Hubo un error con la columna fecha_llamada, lo intentaré de otra forma.",
		Question:      "¿Cuántos cierres tuvimos?",
		HasToolResult: false,
	})

	if !report.HasToolIntent {
		t.Error("expected error+column mention to count as tool intent")
	}
	if !report.ShouldForce {
		t.Error("expected ShouldForce for an error narration with no result")
	}
}
