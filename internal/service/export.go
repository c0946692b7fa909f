package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

const exportSheet = "Movimentações"

// Export writes every transaction of userID as an XLSX workbook to w.
func (s *ReportService) Export(ctx context.Context, userID string, w io.Writer) error {
	ctx, span := reportTracer.Start(ctx, "ReportService.Export")
	defer span.End()

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("export.rows", len(txs)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	headers := []string{"Data", "Tipo", "Descrição", "Categoria", "Valor (R$)", "Origem"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		f.SetCellStyle(exportSheet, "A1", "F1", style)
	}

	for i, t := range txs {
		row := i + 2
		f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), t.DateString())
		f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), t.Kind.Label())
		f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), t.Description)
		f.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), t.Category)
		f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), t.Amount.Round(2).InexactFloat64())
		f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), originLabel(t.Origin))
	}

	f.SetColWidth(exportSheet, "A", "A", 12)
	f.SetColWidth(exportSheet, "B", "B", 10)
	f.SetColWidth(exportSheet, "C", "C", 32)
	f.SetColWidth(exportSheet, "D", "D", 16)
	f.SetColWidth(exportSheet, "E", "E", 12)
	f.SetColWidth(exportSheet, "F", "F", 12)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func originLabel(o domain.Origin) string {
	switch o {
	case domain.OriginChat:
		return "Chat"
	case domain.OriginMessaging:
		return "WhatsApp"
	default:
		return "Manual"
	}
}
