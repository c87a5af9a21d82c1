package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// AuditSheet is the name of the worksheet holding the audit trail
const AuditSheet = "Audit"

// AuditHeaders are the column titles of the audit sheet, in order
var AuditHeaders = []string{
	"Seq", "Entry ID", "Document Type", "Document ID", "Actor ID", "Actor Role",
	"From State", "To State", "Outcome", "Reason Code", "Timestamp (UTC)",
}

// WriteAuditWorkbook renders audit entries to an .xlsx workbook, one row per entry
func WriteAuditWorkbook(w io.Writer, entries []*entity.AuditEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AuditSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(AuditHeaders))
	for i, h := range AuditHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(AuditSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(AuditHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(AuditSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.Seq,
			e.ID,
			e.DocumentType.String(),
			e.DocumentID,
			e.ActorID,
			e.ActorRole.String(),
			e.FromState.String(),
			e.ToState.String(),
			string(e.Outcome),
			e.ReasonCode.String(),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if err := f.SetSheetRow(AuditSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(AuditSheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetPanes(AuditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
