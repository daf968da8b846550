// Package export renders submission rows as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// DateLayout is the timestamp format used in both formats.
const DateLayout = "2006-01-02 15:04:05"

// FilePrefix starts every download file name.
const FilePrefix = "gastro-rechner-submissions"

// Header lists the column titles in their fixed order.
var Header = []string{
	"ID",
	"Name",
	"Total Sales (€)",
	"Cash Sales (€)",
	"Team Tip (€)",
	"Flow Cash Received",
	"Date",
}

// Row is one exported entry. CreatedAt should already be in the zone the
// file is meant for.
type Row struct {
	ID                 string
	Name               string
	TotalSales         decimal.Decimal
	SalesCash          decimal.Decimal
	TeamTip            decimal.Decimal
	ChangeFundReceived bool
	CreatedAt          time.Time
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func (r Row) record() []string {
	return []string{
		r.ID,
		r.Name,
		r.TotalSales.StringFixed(2),
		r.SalesCash.StringFixed(2),
		r.TeamTip.StringFixed(2),
		yesNo(r.ChangeFundReceived),
		r.CreatedAt.Format(DateLayout),
	}
}

// Filename returns the download name for the given day and extension.
func Filename(day time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", FilePrefix, day.Format("2006-01-02"), ext)
}

// WriteCSV writes the header and rows. A UTF-8 byte order mark is emitted
// first so spreadsheet tools pick up the euro sign.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Submissions"

// WriteXLSX writes a workbook with a single sheet. Money columns are numeric
// cells with a two-decimal format.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, title := range Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return err
		}
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	for i, row := range rows {
		line := i + 2
		values := []any{
			row.ID,
			row.Name,
			row.TotalSales.InexactFloat64(),
			row.SalesCash.InexactFloat64(),
			row.TeamTip.InexactFloat64(),
			yesNo(row.ChangeFundReceived),
			row.CreatedAt.Format(DateLayout),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, line)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheetName, "C2", fmt.Sprintf("E%d", len(rows)+1), moneyStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "G", 18); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
