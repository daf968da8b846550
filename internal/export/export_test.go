package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []Row {
	return []Row{
		{
			ID:                 "6f1c7c1e-0000-4000-8000-000000000001",
			Name:               "Mia",
			TotalSales:         decimal.RequireFromString("1000"),
			SalesCash:          decimal.RequireFromString("250.5"),
			TeamTip:            decimal.RequireFromString("20"),
			ChangeFundReceived: true,
			CreatedAt:          time.Date(2026, 3, 14, 22, 5, 0, 0, time.UTC),
		},
		{
			ID:         "6f1c7c1e-0000-4000-8000-000000000002",
			Name:       "Guest, the one",
			TotalSales: decimal.RequireFromString("10"),
			TeamTip:    decimal.RequireFromString("0.2"),
			CreatedAt:  time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	body := strings.TrimPrefix(buf.String(), "\ufeff")
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, Header, records[0])
	require.Equal(t, []string{
		"6f1c7c1e-0000-4000-8000-000000000001", "Mia", "1000.00", "250.50", "20.00", "Yes", "2026-03-14 22:05:00",
	}, records[1])
	require.Equal(t, "Guest, the one", records[2][1])
	require.Equal(t, "No", records[2][5])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Header, rows[0])
	require.Equal(t, "Mia", rows[1][1])
	require.Equal(t, "Yes", rows[1][5])

	raw, err := f.GetCellValue(sheetName, "D2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "250.5", raw)
}

func TestFilename(t *testing.T) {
	day := time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "gastro-rechner-submissions-2026-10-16.csv", Filename(day, "csv"))
}
