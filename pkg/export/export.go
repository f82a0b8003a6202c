package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

// Columns is the export column order.
var Columns = []string{"timestamp", "sensor", "value", "unit", "meta"}

const sheet = "sensor_readings"

// Row renders r as export cells in Columns order. Null fields are empty.
func Row(r reading.Reading) ([]string, error) {
	row := []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Sensor,
		"",
		"",
		"",
	}
	if r.Value != nil {
		row[2] = strconv.FormatFloat(*r.Value, 'f', -1, 64)
	}
	if r.Unit != nil {
		row[3] = *r.Unit
	}
	meta, err := reading.EncodeMeta(r.Meta)
	if err != nil {
		return nil, err
	}
	row[4] = string(meta)
	return row, nil
}

// WriteCSV writes readings as CSV with a header row.
func WriteCSV(w io.Writer, readings []reading.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range readings {
		row, err := Row(r)
		if err != nil {
			return fmt.Errorf("reading %d: %w", r.ID, err)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes readings as an Excel workbook with one sheet.
func WriteXLSX(w io.Writer, readings []reading.Reading) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	for i, header := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	for i, r := range readings {
		row, err := Row(r)
		if err != nil {
			return fmt.Errorf("reading %d: %w", r.ID, err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		// numeric cell so spreadsheets can chart it
		if r.Value != nil {
			values[2] = *r.Value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	for i := range Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}
