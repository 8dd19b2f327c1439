// Package export writes series, frames and price tables as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"StockLens/internal/model"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name used when none is given.
const DefaultSheet = "StockLens"

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteSeriesCSV writes a Date,<name> CSV. Missing values are empty cells.
func WriteSeriesCSV(w io.Writer, s model.Series) error {
	cw := csv.NewWriter(w)
	name := s.Name
	if name == "" {
		name = "Value"
	}
	if err := cw.Write([]string{"Date", name}); err != nil {
		return err
	}
	for _, p := range s.Points {
		if err := cw.Write([]string{p.Date.Format(model.DateFormat), formatValue(p.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFrameCSV writes one row per frame date and one column per frame column.
func WriteFrameCSV(w io.Writer, f model.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Date"}, f.Columns...)); err != nil {
		return err
	}
	rec := make([]string, len(f.Columns)+1)
	for i, d := range f.Dates {
		rec[0] = d.Format(model.DateFormat)
		for j, v := range f.Row(i) {
			rec[j+1] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableCSV writes the bars of a price table with every present column.
func WriteTableCSV(w io.Writer, t *model.PriceTable) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Date"}, cols...)); err != nil {
		return err
	}
	if t.Len() > 0 {
		rec := make([]string, len(cols)+1)
		for _, b := range t.Bars {
			rec[0] = b.Time.Format(model.DateFormat)
			for j, c := range cols {
				rec[j+1] = formatValue(b.Value(c))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFrameXLSX writes the frame to a single-sheet workbook. Dates are text
// cells in YYYY-MM-DD form and values are numbers.
func WriteFrameXLSX(w io.Writer, f model.Frame, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName(x.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, 0, len(f.Columns)+1)
	header = append(header, "Date")
	for _, c := range f.Columns {
		header = append(header, c)
	}
	if err := x.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, d := range f.Dates {
		row := make([]interface{}, 0, len(f.Columns)+1)
		row = append(row, d.Format(model.DateFormat))
		for _, v := range f.Row(i) {
			if math.IsNaN(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := x.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// TableFrame turns the present columns of a price table into a frame.
// Missing values stay NaN.
func TableFrame(t *model.PriceTable) model.Frame {
	cols := t.Columns()
	f := model.Frame{Columns: cols, Values: make(map[string][]float64, len(cols))}
	if t.Len() == 0 {
		return f
	}
	f.Dates = make([]time.Time, t.Len())
	for _, c := range cols {
		f.Values[c] = make([]float64, t.Len())
	}
	for i, b := range t.Bars {
		f.Dates[i] = b.Time
		for _, c := range cols {
			f.Values[c][i] = b.Value(c)
		}
	}
	return f
}
